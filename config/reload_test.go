package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReloader(t *testing.T, initialYAML string) (*Reloader, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(initialYAML), 0o644))

	initial, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	r, err := NewReloader(path, initial, zap.NewNop(),
		WithPollInterval(5*time.Millisecond),
		WithDebounceDelay(10*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)
	return r, path
}

// rewrite 更新文件内容并把修改时间推到未来，保证轮询能看到变化。
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
}

func TestReloader_SwapsOnValidChange(t *testing.T) {
	t.Parallel()

	r, path := newTestReloader(t, "retry:\n  max_retries: 3\n")
	assert.Equal(t, 3, r.Current().Retry.MaxRetries)

	swapped := make(chan struct{}, 1)
	r.OnReload(func(old, new *Config) {
		assert.Equal(t, 3, old.Retry.MaxRetries)
		assert.Equal(t, 9, new.Retry.MaxRetries)
		swapped <- struct{}{}
	})

	rewrite(t, path, "retry:\n  max_retries: 9\n")

	select {
	case <-swapped:
	case <-time.After(2 * time.Second):
		t.Fatal("reload callback never fired")
	}
	assert.Equal(t, 9, r.Current().Retry.MaxRetries)

	reloads, rejected := r.Stats()
	assert.Equal(t, int64(1), reloads)
	assert.Equal(t, int64(0), rejected)
}

func TestReloader_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	r, path := newTestReloader(t, "retry:\n  max_retries: 3\n")

	// batch_size 为 0 校验不过
	rewrite(t, path, "orchestrator:\n  batch_size: 0\n")

	assert.Eventually(t, func() bool {
		_, rejected := r.Stats()
		return rejected >= 1
	}, 2*time.Second, 5*time.Millisecond)

	// 旧配置仍然生效
	assert.Equal(t, 3, r.Current().Retry.MaxRetries)
	assert.Equal(t, 3, r.Current().Orchestrator.BatchSize)
}

func TestReloader_RejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	r, path := newTestReloader(t, "retry:\n  max_retries: 3\n")

	rewrite(t, path, "retry: [not a mapping\n")

	assert.Eventually(t, func() bool {
		_, rejected := r.Stats()
		return rejected >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, r.Current().Retry.MaxRetries)
}

func TestReloader_KeepsConfigWhenFileRemoved(t *testing.T) {
	t.Parallel()

	r, path := newTestReloader(t, "retry:\n  max_retries: 4\n")
	require.NoError(t, os.Remove(path))

	// 删除事件不触发替换
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, r.Current().Retry.MaxRetries)
	reloads, _ := r.Stats()
	assert.Equal(t, int64(0), reloads)
}

func TestReloader_NilInitialRejected(t *testing.T) {
	t.Parallel()

	_, err := NewReloader("config.yaml", nil, zap.NewNop())
	assert.Error(t, err)
}
