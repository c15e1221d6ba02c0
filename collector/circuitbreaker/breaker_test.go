package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBreaker(threshold int, reset time.Duration) (*Breaker, *time.Time) {
	now := time.Now()
	b := NewBreaker("chatgpt,claude", &Config{Threshold: threshold, ResetTimeout: reset}, zap.NewNop())
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	b, _ := testBreaker(3, time.Minute)
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.State())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// 打开后拒绝请求，错误码为 CIRCUIT_OPEN 且不可重试
	err := b.Allow()
	require.Error(t, err)
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}

func TestBreaker_HalfOpenRoundTrip(t *testing.T) {
	t.Parallel()

	b, now := testBreaker(1, time.Minute)
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	// 复位窗口内仍拒绝
	assert.Error(t, b.Allow())

	// 窗口过后放行一个探测
	*now = now.Add(time.Minute + time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	// 探测在途时第二个请求被拒
	assert.Error(t, b.Allow())

	// 探测成功 → 关闭
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b, now := testBreaker(1, time.Minute)
	require.NoError(t, b.Allow())
	b.RecordFailure()

	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.Error(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b, _ := testBreaker(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, 2, b.FailureCount())

	b.RecordSuccess()
	assert.Equal(t, 0, b.FailureCount())
	assert.Equal(t, StateClosed, b.State())
}

func TestKeyedBreakers_IsolationBetweenKeys(t *testing.T) {
	t.Parallel()

	kb := NewKeyedBreakers(&Config{Threshold: 1, ResetTimeout: time.Minute}, zap.NewNop())

	a := kb.Get("chatgpt")
	a.RecordFailure()
	assert.Equal(t, StateOpen, a.State())

	// 其它键不受影响
	assert.Equal(t, StateClosed, kb.Get("claude").State())

	// 同键返回同一实例
	assert.Same(t, a, kb.Get("chatgpt"))

	states := kb.States()
	assert.Equal(t, StateOpen, states["chatgpt"])
	assert.Equal(t, StateClosed, states["claude"])
}

func TestKeyedBreakers_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	kb := NewKeyedBreakers(DefaultConfig(), zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := kb.Get("shared")
			_ = b.Allow()
			b.RecordSuccess()
		}()
	}
	wg.Wait()
	assert.Equal(t, StateClosed, kb.Get("shared").State())
}
