package collector

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorConfig_EnabledProvidersOrdering(t *testing.T) {
	t.Parallel()

	cfg := &CollectorConfig{
		Name:    "chatgpt",
		Enabled: true,
		Providers: []ProviderSpec{
			{Name: "c", Priority: 2, Enabled: true},
			{Name: "disabled", Priority: 1, Enabled: false},
			{Name: "a", Priority: 1, Enabled: true},
			{Name: "b", Priority: 1, Enabled: true},
			{Name: "d", Priority: 3, Enabled: true},
		},
	}

	specs := cfg.EnabledProviders()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	// 升序，同优先级保持书写顺序，禁用项被剔除
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestDefaultChains_CoverAllCollectors(t *testing.T) {
	t.Parallel()

	chains := DefaultChains()
	for _, name := range []string{
		types.CollectorChatGPT, types.CollectorGoogleAIO, types.CollectorPerplexity,
		types.CollectorClaude, types.CollectorGemini, types.CollectorGrok, types.CollectorBingCopilot,
	} {
		cfg, ok := chains[name]
		require.True(t, ok, "missing chain for %s", name)
		assert.True(t, cfg.Enabled)
		assert.NotEmpty(t, cfg.EnabledProviders(), "no providers for %s", name)
	}

	// 无抓取数据集的 collector 直接走 OpenRouter
	assert.Equal(t, "openrouter_claude", chains[types.CollectorClaude].Providers[0].Name)
	assert.Equal(t, "openrouter_grok", chains[types.CollectorGrok].Providers[0].Name)

	// 有抓取数据集的 collector 以 Bright Data 为主路径
	assert.Equal(t, "brightdata_chatgpt", chains[types.CollectorChatGPT].EnabledProviders()[0].Name)
	assert.Equal(t, "brightdata_perplexity", chains[types.CollectorPerplexity].EnabledProviders()[0].Name)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterCollector(&CollectorConfig{Name: "chatgpt", Enabled: true})
	r.RegisterAdapter(&fakeAdapter{name: "openrouter_chatgpt", collect: okAnswer("x")})

	cfg, ok := r.Collector("chatgpt")
	require.True(t, ok)
	assert.Equal(t, "chatgpt", cfg.Name)

	_, ok = r.Collector("missing")
	assert.False(t, ok)

	a, ok := r.Adapter("openrouter_chatgpt")
	require.True(t, ok)
	assert.Equal(t, "openrouter_chatgpt", a.Name())

	assert.Equal(t, []string{"chatgpt"}, r.Collectors())
	assert.Equal(t, []string{"openrouter_chatgpt"}, r.Adapters())
}

func TestHealthMonitor_CheckOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterAdapter(&fakeAdapter{name: "healthy_one", collect: okAnswer("x"), healthy: true})
	r.RegisterAdapter(&fakeAdapter{name: "broken_one", collect: okAnswer("x"), healthy: false})

	h := NewHealthMonitor(r, time.Minute, zap.NewNop())
	statuses := h.CheckOnce(context.Background())

	require.Len(t, statuses, 2)
	assert.True(t, statuses["healthy_one"].Healthy)
	assert.False(t, statuses["broken_one"].Healthy)

	// 快照可重复读取
	snap := h.Statuses()
	assert.True(t, snap["healthy_one"].Healthy)
}

func TestHealthMonitor_StartAndClose(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterAdapter(&fakeAdapter{name: "p", collect: okAnswer("x"), healthy: true})

	h := NewHealthMonitor(r, 10*time.Millisecond, zap.NewNop())
	h.Start(context.Background())

	assert.Eventually(t, func() bool {
		s := h.Statuses()
		st, ok := s["p"]
		return ok && st.Healthy
	}, 2*time.Second, 5*time.Millisecond)

	assert.NotPanics(t, h.Close)
}
