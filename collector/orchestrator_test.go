package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// concurrencyProbe 统计并发峰值的适配器装饰
type concurrencyProbe struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (p *concurrencyProbe) enter() {
	p.mu.Lock()
	p.current++
	if p.current > p.peak {
		p.peak = p.current
	}
	p.mu.Unlock()
}

func (p *concurrencyProbe) exit() {
	p.mu.Lock()
	p.current--
	p.mu.Unlock()
}

func (p *concurrencyProbe) peakSeen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func registerProbed(h *harness, probe *concurrencyProbe, collectorType, providerName, answer string) {
	h.registry.RegisterAdapter(&fakeAdapter{
		name: providerName,
		collect: func(_ int, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
			probe.enter()
			time.Sleep(30 * time.Millisecond)
			probe.exit()
			return okAnswer(answer)(0, req)
		},
	})
	h.registry.RegisterCollector(chainConfig(collectorType,
		ProviderSpec{Name: providerName, Priority: 1, Enabled: true, FallbackOnFailure: true},
	))
}

func TestOrchestrator_AllSettled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.registry.RegisterAdapter(&fakeAdapter{name: "openrouter_claude", collect: okAnswer("claude ok")})
	h.registry.RegisterAdapter(&fakeAdapter{name: "openrouter_grok", collect: alwaysFail(types.ErrAuthentication)})
	h.registry.RegisterAdapter(&fakeAdapter{name: "openrouter_gemini", collect: okAnswer("gemini ok")})
	h.registry.RegisterCollector(chainConfig(types.CollectorClaude,
		ProviderSpec{Name: "openrouter_claude", Priority: 1, Enabled: true, FallbackOnFailure: true}))
	h.registry.RegisterCollector(chainConfig(types.CollectorGrok,
		ProviderSpec{Name: "openrouter_grok", Priority: 1, Enabled: true, FallbackOnFailure: true}))
	h.registry.RegisterCollector(chainConfig(types.CollectorGemini,
		ProviderSpec{Name: "openrouter_gemini", Priority: 1, Enabled: true, FallbackOnFailure: true}))

	o := NewOrchestrator(h.executor, h.state,
		&OrchestratorConfig{BatchSize: 3, InterBatchDelay: time.Millisecond}, zap.NewNop())

	req := testRequest(types.CollectorClaude, types.CollectorGrok, types.CollectorGemini)
	out, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	// 单个 collector 失败不影响其它（all-settled）
	assert.Len(t, out.Results, 3)
	assert.Equal(t, 2, out.Completed)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 0, out.Async)

	// 结果顺序与请求中的 collector 顺序一致
	assert.Equal(t, types.CollectorClaude, out.Results[0].CollectorType)
	assert.Equal(t, types.CollectorGrok, out.Results[1].CollectorType)
	assert.Equal(t, types.CollectorGemini, out.Results[2].CollectorType)
}

func TestOrchestrator_RequestCollectorsRunConcurrently(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	probe := &concurrencyProbe{}
	registerProbed(h, probe, types.CollectorChatGPT, "p_chatgpt", "a")
	registerProbed(h, probe, types.CollectorClaude, "p_claude", "b")
	registerProbed(h, probe, types.CollectorGemini, "p_gemini", "c")
	registerProbed(h, probe, types.CollectorGrok, "p_grok", "d")

	// BatchSize 只约束跨请求并发，请求内的 collector 全并发
	o := NewOrchestrator(h.executor, h.state,
		&OrchestratorConfig{BatchSize: 2, InterBatchDelay: time.Millisecond}, zap.NewNop())

	req := testRequest(types.CollectorChatGPT, types.CollectorClaude, types.CollectorGemini, types.CollectorGrok)
	out, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Completed)
	assert.GreaterOrEqual(t, probe.peakSeen(), 3)
}

func TestOrchestrator_RunBatchLimitsRequestConcurrency(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	probe := &concurrencyProbe{}
	registerProbed(h, probe, types.CollectorChatGPT, "p_chatgpt", "a")
	registerProbed(h, probe, types.CollectorClaude, "p_claude", "b")
	registerProbed(h, probe, types.CollectorGemini, "p_gemini", "c")
	registerProbed(h, probe, types.CollectorGrok, "p_grok", "d")

	o := NewOrchestrator(h.executor, h.state,
		&OrchestratorConfig{BatchSize: 2, InterBatchDelay: time.Millisecond}, zap.NewNop())

	reqs := []*types.Request{
		testRequest(types.CollectorChatGPT),
		testRequest(types.CollectorClaude),
		testRequest(types.CollectorGemini),
		testRequest(types.CollectorGrok),
	}
	out, err := o.RunBatch(context.Background(), reqs)
	require.NoError(t, err)

	// 结果与请求一一对应，跨请求并发不超过 BatchSize
	require.Len(t, out, 4)
	for i, r := range out {
		require.NotNil(t, r)
		assert.Equal(t, 1, r.Completed)
		assert.Equal(t, reqs[i].Collectors[0], r.Results[0].CollectorType)
	}
	assert.LessOrEqual(t, probe.peakSeen(), 2)
}

func TestOrchestrator_RunBatchCancelledBetweenBatches(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.registry.RegisterAdapter(&fakeAdapter{name: "openrouter_claude", collect: okAnswer("ok")})
	h.registry.RegisterCollector(chainConfig(types.CollectorClaude,
		ProviderSpec{Name: "openrouter_claude", Priority: 1, Enabled: true, FallbackOnFailure: true}))
	h.registry.RegisterAdapter(&fakeAdapter{name: "openrouter_grok", collect: okAnswer("ok")})
	h.registry.RegisterCollector(chainConfig(types.CollectorGrok,
		ProviderSpec{Name: "openrouter_grok", Priority: 1, Enabled: true, FallbackOnFailure: true}))

	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(h.executor, h.state,
		&OrchestratorConfig{BatchSize: 1, InterBatchDelay: time.Hour}, zap.NewNop())
	o.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := o.RunBatch(ctx, []*types.Request{
		testRequest(types.CollectorClaude),
		testRequest(types.CollectorGrok),
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))
}

func TestOrchestrator_RunBatchEmptyRequestAllSettled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.registry.RegisterAdapter(&fakeAdapter{name: "openrouter_claude", collect: okAnswer("claude ok")})
	h.registry.RegisterCollector(chainConfig(types.CollectorClaude,
		ProviderSpec{Name: "openrouter_claude", Priority: 1, Enabled: true, FallbackOnFailure: true}))

	o := NewOrchestrator(h.executor, h.state,
		&OrchestratorConfig{BatchSize: 3, InterBatchDelay: time.Millisecond}, zap.NewNop())

	out, err := o.RunBatch(context.Background(), []*types.Request{
		testRequest(types.CollectorClaude),
		{QueryID: "q-empty"},
		testRequest(types.CollectorClaude),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	// 无 collector 的请求折叠为单条失败结果，不拖垮整批
	assert.Equal(t, 1, out[0].Completed)
	assert.Equal(t, 1, out[1].Failed)
	require.Len(t, out[1].Results, 1)
	require.NotNil(t, out[1].Results[0].Error)
	assert.Equal(t, types.ErrInvalidInput, out[1].Results[0].Error.Code)
	assert.Equal(t, 1, out[2].Completed)
}

func TestOrchestrator_RunBatchRejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	o := NewOrchestrator(h.executor, h.state, nil, zap.NewNop())

	_, err := o.RunBatch(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestOrchestrator_EmptyCollectorsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	o := NewOrchestrator(h.executor, h.state, nil, zap.NewNop())

	_, err := o.Run(context.Background(), &types.Request{QueryID: "q-1"})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}
