package collectorflow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/BaSui01/collectorflow/config"
	"github.com/BaSui01/collectorflow/providers/brightdata"
	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	cfg.Mock.Enabled = true
	cfg.Mock.Answer = "canned answer"
	cfg.Health.Enabled = false
	cfg.Orchestrator.InterBatchDelayMS = 1
	cfg.Retry.BaseDelayMS = 1
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	app, err := New(testConfig(t), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() { app.Close() })
	return app
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Orchestrator.BatchSize = 0

	_, err := New(cfg, WithLogger(zap.NewNop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestApp_RunWithMockProviders(t *testing.T) {
	app := newTestApp(t)

	out, err := app.Run(context.Background(), &types.Request{
		QueryID:    "q-facade-1",
		QueryText:  "best running shoes 2026",
		Collectors: []string{types.CollectorChatGPT, types.CollectorClaude, types.CollectorGrok},
	})
	require.NoError(t, err)

	// 没有真实凭据时整条链回退到 mock
	assert.Equal(t, 3, out.Completed)
	assert.Equal(t, 0, out.Failed)
	require.Len(t, out.Results, 3)
	for _, res := range out.Results {
		assert.Equal(t, types.ExecutionCompleted, res.Status)
		assert.Equal(t, "canned answer", res.Answer)
	}
}

func TestApp_ExecuteSingleCollector(t *testing.T) {
	app := newTestApp(t)

	res, err := app.Execute(context.Background(), &types.Request{
		QueryID:    "q-facade-2",
		QueryText:  "who makes the best espresso machine",
		Collectors: []string{types.CollectorGemini},
	}, types.CollectorGemini)
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionCompleted, res.Status)
	assert.Equal(t, "canned answer", res.Answer)

	// 持久化双记录成对存在
	exec, err := app.State().GetExecution(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionCompleted, exec.Status)

	result, err := app.State().GetResultByExecutionID(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "canned answer", result.RawAnswer)
}

func TestApp_RunBatch(t *testing.T) {
	app := newTestApp(t)

	reqs := []*types.Request{
		{QueryID: "q-batch-1", QueryText: "laptops", Collectors: []string{types.CollectorChatGPT}},
		{QueryID: "q-batch-2", QueryText: "headphones", Collectors: []string{types.CollectorClaude, types.CollectorGrok}},
	}
	out, err := app.RunBatch(context.Background(), reqs)
	require.NoError(t, err)

	// 结果与请求一一对应
	require.Len(t, out, 2)
	assert.Equal(t, "q-batch-1", out[0].QueryID)
	assert.Equal(t, 1, out[0].Completed)
	assert.Equal(t, "q-batch-2", out[1].QueryID)
	assert.Equal(t, 2, out[1].Completed)
}

func TestBuildRegistry_BrightDataAdapterKinds(t *testing.T) {
	cfg := testConfig(t)
	cfg.BrightData.APIKey = "key"
	cfg.BrightData.ChatGPTDatasetID = "gd_chatgpt"
	cfg.BrightData.GeminiDatasetID = "gd_gemini"
	cfg.BrightData.CopilotDatasetID = "gd_copilot"
	cfg.BrightData.AIODatasetID = "gd_aio"

	registry := buildRegistry(cfg, zap.NewNop())

	// chatgpt/copilot 异步触发，gemini 同步抓取，perplexity 走 SERP
	a, ok := registry.Adapter("brightdata_chatgpt")
	require.True(t, ok)
	assert.IsType(t, &brightdata.ChatScraper{}, a)

	a, ok = registry.Adapter("brightdata_copilot")
	require.True(t, ok)
	assert.IsType(t, &brightdata.ChatScraper{}, a)

	a, ok = registry.Adapter("brightdata_gemini")
	require.True(t, ok)
	assert.IsType(t, &brightdata.SyncScraper{}, a)

	a, ok = registry.Adapter("brightdata_perplexity")
	require.True(t, ok)
	assert.IsType(t, &brightdata.SERPAdapter{}, a)

	a, ok = registry.Adapter("brightdata_google_aio")
	require.True(t, ok)
	assert.IsType(t, &brightdata.AIOBatchAdapter{}, a)
}

func TestApp_HealthStatusesWhenDisabled(t *testing.T) {
	app := newTestApp(t)
	assert.Empty(t, app.HealthStatuses())
}

func TestApp_RegistryHasDefaultChains(t *testing.T) {
	app := newTestApp(t)

	collectors := app.Registry().Collectors()
	assert.Len(t, collectors, 7)
	assert.Contains(t, collectors, types.CollectorChatGPT)
	assert.Contains(t, collectors, types.CollectorGoogleAIO)

	// mock 适配器已按 collector 注册
	adapters := app.Registry().Adapters()
	assert.Contains(t, adapters, "mock_chatgpt")
	assert.Contains(t, adapters, "mock_bing_copilot")
}
