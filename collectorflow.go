// Package collectorflow provides a top-level convenience entry point that
// wires the full collection pipeline from configuration.
//
// Usage:
//
//	import "github.com/BaSui01/collectorflow"
//
//	cfg, _ := config.NewLoader().WithConfigPath("config.yaml").Load()
//	app, err := collectorflow.New(cfg)
//	app.Start(ctx)
//	defer app.Close()
//
//	out, err := app.Run(ctx, &types.Request{
//	    QueryID:    "q-1",
//	    QueryText:  "best running shoes 2026",
//	    Collectors: []string{"chatgpt", "perplexity"},
//	})
package collectorflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/collectorflow/collector"
	"github.com/BaSui01/collectorflow/collector/circuitbreaker"
	"github.com/BaSui01/collectorflow/collector/retry"
	"github.com/BaSui01/collectorflow/config"
	"github.com/BaSui01/collectorflow/internal/database"
	"github.com/BaSui01/collectorflow/internal/metrics"
	"github.com/BaSui01/collectorflow/meta"
	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/providers/brightdata"
	"github.com/BaSui01/collectorflow/providers/mock"
	"github.com/BaSui01/collectorflow/providers/openrouter"
	"github.com/BaSui01/collectorflow/snapshot"
	"github.com/BaSui01/collectorflow/state"
	"github.com/BaSui01/collectorflow/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 各 chat scraper 抓取的答案引擎页面
var scraperTargets = map[string]string{
	types.CollectorChatGPT:     "https://chatgpt.com/",
	types.CollectorPerplexity:  "https://www.perplexity.ai/",
	types.CollectorGemini:      "https://gemini.google.com/",
	types.CollectorBingCopilot: "https://copilot.microsoft.com/",
}

// BatchResult is re-exported so callers of the facade never need to
// import collector/.
type BatchResult = collector.BatchResult

// App 是装配完成的采集流水线。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	metrics      *metrics.Collector
	pool         *database.PoolManager
	state        *state.Manager
	registry     *collector.Registry
	poller       *snapshot.Poller
	executor     *collector.Executor
	orchestrator *collector.Orchestrator
	health       *collector.HealthMonitor
	redisClient  *redis.Client
}

// Option configures the App created by [New].
type Option func(*appOptions)

type appOptions struct {
	logger *zap.Logger
	db     *gorm.DB
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *appOptions) { o.logger = logger }
}

// WithDB injects a pre-opened gorm database, bypassing config.Database.
func WithDB(db *gorm.DB) Option {
	return func(o *appOptions) { o.db = db }
}

// New 按配置装配完整流水线。不启动后台循环，见 [App.Start]。
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = buildLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	mc := metrics.NewCollector("collectorflow", logger)

	db := o.db
	injectedDB := db != nil
	if db == nil {
		var err error
		db, err = database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
	}

	pool, err := database.NewPoolManager(db, database.DefaultPoolConfig(), mc, logger)
	if err != nil {
		return nil, err
	}

	sm := state.NewManager(db, logger)
	// sqlite 没有版本化迁移，直接建表；注入的 DB 同样兜底建表
	if cfg.Database.Driver == "sqlite" || injectedDB {
		if err := sm.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate state schema: %w", err)
		}
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: mc,
		pool:    pool,
		state:   sm,
	}

	app.registry = buildRegistry(cfg, logger)

	snapRegistry, err := app.buildSnapshotRegistry()
	if err != nil {
		return nil, err
	}

	var scorer meta.Scorer = meta.NoopScorer{}
	if cfg.Scoring.Endpoint != "" {
		scorer = meta.NewHTTPScorer(cfg.Scoring.Endpoint, cfg.Scoring.APIKey, logger)
	}

	bdClient := brightdata.NewClient(cfg.BrightData.ToProviderConfig(), logger)
	app.poller = snapshot.NewPoller(bdClient, sm, snapRegistry, scorer, &snapshot.Config{
		PollInterval:     time.Duration(cfg.Snapshot.PollIntervalMS) * time.Millisecond,
		MaxWait:          time.Duration(cfg.Snapshot.MaxWaitMS) * time.Millisecond,
		FailureThreshold: cfg.Snapshot.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Snapshot.ResetTimeoutMS) * time.Millisecond,
	}, logger)

	breakers := circuitbreaker.NewKeyedBreakers(&circuitbreaker.Config{
		Threshold:    cfg.CircuitBreaker.Threshold,
		ResetTimeout: time.Duration(cfg.CircuitBreaker.ResetTimeoutMS) * time.Millisecond,
		OnStateChange: func(key string, from, to circuitbreaker.State) {
			mc.RecordBreakerTransition(key, to.String())
		},
	}, logger)

	resilience := collector.NewResilience(&retry.RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
	}, breakers, mc, logger)

	reader := meta.NewGormReader(db)
	app.executor = collector.NewExecutor(collector.ExecutorOptions{
		Registry:   app.registry,
		State:      sm,
		Resilience: resilience,
		Poller:     app.poller,
		Brands:     reader,
		Queries:    reader,
		Scorer:     scorer,
		Metrics:    mc,
		Logger:     logger,
	})

	app.orchestrator = collector.NewOrchestrator(app.executor, sm, &collector.OrchestratorConfig{
		BatchSize:       cfg.Orchestrator.BatchSize,
		InterBatchDelay: time.Duration(cfg.Orchestrator.InterBatchDelayMS) * time.Millisecond,
	}, logger)

	if cfg.Health.Enabled {
		app.health = collector.NewHealthMonitor(app.registry,
			time.Duration(cfg.Health.IntervalMS)*time.Millisecond, logger)
	}

	return app, nil
}

// Start 启动后台组件：恢复在途快照轮询，开启 provider 探活。
func (a *App) Start(ctx context.Context) error {
	resumed, err := a.poller.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume snapshot polling: %w", err)
	}
	if resumed > 0 {
		a.logger.Info("resumed in-flight snapshots", zap.Int("count", resumed))
	}
	if a.health != nil {
		a.health.Start(ctx)
	}
	return nil
}

// Run 对单个请求的全部 collector 并发采集（all-settled）。
func (a *App) Run(ctx context.Context, req *types.Request) (*collector.BatchResult, error) {
	return a.orchestrator.Run(ctx, req)
}

// RunBatch 对一批请求做切批采集：跨请求并发受 batch_size 约束，
// 返回结果与输入请求一一对应。
func (a *App) RunBatch(ctx context.Context, reqs []*types.Request) ([]*collector.BatchResult, error) {
	return a.orchestrator.RunBatch(ctx, reqs)
}

// Execute 对单个 collector 执行一次采集。
func (a *App) Execute(ctx context.Context, req *types.Request, collectorType string) (*types.ExecutionResult, error) {
	return a.executor.Execute(ctx, req, collectorType)
}

// HealthStatuses 返回最近一轮 provider 探活的状态快照。
// 探活未启用时返回空表。
func (a *App) HealthStatuses() map[string]*providers.HealthStatus {
	if a.health == nil {
		return map[string]*providers.HealthStatus{}
	}
	return a.health.Statuses()
}

// State 返回状态管理器
func (a *App) State() *state.Manager { return a.state }

// Registry 返回 collector/provider 注册表
func (a *App) Registry() *collector.Registry { return a.registry }

// Close 停止后台组件并关闭资源
func (a *App) Close() error {
	if a.health != nil {
		a.health.Close()
	}
	a.poller.Close()

	var firstErr error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.pool.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// buildSnapshotRegistry 选择快照登记表实现：Redis 开启时落 Redis，
// 否则退回进程内实现（进程重启丢失在途登记）。
func (a *App) buildSnapshotRegistry() (snapshot.Registry, error) {
	if !a.cfg.Redis.Enabled {
		return snapshot.NewMemoryRegistry(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	a.redisClient = client
	return snapshot.NewRedisRegistry(client, a.logger), nil
}

// buildRegistry 注册默认 provider 链与配置可用的适配器。
// 缺凭据的适配器不注册，执行时按 CONFIGURATION_MISSING 跳到下一级。
func buildRegistry(cfg *config.Config, logger *zap.Logger) *collector.Registry {
	registry := collector.NewRegistry()
	chains := collector.DefaultChains()
	if cfg.Mock.Enabled {
		// mock 挂到每条链的末位，真实 provider 全部失败后兜底
		for name, chain := range chains {
			chain.Providers = append(chain.Providers, collector.ProviderSpec{
				Name: "mock_" + name, Priority: 99, Enabled: true, FallbackOnFailure: true,
			})
		}
	}
	for _, chain := range chains {
		registry.RegisterCollector(chain)
	}

	if cfg.BrightData.APIKey != "" {
		client := brightdata.NewClient(cfg.BrightData.ToProviderConfig(), logger)

		// chatgpt / copilot 走异步数据集触发，gemini 走同步抓取端点
		asyncDatasets := map[string]string{
			types.CollectorChatGPT:     cfg.BrightData.ChatGPTDatasetID,
			types.CollectorBingCopilot: cfg.BrightData.CopilotDatasetID,
		}
		names := map[string]string{
			types.CollectorChatGPT:     "brightdata_chatgpt",
			types.CollectorBingCopilot: "brightdata_copilot",
		}
		for collectorType, datasetID := range asyncDatasets {
			if datasetID == "" {
				continue
			}
			registry.RegisterAdapter(brightdata.NewChatScraper(
				client, names[collectorType], collectorType, datasetID, scraperTargets[collectorType], logger))
		}
		if cfg.BrightData.GeminiDatasetID != "" {
			registry.RegisterAdapter(brightdata.NewSyncScraper(
				client, "brightdata_gemini", types.CollectorGemini,
				cfg.BrightData.GeminiDatasetID, scraperTargets[types.CollectorGemini], logger))
		}
		// perplexity 走 SERP 接口，不需要数据集
		registry.RegisterAdapter(brightdata.NewSERPAdapter(
			client, "brightdata_perplexity", types.CollectorPerplexity, "perplexity", logger))
		if cfg.BrightData.AIODatasetID != "" {
			registry.RegisterAdapter(brightdata.NewAIOBatchAdapter(
				client, "brightdata_google_aio", types.CollectorGoogleAIO, cfg.BrightData.AIODatasetID, logger))
		}
	}

	if cfg.OpenRouter.APIKey != "" {
		for _, collectorType := range []string{
			types.CollectorChatGPT, types.CollectorPerplexity, types.CollectorClaude,
			types.CollectorGemini, types.CollectorGrok,
		} {
			registry.RegisterAdapter(openrouter.New(cfg.OpenRouter.ToProviderConfig(), collectorType, logger))
		}
	}

	if cfg.Mock.Enabled {
		for _, collectorType := range []string{
			types.CollectorChatGPT, types.CollectorGoogleAIO, types.CollectorPerplexity,
			types.CollectorClaude, types.CollectorGemini, types.CollectorGrok, types.CollectorBingCopilot,
		} {
			if adapter, err := mock.New(cfg.Mock.ToProviderConfig(), collectorType); err == nil {
				registry.RegisterAdapter(adapter)
			}
		}
	}

	return registry
}

// buildLogger 按日志配置构造 zap logger
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if cfg.VerboseLogs {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
