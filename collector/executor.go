package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/collectorflow/internal/metrics"
	"github.com/BaSui01/collectorflow/meta"
	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/providers/brightdata"
	"github.com/BaSui01/collectorflow/snapshot"
	"github.com/BaSui01/collectorflow/state"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

const (
	// defaultProviderTimeout 未配置超时时的单 provider 预算
	defaultProviderTimeout = 2 * time.Minute

	// minScraperTimeout 抓取类 provider（SnapshotAware）的超时下限。
	// 提交 + 快速轮询本身很快，但数据集偶发排队，预算给足。
	minScraperTimeout = 10 * time.Minute
)

// ExecutorOptions 执行器的装配参数。
// Brands/Queries/Scorer/Metrics 可为 nil，相应能力降级为空操作。
type ExecutorOptions struct {
	Registry   *Registry
	State      *state.Manager
	Resilience *Resilience
	Poller     *snapshot.Poller
	Brands     meta.BrandReader
	Queries    meta.QueryReader
	Scorer     meta.Scorer
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

// Executor 单个 (request, collector) 的优先级回退执行器。
type Executor struct {
	registry   *Registry
	state      *state.Manager
	resilience *Resilience
	poller     *snapshot.Poller
	brands     meta.BrandReader
	queries    meta.QueryReader
	scorer     meta.Scorer
	metrics    *metrics.Collector
	logger     *zap.Logger

	now func() time.Time
}

// NewExecutor 创建执行器
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.Brands == nil {
		opts.Brands = meta.NoopBrandReader{}
	}
	if opts.Queries == nil {
		opts.Queries = meta.NoopQueryReader{}
	}
	if opts.Scorer == nil {
		opts.Scorer = meta.NoopScorer{}
	}
	return &Executor{
		registry:   opts.Registry,
		state:      opts.State,
		resilience: opts.Resilience,
		poller:     opts.Poller,
		brands:     opts.Brands,
		queries:    opts.Queries,
		scorer:     opts.Scorer,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Execute 对单个 collector 执行一次采集。
//
// 失败通过返回值的 Error 字段报告，函数级 error 只用于
// 持久化层面完全不可用的场景。异步快照提交视为成功：
// 返回 running 状态，最终化由 snapshot 包在后台完成。
func (e *Executor) Execute(ctx context.Context, req *types.Request, collectorType string) (*types.ExecutionResult, error) {
	started := e.now()
	brand, competitors, question := e.enrich(ctx, req)

	exec, pairedResult, err := e.state.Create(ctx, state.ExecutionInit{
		QueryID:       req.QueryID,
		BrandID:       req.BrandID,
		CustomerID:    req.CustomerID,
		CollectorType: collectorType,
		Brand:         brand,
		Question:      question,
		Competitors:   competitors,
		Metadata: map[string]any{
			"collector_key":    req.CircuitKey(),
			"suppress_scoring": req.SuppressScoring,
		},
	})
	if err != nil {
		return nil, err
	}

	res := &types.ExecutionResult{
		ExecutionID:   exec.ID,
		QueryID:       req.QueryID,
		CollectorType: collectorType,
	}
	if pairedResult != nil {
		res.ResultID = pairedResult.ID
	}

	cfg, ok := e.registry.Collector(collectorType)
	if !ok || !cfg.Enabled {
		return e.failExecution(ctx, res, started,
			types.NewError(types.ErrConfigurationMissing, "collector not configured: "+collectorType),
			"collector not configured"), nil
	}
	specs := cfg.EnabledProviders()
	if len(specs) == 0 {
		return e.failExecution(ctx, res, started,
			types.NewError(types.ErrConfigurationMissing, "no enabled providers for "+collectorType),
			"no enabled providers"), nil
	}

	if err := e.state.TransitionExecution(ctx, exec.ID, types.ExecutionRunning, "executor", "provider chain start", nil); err != nil {
		e.logger.Warn("running transition failed", zap.String("execution_id", exec.ID), zap.Error(err))
	}

	areq := &providers.AnswerRequest{
		Prompt:        question,
		Brand:         brand,
		Locale:        req.Locale,
		Country:       req.Country,
		CollectorType: collectorType,
	}

	// 重试包住整条 provider 链：每个轮次从头走一遍链，
	// 链内回退在 runChain 里完成，重试与回退互不交错。
	var chosen ProviderSpec
	var chosenIdx int
	resp, err := e.resilience.Execute(ctx, req.CircuitKey(), cfg.Retries,
		func(ctx context.Context, pass int) (*providers.AnswerResponse, error) {
			return e.runChain(ctx, cfg, specs, areq, res, exec.ID, pass, &chosen, &chosenIdx)
		})
	if err != nil {
		terr := types.AsError(err)
		var structured *types.Error
		if errors.As(err, &structured) {
			terr = structured
		}
		reason := fmt.Sprintf("all providers failed: %s", strings.Join(res.FallbackChain, " -> "))
		if terr.Code == types.ErrCircuitOpen {
			reason = "circuit open for collector set"
		}
		return e.failExecution(ctx, res, started, terr, reason), nil
	}

	res.FallbackUsed = chosenIdx > 0
	if resp.Async() {
		return e.acceptAsyncSubmit(ctx, req, res, resp, chosen, collectorType, started)
	}
	return e.finalizeSync(ctx, req, res, resp, strings.TrimSpace(resp.Answer), started)
}

// runChain 单个重试轮次：按优先级走一遍 provider 链。
// 每个失败的 provider 调用追加一条重试历史，AttemptNumber 取轮次号；
// 成功的 provider 通过 chosen/chosenIdx 带出给最终化路径。
func (e *Executor) runChain(
	ctx context.Context,
	cfg *CollectorConfig,
	specs []ProviderSpec,
	areq *providers.AnswerRequest,
	res *types.ExecutionResult,
	executionID string,
	pass int,
	chosen *ProviderSpec,
	chosenIdx *int,
) (*providers.AnswerResponse, error) {
	// 回退链只反映最近一个轮次
	res.FallbackChain = res.FallbackChain[:0]

	var lastErr *types.Error
	for i, spec := range specs {
		res.FallbackChain = append(res.FallbackChain, spec.Name)

		adapter, ok := e.registry.Adapter(spec.Name)
		if !ok {
			lastErr = types.NewError(types.ErrConfigurationMissing, "adapter not registered: "+spec.Name).
				WithProvider(spec.Name)
			e.logger.Warn("provider skipped, adapter missing",
				zap.String("collector", areq.CollectorType),
				zap.String("provider", spec.Name),
			)
			if !spec.FallbackOnFailure {
				break
			}
			continue
		}

		callStart := e.now()
		resp, err := e.callProvider(ctx, cfg, spec, adapter, areq, executionID)
		callDuration := e.now().Sub(callStart)

		if err == nil {
			answer := strings.TrimSpace(resp.Answer)
			if resp.Async() || answer != "" {
				e.metrics.RecordProviderCall(areq.CollectorType, spec.Name, "success", callDuration)
				*chosen = spec
				*chosenIdx = i
				return resp, nil
			}
			// 成功形状但答案为空，按失败回退
			err = types.NewError(types.ErrEmptyResponse, "provider returned empty answer").
				WithProvider(spec.Name)
		}

		lastErr = types.AsError(err).WithProvider(spec.Name)
		e.metrics.RecordProviderCall(areq.CollectorType, spec.Name, "error", callDuration)
		e.recordAttempt(ctx, executionID, areq.CollectorType, spec.Name, pass, lastErr)
		e.logger.Warn("provider failed",
			zap.String("collector", areq.CollectorType),
			zap.String("provider", spec.Name),
			zap.Int("pass", pass),
			zap.String("code", string(lastErr.Code)),
			zap.Error(lastErr),
		)
		if !spec.FallbackOnFailure {
			break
		}
		if i < len(specs)-1 {
			e.metrics.RecordFallback(areq.CollectorType)
		}
	}

	if lastErr == nil {
		lastErr = types.NewError(types.ErrUnknown, "provider chain exhausted")
	}
	return nil, lastErr
}

// recordAttempt 持久化一条失败尝试并累计重试指标。
func (e *Executor) recordAttempt(ctx context.Context, executionID, collectorType, provider string, pass int, cause *types.Error) {
	e.metrics.RecordRetryAttempt(collectorType, provider)
	if err := e.state.AppendAttempt(context.WithoutCancel(ctx), executionID, types.Attempt{
		AttemptNumber: pass,
		Timestamp:     e.now(),
		ErrorType:     cause.Code,
		Retryable:     cause.Retryable,
	}); err != nil {
		e.logger.Debug("append attempt failed", zap.String("execution_id", executionID), zap.Error(err))
	}
}

// enrich 从元数据读取品牌与查询信息，失败时降级为请求自带字段。
func (e *Executor) enrich(ctx context.Context, req *types.Request) (brand string, competitors []string, question string) {
	question = req.QueryText

	if req.BrandID != "" {
		if name, err := e.brands.GetBrandName(ctx, req.BrandID); err == nil && name != "" {
			brand = name
		}
		if c, err := e.brands.GetCompetitors(ctx, req.BrandID); err == nil {
			competitors = c
		}
	}
	if question == "" && req.QueryID != "" {
		if info, err := e.queries.GetQuery(ctx, req.QueryID); err == nil && info != nil {
			question = info.Text
		}
	}
	return brand, competitors, question
}

// callProvider 带超时预算调用单个 provider（不重试，重试在链级）。
// SnapshotAware 适配器在快照 id 可知的第一时间把它落库。
func (e *Executor) callProvider(
	ctx context.Context,
	cfg *CollectorConfig,
	spec ProviderSpec,
	adapter providers.Adapter,
	areq *providers.AnswerRequest,
	executionID string,
) (*providers.AnswerResponse, error) {
	timeout := e.effectiveTimeout(cfg, spec, adapter)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if sa, ok := adapter.(providers.SnapshotAware); ok {
		return sa.CollectWithSnapshot(callCtx, areq, func(snapshotID string) {
			if err := e.state.SetSnapshotID(context.WithoutCancel(ctx), executionID, snapshotID); err != nil {
				e.logger.Warn("early snapshot persist failed",
					zap.String("execution_id", executionID),
					zap.String("snapshot_id", snapshotID),
					zap.Error(err),
				)
			}
		})
	}
	return adapter.Collect(callCtx, areq)
}

// effectiveTimeout provider 级 > collector 级 > 默认；
// 抓取类 provider 托底到 minScraperTimeout。
func (e *Executor) effectiveTimeout(cfg *CollectorConfig, spec ProviderSpec, adapter providers.Adapter) time.Duration {
	timeout := defaultProviderTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	if spec.TimeoutMS > 0 {
		timeout = time.Duration(spec.TimeoutMS) * time.Millisecond
	}
	if _, ok := adapter.(providers.SnapshotAware); ok && timeout < minScraperTimeout {
		timeout = minScraperTimeout
	}
	return timeout
}

// acceptAsyncSubmit 异步提交视为成功：登记后台轮询并返回 running。
func (e *Executor) acceptAsyncSubmit(
	ctx context.Context,
	req *types.Request,
	res *types.ExecutionResult,
	resp *providers.AnswerResponse,
	spec ProviderSpec,
	collectorType string,
	started time.Time,
) (*types.ExecutionResult, error) {
	snapshotID := resp.SnapshotID()
	entry := snapshot.Entry{
		SnapshotID:      snapshotID,
		ExecutionID:     res.ExecutionID,
		ResultID:        res.ResultID,
		QueryID:         req.QueryID,
		BrandID:         req.BrandID,
		CustomerID:      req.CustomerID,
		CollectorType:   collectorType,
		Provider:        spec.Name,
		SuppressScoring: req.SuppressScoring,
		SubmittedAt:     started,
		PollIntervalMS:  metaInt(resp.Metadata, brightdata.MetaPollIntervalMS),
		MaxWaitMS:       metaInt(resp.Metadata, brightdata.MetaMaxWaitMS),
	}
	if err := e.poller.Watch(ctx, entry); err != nil {
		// 轮询登记失败是硬错误：快照会丢失，按失败处理
		return e.failExecution(ctx, res, started, types.AsError(err).WithProvider(spec.Name), "snapshot registration failed"), nil
	}

	res.Status = types.ExecutionRunning
	res.SnapshotID = snapshotID
	res.Duration = e.now().Sub(started)
	res.Metadata = map[string]any{
		"async":    true,
		"provider": spec.Name,
	}
	e.metrics.RecordExecution(collectorType, "async_submitted", res.Duration)
	e.logger.Info("async submit accepted",
		zap.String("collector", collectorType),
		zap.String("provider", spec.Name),
		zap.String("execution_id", res.ExecutionID),
		zap.String("snapshot_id", snapshotID),
	)
	return res, nil
}

// finalizeSync 同步成功的最终化：结果落库、原始负载写入、打分。
func (e *Executor) finalizeSync(
	ctx context.Context,
	req *types.Request,
	res *types.ExecutionResult,
	resp *providers.AnswerResponse,
	answer string,
	started time.Time,
) (*types.ExecutionResult, error) {
	result := &state.CollectorResult{
		ID:                   res.ResultID,
		QueryID:              req.QueryID,
		ExecutionID:          res.ExecutionID,
		CollectorType:        res.CollectorType,
		RawAnswer:            answer,
		Citations:            resp.Citations,
		URLs:                 resp.URLs,
		Status:               types.ResultCompleted,
		BrightdataSnapshotID: resp.SnapshotID(),
		CollectionTimeMS:     e.now().Sub(started).Milliseconds(),
	}
	if err := e.state.UpsertResult(ctx, result); err != nil {
		return nil, err
	}
	res.ResultID = result.ID

	if err := e.state.TransitionExecution(ctx, res.ExecutionID, types.ExecutionCompleted, "executor", "provider answered", nil); err != nil {
		e.logger.Warn("completed transition failed", zap.String("execution_id", res.ExecutionID), zap.Error(err))
	}

	if raw, ok := resp.Metadata[providers.MetaRawResponse].(string); ok && raw != "" {
		if err := e.state.WriteRawResponse(ctx, result.ID, raw); err != nil {
			e.logger.Warn("raw response write rejected",
				zap.String("result_id", result.ID),
				zap.String("code", string(types.GetErrorCode(err))),
			)
		}
	}

	if !req.SuppressScoring {
		e.scorer.ScoreBrandAsync(context.WithoutCancel(ctx), result.ID, req.BrandID, req.CustomerID)
	}

	res.Status = types.ExecutionCompleted
	res.Answer = answer
	res.Citations = resp.Citations
	res.URLs = resp.URLs
	res.ModelUsed = resp.ModelUsed
	res.SnapshotID = resp.SnapshotID()
	res.Duration = e.now().Sub(started)
	e.metrics.RecordExecution(res.CollectorType, string(types.ExecutionCompleted), res.Duration)
	e.logger.Info("collector completed",
		zap.String("collector", res.CollectorType),
		zap.String("execution_id", res.ExecutionID),
		zap.Bool("fallback_used", res.FallbackUsed),
		zap.Int("answer_len", len(answer)),
	)
	return res, nil
}

// failExecution 终结失败路径：配对记录双双转入 failed。
func (e *Executor) failExecution(ctx context.Context, res *types.ExecutionResult, started time.Time, cause *types.Error, reason string) *types.ExecutionResult {
	patch := map[string]any{"error_message": cause.Error()}
	if res.ResultID != "" {
		if err := e.state.TransitionResult(ctx, res.ResultID, types.ResultFailed, "executor", reason, patch); err != nil {
			e.logger.Warn("result fail transition failed", zap.String("result_id", res.ResultID), zap.Error(err))
		}
	}
	if err := e.state.TransitionExecution(ctx, res.ExecutionID, types.ExecutionFailed, "executor", reason, patch); err != nil {
		e.logger.Warn("execution fail transition failed", zap.String("execution_id", res.ExecutionID), zap.Error(err))
	}

	res.Status = types.ExecutionFailed
	res.Error = cause
	res.Duration = e.now().Sub(started)
	e.metrics.RecordExecution(res.CollectorType, string(types.ExecutionFailed), res.Duration)
	e.logger.Warn("collector failed",
		zap.String("collector", res.CollectorType),
		zap.String("execution_id", res.ExecutionID),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	return res
}

// metaInt 从响应 metadata 中取整数值，兼容 int 与 float64（JSON 反序列化）。
func metaInt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
