package collector

import (
	"context"
	"time"

	"github.com/BaSui01/collectorflow/state"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 批量编排默认参数
const (
	DefaultBatchSize       = 3
	DefaultInterBatchDelay = time.Second
)

// OrchestratorConfig 批量编排配置
type OrchestratorConfig struct {
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay" json:"inter_batch_delay"`
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		BatchSize:       DefaultBatchSize,
		InterBatchDelay: DefaultInterBatchDelay,
	}
}

// BatchResult 一次请求在所有 collector 上的聚合结果
type BatchResult struct {
	QueryID   string                   `json:"query_id"`
	Results   []*types.ExecutionResult `json:"results"`
	Completed int                      `json:"completed"`
	Async     int                      `json:"async"`
	Failed    int                      `json:"failed"`
	Duration  time.Duration            `json:"duration"`
}

// Orchestrator 批量编排器。
// 切批作用在请求序列上：RunBatch 把请求切成 BatchSize 大小的批次
// 限制跨请求的并发，批间等待 InterBatchDelay；单个请求内部的所有
// 启用 collector 始终全并发执行，不做二次切批。
// all-settled 语义：单个 collector 的失败不会取消其它 collector，
// 只有调用方的 ctx 取消会中止整个批次。
type Orchestrator struct {
	executor *Executor
	state    *state.Manager
	config   *OrchestratorConfig
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator 创建批量编排器
func NewOrchestrator(executor *Executor, sm *state.Manager, config *OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if config == nil {
		config = DefaultOrchestratorConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.InterBatchDelay < 0 {
		config.InterBatchDelay = DefaultInterBatchDelay
	}
	return &Orchestrator{
		executor: executor,
		state:    sm,
		config:   config,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Run 执行单个请求：所有 collector 并发采集，收尾跑一轮对账。
func (o *Orchestrator) Run(ctx context.Context, req *types.Request) (*BatchResult, error) {
	if len(req.Collectors) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "request has no collectors")
	}
	started := time.Now()

	out := o.runRequest(ctx, req)
	if ctx.Err() != nil {
		return nil, types.NewError(types.ErrTimeout, "orchestration cancelled").WithCause(ctx.Err())
	}
	out.Duration = time.Since(started)

	o.reconcile(ctx)
	o.logger.Info("orchestration finished",
		zap.String("query_id", req.QueryID),
		zap.Int("collectors", len(req.Collectors)),
		zap.Int("completed", out.Completed),
		zap.Int("async", out.Async),
		zap.Int("failed", out.Failed),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}

// RunBatch 执行一批请求。
// 请求按输入顺序切成 BatchSize 大小的批次，批内请求并发、批间等待
// InterBatchDelay。返回结果与输入请求一一对应；无 collector 的请求
// 折叠成单条失败结果而不中断整批。收尾只跑一轮对账。
func (o *Orchestrator) RunBatch(ctx context.Context, reqs []*types.Request) ([]*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "batch has no requests")
	}
	started := time.Now()
	results := make([]*BatchResult, len(reqs))

	for offset := 0; offset < len(reqs); offset += o.config.BatchSize {
		if offset > 0 {
			if err := o.sleep(ctx, o.config.InterBatchDelay); err != nil {
				return nil, types.NewError(types.ErrTimeout, "orchestration cancelled between batches").WithCause(err)
			}
		}

		end := offset + o.config.BatchSize
		if end > len(reqs) {
			end = len(reqs)
		}
		batch := reqs[offset:end]
		o.logger.Debug("request batch start",
			zap.Int("offset", offset),
			zap.Int("size", len(batch)),
		)

		g, gctx := errgroup.WithContext(ctx)
		for i, req := range batch {
			idx := offset + i
			g.Go(func() error {
				if len(req.Collectors) == 0 {
					results[idx] = &BatchResult{
						QueryID: req.QueryID,
						Results: []*types.ExecutionResult{{
							QueryID: req.QueryID,
							Status:  types.ExecutionFailed,
							Error:   types.NewError(types.ErrInvalidInput, "request has no collectors"),
						}},
						Failed: 1,
					}
					return nil
				}
				results[idx] = o.runRequest(gctx, req)
				return nil
			})
		}
		// goroutine 从不返回错误，Wait 只等待批内完成
		_ = g.Wait()

		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrTimeout, "orchestration cancelled").WithCause(ctx.Err())
		}
	}

	o.reconcile(ctx)

	var completed, async, failed int
	for _, r := range results {
		if r == nil {
			continue
		}
		completed += r.Completed
		async += r.Async
		failed += r.Failed
	}
	o.logger.Info("batch orchestration finished",
		zap.Int("requests", len(reqs)),
		zap.Int("completed", completed),
		zap.Int("async", async),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(started)),
	)
	return results, nil
}

// runRequest 单个请求的全并发 collector 扇出，all-settled 聚合。
func (o *Orchestrator) runRequest(ctx context.Context, req *types.Request) *BatchResult {
	started := time.Now()
	results := make([]*types.ExecutionResult, len(req.Collectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, collectorType := range req.Collectors {
		g.Go(func() error {
			res, err := o.executor.Execute(gctx, req, collectorType)
			if err != nil {
				// 持久化层不可用等硬错误也折叠进单 collector 结果
				res = &types.ExecutionResult{
					QueryID:       req.QueryID,
					CollectorType: collectorType,
					Status:        types.ExecutionFailed,
					Error:         types.AsError(err),
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{QueryID: req.QueryID}
	for _, res := range results {
		if res == nil {
			continue
		}
		out.Results = append(out.Results, res)
		switch {
		case res.Status == types.ExecutionCompleted:
			out.Completed++
		case res.Status == types.ExecutionRunning && res.Async():
			out.Async++
		case res.Status == types.ExecutionFailed:
			out.Failed++
		}
	}
	out.Duration = time.Since(started)
	return out
}

// reconcile 收尾对账：收敛上一轮遗留的中间态。
func (o *Orchestrator) reconcile(ctx context.Context) {
	if report, err := o.state.Reconcile(ctx); err != nil {
		o.logger.Warn("post-run reconcile failed", zap.Error(err))
	} else if report.Completed+report.Failed+report.Downgraded > 0 {
		o.logger.Info("post-run reconcile applied",
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("downgraded", report.Downgraded),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
