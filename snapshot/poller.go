package snapshot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/collectorflow/collector/circuitbreaker"
	"github.com/BaSui01/collectorflow/normalize"
	"github.com/BaSui01/collectorflow/providers/brightdata"
	"github.com/BaSui01/collectorflow/state"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

// 默认轮询节奏：10s 一次，最长 10 分钟（60 次）
const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxWait      = 10 * time.Minute
)

// 本地熔断默认参数：连续失败 5 次打开，60s 后半开试探
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

// Fetcher 下载快照的最小契约，由 brightdata.Client 满足。
type Fetcher interface {
	FetchSnapshot(ctx context.Context, provider, snapshotID string) (*brightdata.SnapshotData, error)
}

// Scorer 最终化成功后的 fire-and-forget 打分钩子。
// 与 meta.Scorer 结构一致，打分失败永不影响采集结果本身。
type Scorer interface {
	ScoreBrandAsync(ctx context.Context, resultID, brandID, customerID string)
}

// Config Poller 的可调参数。
// FailureThreshold/ResetTimeout 控制每条快照的本地熔断器：
// 连续的传输类抓取失败达到阈值后暂停抓取，等待复位窗口再试探。
type Config struct {
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxWait          time.Duration `yaml:"max_wait" json:"max_wait"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// DefaultConfig 返回默认轮询节奏
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     DefaultPollInterval,
		MaxWait:          DefaultMaxWait,
		FailureThreshold: DefaultFailureThreshold,
		ResetTimeout:     DefaultResetTimeout,
	}
}

// Poller 后台轮询在途快照并执行最终化协议。
type Poller struct {
	fetcher  Fetcher
	state    *state.Manager
	registry Registry
	scorer   Scorer
	logger   *zap.Logger
	config   *Config

	now func() time.Time

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewPoller 创建后台轮询器。scorer 可为 nil（不打分）。
func NewPoller(fetcher Fetcher, sm *state.Manager, registry Registry, scorer Scorer, config *Config, logger *zap.Logger) *Poller {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MaxWait <= 0 {
		config.MaxWait = DefaultMaxWait
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	return &Poller{
		fetcher:  fetcher,
		state:    sm,
		registry: registry,
		scorer:   scorer,
		logger:   logger,
		config:   config,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Watch 登记一条在途快照并启动后台轮询。
func (p *Poller) Watch(ctx context.Context, entry Entry) error {
	if entry.SnapshotID == "" || entry.ExecutionID == "" {
		return types.NewError(types.ErrInvalidInput, "snapshot entry requires snapshot_id and execution_id")
	}
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = p.now()
	}
	if err := p.registry.Add(ctx, entry); err != nil {
		return err
	}
	p.spawn(entry)
	return nil
}

// Resume 重挂登记表中的所有在途快照（进程重启后调用）。
func (p *Poller) Resume(ctx context.Context) (int, error) {
	entries, err := p.registry.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		p.spawn(entry)
	}
	if len(entries) > 0 {
		p.logger.Info("resumed in-flight snapshots", zap.Int("count", len(entries)))
	}
	return len(entries), nil
}

// Close 停止所有轮询 goroutine 并等待退出。
func (p *Poller) Close() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stop)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) spawn(entry Entry) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.watch(entry)
	}()
}

// watch 单条快照的轮询循环。
// 未就绪（可重试错误或空答案）继续等；不可重试错误立刻失败；
// 超过等待预算以 reason=timeout 失败。连续的传输类失败触发
// 本地熔断：熔断打开期间跳过抓取，预算照常消耗。
func (p *Poller) watch(entry Entry) {
	interval := entry.PollEvery(p.config.PollInterval)
	deadline := entry.SubmittedAt.Add(entry.WaitBudget(p.config.MaxWait))

	breaker := circuitbreaker.NewBreaker("snapshot:"+entry.SnapshotID, &circuitbreaker.Config{
		Threshold:    p.config.FailureThreshold,
		ResetTimeout: p.config.ResetTimeout,
	}, p.logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		if p.now().After(deadline) {
			p.finalizeFailure(entry, types.NewError(types.ErrTimeout, "snapshot did not become ready within wait budget"), "timeout")
			return
		}

		if err := breaker.Allow(); err != nil {
			// 熔断打开：本轮不抓取，等复位窗口过去再试探
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		data, err := p.fetcher.FetchSnapshot(ctx, entry.Provider, entry.SnapshotID)
		cancel()

		if err != nil {
			if types.IsRetryable(err) {
				// 还在构建中的快照（PARSE_ERROR）不算故障；
				// 传输类失败计入熔断计数
				if types.GetErrorCode(err) == types.ErrParse {
					breaker.RecordSuccess()
				} else {
					breaker.RecordFailure()
				}
				continue
			}
			p.finalizeFailure(entry, types.AsError(err), "provider error")
			return
		}
		breaker.RecordSuccess()

		value := firstItem(data.Value)
		answer := normalize.ExtractAnswer(value)
		if strings.TrimSpace(answer) == "" {
			// 快照已下载但答案为空，视为尚未就绪
			continue
		}

		p.finalizeSuccess(entry, data, value, answer)
		return
	}
}

// finalizeSuccess 最终化协议的成功分支。
func (p *Poller) finalizeSuccess(entry Entry, data *brightdata.SnapshotData, value any, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	urls := normalize.ExtractURLs(value)
	result := &state.CollectorResult{
		QueryID:              entry.QueryID,
		ExecutionID:          entry.ExecutionID,
		CollectorType:        entry.CollectorType,
		RawAnswer:            answer,
		Citations:            urls,
		URLs:                 urls,
		Status:               types.ResultCompleted,
		BrightdataSnapshotID: entry.SnapshotID,
		CollectionTimeMS:     p.collectionTime(ctx, entry),
	}
	if existing, err := p.state.FindResultBySnapshotID(ctx, entry.SnapshotID); err == nil {
		result.ID = existing.ID
		result.Brand = existing.Brand
		result.Question = existing.Question
		result.Competitors = existing.Competitors
		result.Metadata = existing.Metadata
	} else if entry.ResultID != "" {
		result.ID = entry.ResultID
	}

	if err := p.state.UpsertResult(ctx, result); err != nil {
		p.logger.Error("snapshot finalization upsert failed",
			zap.String("snapshot_id", entry.SnapshotID),
			zap.String("execution_id", entry.ExecutionID),
			zap.Error(err),
		)
		_ = p.registry.Remove(ctx, entry.SnapshotID)
		return
	}

	if err := p.state.TransitionExecution(ctx, entry.ExecutionID, types.ExecutionCompleted, "poller", "snapshot ready", nil); err != nil {
		p.logger.Warn("execution transition failed after finalization",
			zap.String("execution_id", entry.ExecutionID),
			zap.Error(err),
		)
	}

	// 第二次容错更新：原始负载单独写，失败只告警
	if err := p.state.WriteRawResponse(ctx, result.ID, string(data.Raw)); err != nil {
		p.logger.Warn("raw response write rejected",
			zap.String("result_id", result.ID),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err),
		)
	}

	if p.scorer != nil && !entry.SuppressScoring {
		p.scorer.ScoreBrandAsync(context.Background(), result.ID, entry.BrandID, entry.CustomerID)
	}

	_ = p.registry.Remove(ctx, entry.SnapshotID)
	p.logger.Info("snapshot finalized",
		zap.String("snapshot_id", entry.SnapshotID),
		zap.String("execution_id", entry.ExecutionID),
		zap.String("collector", entry.CollectorType),
		zap.Int("answer_len", len(answer)),
	)
}

// finalizeFailure 最终化协议的失败分支。
func (p *Poller) finalizeFailure(entry Entry, cause *types.Error, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	patch := map[string]any{"error_message": cause.Error()}
	if result, err := p.state.FindResultBySnapshotID(ctx, entry.SnapshotID); err == nil {
		if err := p.state.TransitionResult(ctx, result.ID, types.ResultFailed, "poller", reason, patch); err != nil {
			p.logger.Warn("result transition failed",
				zap.String("result_id", result.ID),
				zap.Error(err),
			)
		}
	}
	if err := p.state.TransitionExecution(ctx, entry.ExecutionID, types.ExecutionFailed, "poller", reason, patch); err != nil {
		p.logger.Warn("execution transition failed",
			zap.String("execution_id", entry.ExecutionID),
			zap.Error(err),
		)
	}

	_ = p.registry.Remove(ctx, entry.SnapshotID)
	p.logger.Warn("snapshot abandoned",
		zap.String("snapshot_id", entry.SnapshotID),
		zap.String("execution_id", entry.ExecutionID),
		zap.String("reason", reason),
		zap.Error(cause),
	)
}

// collectionTime 从 Execution 第一条状态流转起算的耗时（毫秒）。
func (p *Poller) collectionTime(ctx context.Context, entry Entry) int64 {
	start := entry.SubmittedAt
	if exec, err := p.state.GetExecution(ctx, entry.ExecutionID); err == nil {
		if first, ok := state.FirstTransitionAt(exec.Metadata); ok {
			start = first
		}
	}
	return p.now().Sub(start).Milliseconds()
}

// firstItem 快照以数组形式返回时取第一条记录。
func firstItem(value any) any {
	if arr, ok := value.([]any); ok && len(arr) > 0 {
		return arr[0]
	}
	return value
}
