package brightdata

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/collectorflow/normalize"
	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

// AIO 批量轮询节奏：30s 一次，最长 15 分钟
const (
	aioPollInterval = 30 * time.Second
	aioMaxWait      = 15 * time.Minute
)

// Metadata keys specific to the AIO batch adapter.
const (
	MetaPollIntervalMS = "poll_interval_ms"
	MetaMaxWaitMS      = "max_wait_ms"
	MetaInputIndex     = "input_index"
)

// AIOBatchAdapter AI-overview SERP 批量适配器。
// 一次把整批 prompt POST 到数据集触发端点；之后按 30s 节奏轮询
// 单快照端点，最长 15 分钟；就绪后逐条规范化，按输入序号对应结果。
type AIOBatchAdapter struct {
	client        *Client
	name          string
	collectorType string
	datasetID     string
	logger        *zap.Logger

	// 可注入的轮询节奏，测试用
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewAIOBatchAdapter 创建 AI-overview 批量适配器。
func NewAIOBatchAdapter(client *Client, name, collectorType, datasetID string, logger *zap.Logger) *AIOBatchAdapter {
	return &AIOBatchAdapter{
		client:        client,
		name:          name,
		collectorType: collectorType,
		datasetID:     datasetID,
		logger:        logger,
		pollInterval:  aioPollInterval,
		maxWait:       aioMaxWait,
	}
}

func (a *AIOBatchAdapter) Name() string { return a.name }

// Collect 实现 providers.Adapter：单条请求走批量通道并立即返回异步提交形状，
// 后台轮询由 snapshot 包按 metadata 中的节奏提示接管。
func (a *AIOBatchAdapter) Collect(ctx context.Context, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
	return a.CollectWithSnapshot(ctx, req, nil)
}

// CollectWithSnapshot 实现 providers.SnapshotAware。
func (a *AIOBatchAdapter) CollectWithSnapshot(ctx context.Context, req *providers.AnswerRequest, onSnapshot func(string)) (*providers.AnswerResponse, error) {
	snapshotID, _, err := a.trigger(ctx, []*providers.AnswerRequest{req})
	if err != nil {
		return nil, err
	}
	if onSnapshot != nil {
		onSnapshot(snapshotID)
	}

	resp := &providers.AnswerResponse{CollectorType: a.collectorType}
	resp.SetMeta(providers.MetaProvider, a.name)
	resp.SetMeta(providers.MetaDatasetID, a.datasetID)
	resp.SetMeta(providers.MetaSnapshotID, snapshotID)
	resp.SetMeta(providers.MetaAsync, true)
	resp.SetMeta(MetaPollIntervalMS, int(a.pollInterval/time.Millisecond))
	resp.SetMeta(MetaMaxWaitMS, int(a.maxWait/time.Millisecond))
	return resp, nil
}

// CollectBatch 批量入口：触发后原地轮询直至就绪或超时，
// 返回与输入同序的结果切片（个别条目失败时对应位置为 nil）。
func (a *AIOBatchAdapter) CollectBatch(ctx context.Context, reqs []*providers.AnswerRequest) ([]*providers.AnswerResponse, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	snapshotID, _, err := a.trigger(ctx, reqs)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(a.maxWait)
	for {
		data, err := a.client.FetchSnapshot(ctx, a.name, snapshotID)
		if err == nil {
			return a.normalizeBatch(data, snapshotID, len(reqs)), nil
		}
		if !types.IsRetryable(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, types.NewError(types.ErrTimeout,
				fmt.Sprintf("aio snapshot %s not ready after %s", snapshotID, a.maxWait)).
				WithProvider(a.name)
		}

		a.logger.Debug("aio snapshot not ready",
			zap.String("snapshot_id", snapshotID),
			zap.Duration("retry_in", a.pollInterval),
		)
		select {
		case <-ctx.Done():
			return nil, types.NewError(types.ErrTimeout, "aio batch cancelled").WithCause(ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}

// NormalizeSnapshot 后台轮询方的单条规范化入口（取批内第一条）。
func (a *AIOBatchAdapter) NormalizeSnapshot(data *SnapshotData, snapshotID string) *providers.AnswerResponse {
	items := a.normalizeBatch(data, snapshotID, 1)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func (a *AIOBatchAdapter) trigger(ctx context.Context, reqs []*providers.AnswerRequest) (string, []byte, error) {
	inputs := make([]map[string]any, 0, len(reqs))
	for _, req := range reqs {
		input := map[string]any{"prompt": req.Prompt}
		if req.Country != "" {
			input["country"] = req.Country
		}
		inputs = append(inputs, input)
	}
	return a.client.TriggerDataset(ctx, a.name, a.datasetID, inputs)
}

// normalizeBatch 逐条规范化快照条目，保持输入序号对应。
func (a *AIOBatchAdapter) normalizeBatch(data *SnapshotData, snapshotID string, expected int) []*providers.AnswerResponse {
	items, ok := data.Value.([]any)
	if !ok {
		items = []any{data.Value}
	}

	out := make([]*providers.AnswerResponse, expected)
	for i := 0; i < expected && i < len(items); i++ {
		answer := normalize.ExtractAnswer(items[i])
		if answer == "" {
			continue
		}
		urls := normalize.ExtractURLs(items[i])
		resp := &providers.AnswerResponse{
			Answer:        answer,
			Citations:     urls,
			URLs:          urls,
			ModelUsed:     normalize.ExtractModel(items[i]),
			CollectorType: a.collectorType,
		}
		resp.SetMeta(providers.MetaProvider, a.name)
		resp.SetMeta(providers.MetaDatasetID, a.datasetID)
		resp.SetMeta(providers.MetaSnapshotID, snapshotID)
		resp.SetMeta(MetaInputIndex, i)
		out[i] = resp
	}
	return out
}

// HealthCheck 实现 providers.Adapter。
func (a *AIOBatchAdapter) HealthCheck(ctx context.Context) (*providers.HealthStatus, error) {
	if !a.client.Configured() {
		return &providers.HealthStatus{Healthy: false, Message: "credentials missing"}, nil
	}
	latency, err := a.client.Ping(ctx)
	if err != nil {
		return &providers.HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, err
	}
	return &providers.HealthStatus{Healthy: true, Latency: latency}, nil
}

var _ providers.Adapter = (*AIOBatchAdapter)(nil)
var _ providers.SnapshotAware = (*AIOBatchAdapter)(nil)
