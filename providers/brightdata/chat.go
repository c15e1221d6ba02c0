package brightdata

import (
	"context"
	"time"

	"github.com/BaSui01/collectorflow/normalize"
	"github.com/BaSui01/collectorflow/providers"
	"go.uber.org/zap"
)

// quickPollTimeout 提交后对快照做一次短轮询的时间预算
const quickPollTimeout = 5 * time.Second

// ChatScraper 异步 chat-style scraper 适配器。
// 向数据集触发端点提交一条输入（目标 URL + prompt + country），
// 提交后做一次 ≤5s 的快速轮询；未就绪则返回异步提交形状，
// 快照 id 交由 snapshot 包后台轮询。
type ChatScraper struct {
	client        *Client
	name          string
	collectorType string
	datasetID     string
	targetURL     string
	logger        *zap.Logger
}

// NewChatScraper 创建异步 chat scraper 适配器。
// targetURL 是被抓取的答案引擎页面（如 https://chatgpt.com/）。
func NewChatScraper(client *Client, name, collectorType, datasetID, targetURL string, logger *zap.Logger) *ChatScraper {
	return &ChatScraper{
		client:        client,
		name:          name,
		collectorType: collectorType,
		datasetID:     datasetID,
		targetURL:     targetURL,
		logger:        logger,
	}
}

func (s *ChatScraper) Name() string { return s.name }

// Collect 实现 providers.Adapter。
func (s *ChatScraper) Collect(ctx context.Context, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
	return s.CollectWithSnapshot(ctx, req, nil)
}

// CollectWithSnapshot 实现 providers.SnapshotAware。
func (s *ChatScraper) CollectWithSnapshot(ctx context.Context, req *providers.AnswerRequest, onSnapshot func(string)) (*providers.AnswerResponse, error) {
	input := map[string]any{
		"url":    s.targetURL,
		"prompt": req.Prompt,
	}
	if req.Country != "" {
		input["country"] = req.Country
	}

	snapshotID, _, err := s.client.TriggerDataset(ctx, s.name, s.datasetID, []map[string]any{input})
	if err != nil {
		return nil, err
	}
	if onSnapshot != nil {
		onSnapshot(snapshotID)
	}

	// 快速轮询：就绪则直接走同步成功形状
	quickCtx, cancel := context.WithTimeout(ctx, quickPollTimeout)
	defer cancel()
	if data, err := s.client.FetchSnapshot(quickCtx, s.name, snapshotID); err == nil {
		if resp := s.normalizeSnapshot(data, snapshotID); resp != nil {
			s.logger.Debug("quick poll hit",
				zap.String("provider", s.name),
				zap.String("snapshot_id", snapshotID),
			)
			return resp, nil
		}
		// 答案为空视为未就绪，继续后台轮询
	}

	return s.asyncSubmit(snapshotID), nil
}

// NormalizeSnapshot 将就绪的快照数据规范化为同步成功形状。
// 答案为空返回 nil（表示"尚未就绪"）。供后台轮询方复用。
func (s *ChatScraper) NormalizeSnapshot(data *SnapshotData, snapshotID string) *providers.AnswerResponse {
	return s.normalizeSnapshot(data, snapshotID)
}

func (s *ChatScraper) normalizeSnapshot(data *SnapshotData, snapshotID string) *providers.AnswerResponse {
	value := unwrapFirstItem(data.Value)
	answer := normalize.ExtractAnswer(value)
	if answer == "" {
		return nil
	}

	resp := &providers.AnswerResponse{
		Answer:        answer,
		Citations:     normalize.ExtractURLs(value),
		URLs:          normalize.ExtractURLs(value),
		ModelUsed:     normalize.ExtractModel(value),
		CollectorType: s.collectorType,
	}
	resp.SetMeta(providers.MetaProvider, s.name)
	resp.SetMeta(providers.MetaDatasetID, s.datasetID)
	resp.SetMeta(providers.MetaSnapshotID, snapshotID)
	resp.SetMeta(providers.MetaRawResponse, string(data.Raw))
	return resp
}

func (s *ChatScraper) asyncSubmit(snapshotID string) *providers.AnswerResponse {
	resp := &providers.AnswerResponse{
		CollectorType: s.collectorType,
	}
	resp.SetMeta(providers.MetaProvider, s.name)
	resp.SetMeta(providers.MetaDatasetID, s.datasetID)
	resp.SetMeta(providers.MetaSnapshotID, snapshotID)
	resp.SetMeta(providers.MetaAsync, true)
	return resp
}

// HealthCheck 实现 providers.Adapter。
func (s *ChatScraper) HealthCheck(ctx context.Context) (*providers.HealthStatus, error) {
	if !s.client.Configured() {
		return &providers.HealthStatus{Healthy: false, Message: "credentials missing"}, nil
	}
	latency, err := s.client.Ping(ctx)
	if err != nil {
		return &providers.HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, err
	}
	return &providers.HealthStatus{Healthy: true, Latency: latency}, nil
}

// unwrapFirstItem 快照以数组形式返回时取第一条记录。
func unwrapFirstItem(value any) any {
	if arr, ok := value.([]any); ok && len(arr) > 0 {
		return arr[0]
	}
	return value
}

var _ providers.Adapter = (*ChatScraper)(nil)
var _ providers.SnapshotAware = (*ChatScraper)(nil)
