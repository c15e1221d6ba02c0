package brightdata

import (
	"context"

	"github.com/BaSui01/collectorflow/normalize"
	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

// SyncScraper 同步 chat-style scraper 适配器。
// POST 到同步抓取端点直接拿结果；后端负载高返回 202+snapshot id 时
// 提升为异步路径（快速轮询一次，仍未就绪则按异步提交返回）。
type SyncScraper struct {
	client        *Client
	name          string
	collectorType string
	datasetID     string
	targetURL     string
	logger        *zap.Logger
}

// NewSyncScraper 创建同步 scraper 适配器。
func NewSyncScraper(client *Client, name, collectorType, datasetID, targetURL string, logger *zap.Logger) *SyncScraper {
	return &SyncScraper{
		client:        client,
		name:          name,
		collectorType: collectorType,
		datasetID:     datasetID,
		targetURL:     targetURL,
		logger:        logger,
	}
}

func (s *SyncScraper) Name() string { return s.name }

// Collect 实现 providers.Adapter。
func (s *SyncScraper) Collect(ctx context.Context, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
	return s.CollectWithSnapshot(ctx, req, nil)
}

// CollectWithSnapshot 实现 providers.SnapshotAware。
func (s *SyncScraper) CollectWithSnapshot(ctx context.Context, req *providers.AnswerRequest, onSnapshot func(string)) (*providers.AnswerResponse, error) {
	input := map[string]any{
		"url":    s.targetURL,
		"prompt": req.Prompt,
	}
	if req.Country != "" {
		input["country"] = req.Country
	}

	data, snapshotID, err := s.client.SyncScrape(ctx, s.name, s.datasetID, input)
	if err != nil {
		return nil, err
	}

	// 202：提升为异步路径
	if snapshotID != "" {
		if onSnapshot != nil {
			onSnapshot(snapshotID)
		}
		s.logger.Debug("sync scrape promoted to polling",
			zap.String("provider", s.name),
			zap.String("snapshot_id", snapshotID),
		)

		quickCtx, cancel := context.WithTimeout(ctx, quickPollTimeout)
		defer cancel()
		if polled, err := s.client.FetchSnapshot(quickCtx, s.name, snapshotID); err == nil {
			if resp := s.normalize(polled, snapshotID); resp != nil {
				return resp, nil
			}
		}

		resp := &providers.AnswerResponse{CollectorType: s.collectorType}
		resp.SetMeta(providers.MetaProvider, s.name)
		resp.SetMeta(providers.MetaDatasetID, s.datasetID)
		resp.SetMeta(providers.MetaSnapshotID, snapshotID)
		resp.SetMeta(providers.MetaAsync, true)
		return resp, nil
	}

	// 同步路径：直接解析
	resp := s.normalize(data, "")
	if resp == nil {
		return nil, types.NewError(types.ErrEmptyResponse, "scrape returned no usable content").
			WithProvider(s.name)
	}
	return resp, nil
}

// NormalizeSnapshot 供后台轮询方复用的规范化入口。
func (s *SyncScraper) NormalizeSnapshot(data *SnapshotData, snapshotID string) *providers.AnswerResponse {
	return s.normalize(data, snapshotID)
}

func (s *SyncScraper) normalize(data *SnapshotData, snapshotID string) *providers.AnswerResponse {
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
	if snapshotID != "" {
		resp.SetMeta(providers.MetaSnapshotID, snapshotID)
	}
	resp.SetMeta(providers.MetaRawResponse, string(data.Raw))
	return resp
}

// HealthCheck 实现 providers.Adapter。
func (s *SyncScraper) HealthCheck(ctx context.Context) (*providers.HealthStatus, error) {
	if !s.client.Configured() {
		return &providers.HealthStatus{Healthy: false, Message: "credentials missing"}, nil
	}
	latency, err := s.client.Ping(ctx)
	if err != nil {
		return &providers.HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, err
	}
	return &providers.HealthStatus{Healthy: true, Latency: latency}, nil
}

var _ providers.Adapter = (*SyncScraper)(nil)
var _ providers.SnapshotAware = (*SyncScraper)(nil)
