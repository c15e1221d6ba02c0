package brightdata

import (
	"context"
	"net/url"

	"github.com/BaSui01/collectorflow/normalize"
	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

// SERPAdapter 搜索型 SERP 适配器（同步）。
// GET 带 query/locale/country 的搜索 URL，把有序的 text_block 序列
// （paragraph/heading/list/code/table）拼成 Markdown 风格纯文本；
// 引用 URL 取自顶层 references 列表与各块的内联链接注解。
type SERPAdapter struct {
	client        *Client
	name          string
	collectorType string
	engine        string // 目标引擎标识，随查询参数传给 SERP 接口
	logger        *zap.Logger
}

// NewSERPAdapter 创建 SERP 适配器。
func NewSERPAdapter(client *Client, name, collectorType, engine string, logger *zap.Logger) *SERPAdapter {
	return &SERPAdapter{
		client:        client,
		name:          name,
		collectorType: collectorType,
		engine:        engine,
		logger:        logger,
	}
}

func (s *SERPAdapter) Name() string { return s.name }

// Collect 实现 providers.Adapter。
func (s *SERPAdapter) Collect(ctx context.Context, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
	params := url.Values{}
	params.Set("q", req.Prompt)
	params.Set("engine", s.engine)
	params.Set("brd_json", "1")
	if req.Locale != "" {
		params.Set("hl", req.Locale)
	}
	if req.Country != "" {
		params.Set("gl", req.Country)
	}

	data, err := s.client.SERPSearch(ctx, s.name, params)
	if err != nil {
		return nil, err
	}

	root, _ := data.Value.(map[string]any)
	answer := s.extractAnswer(root)
	if answer == "" {
		return nil, types.NewError(types.ErrEmptyResponse, "serp response carries no text blocks").
			WithProvider(s.name)
	}

	urls := normalize.ExtractURLs(data.Value)
	resp := &providers.AnswerResponse{
		Answer:        answer,
		Citations:     urls,
		URLs:          urls,
		ModelUsed:     normalize.ExtractModel(data.Value),
		CollectorType: s.collectorType,
	}
	resp.SetMeta(providers.MetaProvider, s.name)
	resp.SetMeta(providers.MetaRawResponse, string(data.Raw))
	return resp, nil
}

// extractAnswer 优先走 text_blocks，回退到通用提取链。
func (s *SERPAdapter) extractAnswer(root map[string]any) string {
	if root != nil {
		if blocks, ok := root["text_blocks"].([]any); ok {
			if md := normalize.BlocksToMarkdown(blocks); md != "" {
				return md
			}
		}
		// 部分版本把块藏在 answer 节点下
		if answerNode, ok := root["answer"].(map[string]any); ok {
			if blocks, ok := answerNode["text_blocks"].([]any); ok {
				if md := normalize.BlocksToMarkdown(blocks); md != "" {
					return md
				}
			}
		}
	}
	return normalize.ExtractAnswer(root)
}

// HealthCheck 实现 providers.Adapter。
func (s *SERPAdapter) HealthCheck(ctx context.Context) (*providers.HealthStatus, error) {
	if !s.client.Configured() {
		return &providers.HealthStatus{Healthy: false, Message: "credentials missing"}, nil
	}
	latency, err := s.client.Ping(ctx)
	if err != nil {
		return &providers.HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, err
	}
	return &providers.HealthStatus{Healthy: true, Latency: latency}, nil
}

var _ providers.Adapter = (*SERPAdapter)(nil)
