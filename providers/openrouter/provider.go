package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://openrouter.ai/api"

// defaultModels collector → OpenRouter 模型的缺省映射，可被配置覆盖
var defaultModels = map[string]string{
	types.CollectorChatGPT:    "openai/gpt-4o",
	types.CollectorClaude:     "anthropic/claude-sonnet-4",
	types.CollectorGemini:     "google/gemini-2.5-pro",
	types.CollectorGrok:       "x-ai/grok-3",
	types.CollectorPerplexity: "perplexity/sonar",
}

// Provider 直连 LLM 适配器：POST chat-completion 请求，
// 原样返回首个 choice 的内容；引用为空。
type Provider struct {
	cfg           providers.OpenRouterConfig
	name          string
	collectorType string
	client        *http.Client
	logger        *zap.Logger
}

// New 创建 OpenRouter 适配器。name 形如 "openrouter_claude"。
func New(cfg providers.OpenRouterConfig, collectorType string, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		cfg:           cfg,
		name:          "openrouter_" + collectorType,
		collectorType: collectorType,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

func (p *Provider) Name() string { return p.name }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Collect 实现 providers.Adapter。
func (p *Provider) Collect(ctx context.Context, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
	if p.cfg.APIKey == "" {
		return nil, types.NewError(types.ErrConfigurationMissing, "openrouter api key is not configured").
			WithProvider(p.name)
	}

	model := p.model()
	body := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/chat/completions"
	status, data, err := providers.DoJSON(ctx, p.client, http.MethodPost, endpoint, p.headers(), body)
	if err != nil {
		return nil, providers.ClassifyTransportError(err, p.name)
	}
	if status >= 400 {
		return nil, providers.MapHTTPError(status, providers.ReadErrMsg(data), p.name)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, types.NewError(types.ErrParse, "completion body is not json").
			WithProvider(p.name).
			WithCause(err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, types.NewError(types.ErrEmptyResponse, "completion returned no choices").
			WithProvider(p.name)
	}

	modelUsed := parsed.Model
	if modelUsed == "" {
		modelUsed = model
	}
	resp := &providers.AnswerResponse{
		Answer:        parsed.Choices[0].Message.Content,
		ModelUsed:     modelUsed,
		CollectorType: p.collectorType,
	}
	resp.SetMeta(providers.MetaProvider, p.name)
	resp.SetMeta(providers.MetaRawResponse, string(data))
	return resp, nil
}

// HealthCheck 实现 providers.Adapter。
func (p *Provider) HealthCheck(ctx context.Context) (*providers.HealthStatus, error) {
	start := time.Now()
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/models"
	status, data, err := providers.DoJSON(ctx, p.client, http.MethodGet, endpoint, p.headers(), nil)
	latency := time.Since(start)
	if err != nil {
		return &providers.HealthStatus{Healthy: false, Latency: latency}, err
	}
	if status != http.StatusOK {
		return &providers.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("openrouter health check failed: status=%d msg=%s", status, providers.ReadErrMsg(data))
	}
	return &providers.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.cfg.APIKey,
	}
}

func (p *Provider) model() string {
	if m, ok := p.cfg.Models[p.collectorType]; ok && m != "" {
		return m
	}
	if m, ok := defaultModels[p.collectorType]; ok {
		return m
	}
	return "openai/gpt-4o"
}

var _ providers.Adapter = (*Provider)(nil)
