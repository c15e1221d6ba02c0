package providers

import "time"

// BrightDataConfig Bright Data scraper 后端配置
type BrightDataConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// 按 collector 维度的数据集 id
	ChatGPTDatasetID    string `json:"chatgpt_dataset_id,omitempty" yaml:"chatgpt_dataset_id,omitempty"`
	GeminiDatasetID     string `json:"gemini_dataset_id,omitempty" yaml:"gemini_dataset_id,omitempty"`
	CopilotDatasetID    string `json:"copilot_dataset_id,omitempty" yaml:"copilot_dataset_id,omitempty"`
	PerplexityDatasetID string `json:"perplexity_dataset_id,omitempty" yaml:"perplexity_dataset_id,omitempty"`
	AIODatasetID        string `json:"aio_dataset_id,omitempty" yaml:"aio_dataset_id,omitempty"`

	// PollRate 限制对快照端点的请求速率（每秒请求数，0 表示不限）
	PollRate float64 `json:"poll_rate,omitempty" yaml:"poll_rate,omitempty"`
}

// OpenRouterConfig 直连 LLM chat-completion 后端配置
type OpenRouterConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// 按 collector 维度的模型映射（如 claude → anthropic/claude-sonnet-4）
	Models map[string]string `json:"models,omitempty" yaml:"models,omitempty"`
}

// MockConfig 确定性 mock 适配器配置。
// Enabled 为 false 时工厂拒绝构造 mock，防止生产请求落到合成数据。
type MockConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Answer  string        `json:"answer,omitempty" yaml:"answer,omitempty"`
	Latency time.Duration `json:"latency,omitempty" yaml:"latency,omitempty"`
}
