package collector

import (
	"sort"
	"sync"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
)

// ProviderSpec 一条 provider 链中的单个 provider 配置
type ProviderSpec struct {
	// Name 适配器注册名（如 brightdata_chatgpt、openrouter_claude）
	Name string `yaml:"name" json:"name"`
	// Priority 越小越先尝试
	Priority int `yaml:"priority" json:"priority"`
	// Enabled 关闭后该 provider 被跳过
	Enabled bool `yaml:"enabled" json:"enabled"`
	// TimeoutMS 单个 provider 的超时，0 时用 collector 级超时
	TimeoutMS int `yaml:"timeout_ms" json:"timeout_ms"`
	// FallbackOnFailure 为 false 时本 provider 失败即终止整条链
	FallbackOnFailure bool `yaml:"fallback_on_failure" json:"fallback_on_failure"`
}

// CollectorConfig 单个 collector 的执行配置。
// Retries 是链级的总尝试次数：每个轮次从头走一遍 provider 链，
// 0 时用全局重试策略。
type CollectorConfig struct {
	Name      string         `yaml:"name" json:"name"`
	Enabled   bool           `yaml:"enabled" json:"enabled"`
	TimeoutMS int            `yaml:"timeout_ms" json:"timeout_ms"`
	Retries   int            `yaml:"retries" json:"retries"`
	Providers []ProviderSpec `yaml:"providers" json:"providers"`
}

// EnabledProviders 返回按 priority 升序排列的启用 provider。
// 同优先级保持配置中的书写顺序。
func (c *CollectorConfig) EnabledProviders() []ProviderSpec {
	out := make([]ProviderSpec, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Registry 绑定 collector 配置与 provider 适配器实例。
type Registry struct {
	mu       sync.RWMutex
	configs  map[string]*CollectorConfig
	adapters map[string]providers.Adapter
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		configs:  make(map[string]*CollectorConfig),
		adapters: make(map[string]providers.Adapter),
	}
}

// RegisterCollector 注册（或覆盖）一个 collector 配置
func (r *Registry) RegisterCollector(cfg *CollectorConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
}

// RegisterAdapter 注册一个 provider 适配器
func (r *Registry) RegisterAdapter(adapter providers.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Collector 返回 collector 配置
func (r *Registry) Collector(name string) (*CollectorConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Adapter 返回 provider 适配器
func (r *Registry) Adapter(name string) (providers.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Collectors 返回所有已注册 collector 名（排序后）
func (r *Registry) Collectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapters 返回所有已注册适配器名（排序后）
func (r *Registry) Adapters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultChains 返回各 collector 的默认 provider 链。
// 主路径是 Bright Data 抓取，OpenRouter 作为回退；
// claude 与 grok 没有可用的抓取数据集，直接走 OpenRouter。
func DefaultChains() map[string]*CollectorConfig {
	return map[string]*CollectorConfig{
		types.CollectorChatGPT: {
			Name:    types.CollectorChatGPT,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "brightdata_chatgpt", Priority: 1, Enabled: true, FallbackOnFailure: true},
				{Name: "openrouter_chatgpt", Priority: 2, Enabled: true, FallbackOnFailure: true},
			},
		},
		types.CollectorGoogleAIO: {
			Name:    types.CollectorGoogleAIO,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "brightdata_google_aio", Priority: 1, Enabled: true, FallbackOnFailure: true},
			},
		},
		types.CollectorPerplexity: {
			Name:    types.CollectorPerplexity,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "brightdata_perplexity", Priority: 1, Enabled: true, FallbackOnFailure: true},
				{Name: "openrouter_perplexity", Priority: 2, Enabled: true, FallbackOnFailure: true},
			},
		},
		types.CollectorClaude: {
			Name:    types.CollectorClaude,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "openrouter_claude", Priority: 1, Enabled: true, FallbackOnFailure: true},
			},
		},
		types.CollectorGemini: {
			Name:    types.CollectorGemini,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "brightdata_gemini", Priority: 1, Enabled: true, FallbackOnFailure: true},
				{Name: "openrouter_gemini", Priority: 2, Enabled: true, FallbackOnFailure: true},
			},
		},
		types.CollectorGrok: {
			Name:    types.CollectorGrok,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "openrouter_grok", Priority: 1, Enabled: true, FallbackOnFailure: true},
			},
		},
		types.CollectorBingCopilot: {
			Name:    types.CollectorBingCopilot,
			Enabled: true,
			Providers: []ProviderSpec{
				{Name: "brightdata_copilot", Priority: 1, Enabled: true, FallbackOnFailure: true},
			},
		},
	}
}
