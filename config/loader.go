// =============================================================================
// 📦 CollectorFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("COLLECTORFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 CollectorFlow 的完整配置结构
type Config struct {
	// Database 状态存储配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 快照登记表落地配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// BrightData 抓取后端凭据与数据集
	BrightData BrightDataConfig `yaml:"brightdata" env:"BRIGHTDATA"`

	// OpenRouter 直连 LLM 后端凭据
	OpenRouter OpenRouterConfig `yaml:"openrouter" env:"OPENROUTER"`

	// Mock 测试用确定性适配器
	Mock MockConfig `yaml:"mock" env:"MOCK"`

	// Retry 重试策略
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// CircuitBreaker 熔断器参数
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" env:"CIRCUIT_BREAKER"`

	// Orchestrator 批量编排参数
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Snapshot 后台轮询参数
	Snapshot SnapshotConfig `yaml:"snapshot" env:"SNAPSHOT"`

	// Health provider 探活参数
	Health HealthConfig `yaml:"health" env:"HEALTH"`

	// Scoring 外部打分服务
	Scoring ScoringConfig `yaml:"scoring" env:"SCORING"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Driver: postgres, mysql, sqlite
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// Enabled 为 false 时快照登记表退回进程内实现
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// VerboseLogs 打开后 provider 请求/响应细节进 debug 日志
	VerboseLogs bool `yaml:"verbose_logs" env:"VERBOSE_LOGS"`
}

// BrightDataConfig Bright Data 后端配置
type BrightDataConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	ChatGPTDatasetID    string `yaml:"chatgpt_dataset_id" env:"CHATGPT_DATASET_ID"`
	GeminiDatasetID     string `yaml:"gemini_dataset_id" env:"GEMINI_DATASET_ID"`
	CopilotDatasetID    string `yaml:"copilot_dataset_id" env:"COPILOT_DATASET_ID"`
	PerplexityDatasetID string `yaml:"perplexity_dataset_id" env:"PERPLEXITY_DATASET_ID"`
	AIODatasetID        string `yaml:"aio_dataset_id" env:"AIO_DATASET_ID"`

	PollRate float64 `yaml:"poll_rate" env:"POLL_RATE"`
}

// OpenRouterConfig OpenRouter 后端配置
type OpenRouterConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Models collector → 模型 id 的覆盖映射（仅 YAML）
	Models map[string]string `yaml:"models" env:"-"`
}

// MockConfig mock 适配器配置
type MockConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Answer  string        `yaml:"answer" env:"ANSWER"`
	Latency time.Duration `yaml:"latency" env:"LATENCY"`
}

// RetryConfig 重试策略配置
type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries" env:"MAX_RETRIES"`
	BaseDelayMS int `yaml:"base_delay_ms" env:"BASE_DELAY_MS"`
	MaxDelayMS  int `yaml:"max_delay_ms" env:"MAX_DELAY_MS"`
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Threshold      int `yaml:"threshold" env:"THRESHOLD"`
	ResetTimeoutMS int `yaml:"reset_timeout_ms" env:"RESET_TIMEOUT_MS"`
}

// OrchestratorConfig 批量编排配置
type OrchestratorConfig struct {
	BatchSize         int `yaml:"batch_size" env:"BATCH_SIZE"`
	InterBatchDelayMS int `yaml:"inter_batch_delay_ms" env:"INTER_BATCH_DELAY_MS"`
}

// SnapshotConfig 快照轮询配置。
// FailureThreshold/ResetTimeoutMS 控制轮询侧的本地熔断器。
type SnapshotConfig struct {
	PollIntervalMS   int `yaml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`
	MaxWaitMS        int `yaml:"max_wait_ms" env:"MAX_WAIT_MS"`
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	ResetTimeoutMS   int `yaml:"reset_timeout_ms" env:"RESET_TIMEOUT_MS"`
}

// HealthConfig provider 探活配置
type HealthConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	IntervalMS int  `yaml:"interval_ms" env:"INTERVAL_MS"`
}

// ScoringConfig 外部打分服务配置
type ScoringConfig struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "COLLECTORFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量（前缀式，再叠加无前缀别名）
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	applyLegacyEnvAliases(cfg)

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// applyLegacyEnvAliases 支持无前缀的运维变量名。
// 这些名字是部署脚本的既定契约，设置后直接覆盖对应字段。
func applyLegacyEnvAliases(cfg *Config) {
	aliases := map[string]func(string) error{
		"MAX_RETRIES":                      func(v string) error { return setInt(&cfg.Retry.MaxRetries, v) },
		"RETRY_BASE_DELAY_MS":              func(v string) error { return setInt(&cfg.Retry.BaseDelayMS, v) },
		"CIRCUIT_BREAKER_THRESHOLD":        func(v string) error { return setInt(&cfg.CircuitBreaker.Threshold, v) },
		"CIRCUIT_BREAKER_RESET_TIMEOUT_MS": func(v string) error { return setInt(&cfg.CircuitBreaker.ResetTimeoutMS, v) },
		"BATCH_SIZE":                       func(v string) error { return setInt(&cfg.Orchestrator.BatchSize, v) },
		"INTER_BATCH_DELAY_MS":             func(v string) error { return setInt(&cfg.Orchestrator.InterBatchDelayMS, v) },
		"VERBOSE_LOGS":                     func(v string) error { return setBool(&cfg.Log.VerboseLogs, v) },
		"BRIGHTDATA_API_KEY":               func(v string) error { cfg.BrightData.APIKey = v; return nil },
		"OPENROUTER_API_KEY":               func(v string) error { cfg.OpenRouter.APIKey = v; return nil },
	}
	for name, apply := range aliases {
		if v := os.Getenv(name); v != "" {
			// 非法值忽略，保留现值
			_ = apply(v)
		}
	}
}

func setInt(dst *int, v string) error {
	i, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = i
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Retry.MaxRetries < 1 {
		errs = append(errs, "retry.max_retries must be at least 1")
	}
	if c.Retry.BaseDelayMS <= 0 {
		errs = append(errs, "retry.base_delay_ms must be positive")
	}
	if c.CircuitBreaker.Threshold < 1 {
		errs = append(errs, "circuit_breaker.threshold must be at least 1")
	}
	if c.Orchestrator.BatchSize < 1 {
		errs = append(errs, "orchestrator.batch_size must be at least 1")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, "database.driver must be postgres, mysql or sqlite")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// =============================================================================
// 🔌 providers 包映射
// =============================================================================

// ToProviderConfig 转换为 providers.BrightDataConfig
func (b *BrightDataConfig) ToProviderConfig() providers.BrightDataConfig {
	return providers.BrightDataConfig{
		APIKey:              b.APIKey,
		BaseURL:             b.BaseURL,
		Timeout:             b.Timeout,
		ChatGPTDatasetID:    b.ChatGPTDatasetID,
		GeminiDatasetID:     b.GeminiDatasetID,
		CopilotDatasetID:    b.CopilotDatasetID,
		PerplexityDatasetID: b.PerplexityDatasetID,
		AIODatasetID:        b.AIODatasetID,
		PollRate:            b.PollRate,
	}
}

// ToProviderConfig 转换为 providers.OpenRouterConfig
func (o *OpenRouterConfig) ToProviderConfig() providers.OpenRouterConfig {
	return providers.OpenRouterConfig{
		APIKey:  o.APIKey,
		BaseURL: o.BaseURL,
		Timeout: o.Timeout,
		Models:  o.Models,
	}
}

// ToProviderConfig 转换为 providers.MockConfig
func (m *MockConfig) ToProviderConfig() providers.MockConfig {
	return providers.MockConfig{
		Enabled: m.Enabled,
		Answer:  m.Answer,
		Latency: m.Latency,
	}
}
