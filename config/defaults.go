// =============================================================================
// 📦 CollectorFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Database:       DefaultDatabaseConfig(),
		Redis:          DefaultRedisConfig(),
		Log:            DefaultLogConfig(),
		BrightData:     DefaultBrightDataConfig(),
		OpenRouter:     DefaultOpenRouterConfig(),
		Mock:           MockConfig{},
		Retry:          DefaultRetryConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Orchestrator:   DefaultOrchestratorConfig(),
		Snapshot:       DefaultSnapshotConfig(),
		Health:         DefaultHealthConfig(),
		Scoring:        ScoringConfig{},
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:  "postgres",
		Host:    "localhost",
		Port:    5432,
		User:    "collectorflow",
		Name:    "collectorflow",
		SSLMode: "disable",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		VerboseLogs: false,
	}
}

// DefaultBrightDataConfig 返回默认 Bright Data 配置
func DefaultBrightDataConfig() BrightDataConfig {
	return BrightDataConfig{
		BaseURL:  "https://api.brightdata.com",
		Timeout:  30 * time.Second,
		PollRate: 5,
	}
}

// DefaultOpenRouterConfig 返回默认 OpenRouter 配置
func DefaultOpenRouterConfig() OpenRouterConfig {
	return OpenRouterConfig{
		BaseURL: "https://openrouter.ai/api",
		Timeout: 120 * time.Second,
	}
}

// DefaultRetryConfig 返回默认重试策略
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseDelayMS: 1000,
		MaxDelayMS:  30000,
	}
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:      5,
		ResetTimeoutMS: 60000,
	}
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BatchSize:         3,
		InterBatchDelayMS: 1000,
	}
}

// DefaultSnapshotConfig 返回默认快照轮询配置
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		PollIntervalMS:   10000,
		MaxWaitMS:        600000,
		FailureThreshold: 5,
		ResetTimeoutMS:   60000,
	}
}

// DefaultHealthConfig 返回默认探活配置
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Enabled:    true,
		IntervalMS: 60000,
	}
}
