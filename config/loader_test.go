package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 1000, cfg.Retry.BaseDelayMS)
	assert.Equal(t, 5, cfg.CircuitBreaker.Threshold)
	assert.Equal(t, 3, cfg.Orchestrator.BatchSize)
	assert.Equal(t, 10000, cfg.Snapshot.PollIntervalMS)
	assert.Equal(t, 600000, cfg.Snapshot.MaxWaitMS)
	assert.True(t, cfg.Health.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "https://api.brightdata.com", cfg.BrightData.BaseURL)
	assert.Equal(t, "https://openrouter.ai/api", cfg.OpenRouter.BaseURL)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
database:
  driver: sqlite
  name: "file::memory:?cache=shared"
retry:
  max_retries: 7
  base_delay_ms: 250
openrouter:
  timeout: 90s
  models:
    claude: anthropic/claude-sonnet-4
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	assert.Equal(t, 250, cfg.Retry.BaseDelayMS)
	// 文件未覆盖的保持默认
	assert.Equal(t, 30000, cfg.Retry.MaxDelayMS)
	assert.Equal(t, 90*time.Second, cfg.OpenRouter.Timeout)
	assert.Equal(t, "anthropic/claude-sonnet-4", cfg.OpenRouter.Models["claude"])
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeTempConfig(t, `
retry:
  max_retries: 7
`)
	t.Setenv("COLLECTORFLOW_RETRY_MAX_RETRIES", "9")
	t.Setenv("COLLECTORFLOW_DATABASE_HOST", "db.internal")
	t.Setenv("COLLECTORFLOW_BRIGHTDATA_TIMEOUT", "45s")
	t.Setenv("COLLECTORFLOW_LOG_VERBOSE_LOGS", "true")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Retry.MaxRetries)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 45*time.Second, cfg.BrightData.Timeout)
	assert.True(t, cfg.Log.VerboseLogs)
}

func TestLoader_LegacyEnvAliases(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_BASE_DELAY_MS", "500")
	t.Setenv("CIRCUIT_BREAKER_THRESHOLD", "8")
	t.Setenv("BATCH_SIZE", "6")
	t.Setenv("BRIGHTDATA_API_KEY", "bd-key")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 500, cfg.Retry.BaseDelayMS)
	assert.Equal(t, 8, cfg.CircuitBreaker.Threshold)
	assert.Equal(t, 6, cfg.Orchestrator.BatchSize)
	assert.Equal(t, "bd-key", cfg.BrightData.APIKey)
	assert.Equal(t, "or-key", cfg.OpenRouter.APIKey)
}

func TestLoader_ValidatorRejects(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Retry.MaxRetries = 0
	cfg.Orchestrator.BatchSize = 0
	cfg.Database.Driver = "oracle"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.max_retries")
	assert.Contains(t, err.Error(), "orchestrator.batch_size")
	assert.Contains(t, err.Error(), "database.driver")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: "postgres", Host: "h", Port: 5432,
		User: "u", Password: "p", Name: "db", SSLMode: "disable",
	}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=db sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Name: "db"}
	assert.Equal(t, "u:p@tcp(h:3306)/db?parseTime=true", my.DSN())

	sq := DatabaseConfig{Driver: "sqlite", Name: "state.db"}
	assert.Equal(t, "state.db", sq.DSN())
}

func TestBrightDataConfig_ToProviderConfig(t *testing.T) {
	b := BrightDataConfig{
		APIKey:           "k",
		BaseURL:          "https://api.brightdata.com",
		Timeout:          30 * time.Second,
		ChatGPTDatasetID: "gd_chatgpt",
		AIODatasetID:     "gd_aio",
		PollRate:         5,
	}
	pc := b.ToProviderConfig()
	assert.Equal(t, "k", pc.APIKey)
	assert.Equal(t, "gd_chatgpt", pc.ChatGPTDatasetID)
	assert.Equal(t, "gd_aio", pc.AIODatasetID)
	assert.Equal(t, float64(5), pc.PollRate)
}
