package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "equity.db", cfg.Store.Path)
	assert.Equal(t, []string{"10-K", "10-Q"}, cfg.Edgar.FormTypes)
	assert.Equal(t, 5, cfg.Edgar.FilingLimit)
	assert.Equal(t, 120, cfg.Prices.LookbackDays)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 500, cfg.Fetch.BaseDelayMS)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentSymbols)
	assert.False(t, cfg.Batch.Strict)
	assert.Equal(t, "fixtures", cfg.Fixtures.Path)
	assert.Equal(t, "runs", cfg.Runs.Dir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/equity
edgar:
  user_agent: "Example Corp admin@example.com"
  filing_limit: 3
log:
  level: debug
  format: console
batch:
  max_concurrent_symbols: 8
  strict: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/equity", cfg.Store.DatabaseURL)
	assert.Equal(t, "Example Corp admin@example.com", cfg.Edgar.UserAgent)
	assert.Equal(t, 3, cfg.Edgar.FilingLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentSymbols)
	assert.True(t, cfg.Batch.Strict)
	// Defaults still apply for unset values
	assert.Equal(t, 120, cfg.Prices.LookbackDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("EQUITY_LOG_LEVEL", "warn")
	t.Setenv("EQUITY_EDGAR_USER_AGENT", "Env Corp env@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "Env Corp env@example.com", cfg.Edgar.UserAgent)
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	// Keys with no config file entry and no non-empty default must still
	// pick up their environment value.
	chdirTemp(t)
	t.Setenv("EQUITY_EDGAR_USER_AGENT", "Env Corp env@example.com")
	t.Setenv("EQUITY_STORE_DATABASE_URL", "postgres://localhost/equity")
	t.Setenv("EQUITY_NEWS_API_KEY", "news-key")
	t.Setenv("EQUITY_ANTHROPIC_KEY", "sk-test")
	t.Setenv("EQUITY_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001")
	t.Setenv("EQUITY_PEERS_FILE", "peers.yaml")
	t.Setenv("EQUITY_BATCH_STRICT", "true")
	t.Setenv("EQUITY_FIXTURES_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Env Corp env@example.com", cfg.Edgar.UserAgent)
	assert.Equal(t, "postgres://localhost/equity", cfg.Store.DatabaseURL)
	assert.Equal(t, "news-key", cfg.News.APIKey)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "peers.yaml", cfg.Peers.File)
	assert.True(t, cfg.Batch.Strict)
	assert.True(t, cfg.Fixtures.Enabled)
}

func TestValidate_RequiresUserAgentForLiveMode(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "sqlite"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "edgar.user_agent")
}

func TestValidate_FixtureModeSkipsUserAgent(t *testing.T) {
	cfg := &Config{
		Store:    StoreConfig{Driver: "sqlite"},
		Fixtures: FixturesConfig{Enabled: true},
	}
	require.NoError(t, cfg.Validate())
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{Driver: "oracle"},
		Edgar: EdgarConfig{UserAgent: "X user@example.com"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{Driver: "postgres"},
		Edgar: EdgarConfig{UserAgent: "X user@example.com"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}
