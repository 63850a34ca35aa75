package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Edgar     EdgarConfig     `yaml:"edgar" mapstructure:"edgar"`
	Prices    PricesConfig    `yaml:"prices" mapstructure:"prices"`
	News      NewsConfig      `yaml:"news" mapstructure:"news"`
	Peers     PeersConfig     `yaml:"peers" mapstructure:"peers"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Fixtures  FixturesConfig  `yaml:"fixtures" mapstructure:"fixtures"`
	Runs      RunsConfig      `yaml:"runs" mapstructure:"runs"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EdgarConfig configures SEC EDGAR access. The SEC requires a contact
// string in the User-Agent header of every request.
type EdgarConfig struct {
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
	FormTypes   []string `yaml:"form_types" mapstructure:"form_types"`
	FilingLimit int      `yaml:"filing_limit" mapstructure:"filing_limit"`
}

// PricesConfig configures the daily price feed.
type PricesConfig struct {
	LookbackDays int `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// NewsConfig configures headline providers. Without an API key the
// aggregator falls back to the public feed.
type NewsConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// PeersConfig configures the peer lookup table.
type PeersConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// AnthropicConfig holds Anthropic API settings for the optional narrative.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// FetchConfig configures HTTP retry behavior.
type FetchConfig struct {
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelayMS int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentSymbols int  `yaml:"max_concurrent_symbols" mapstructure:"max_concurrent_symbols"`
	Strict               bool `yaml:"strict" mapstructure:"strict"`
}

// FixturesConfig enables offline mode backed by local fixture files.
type FixturesConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// RunsConfig configures where run artifacts are written.
type RunsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EQUITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a meaningful default still get an empty
	// registration so AutomaticEnv can see them.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "equity.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("edgar.user_agent", "")
	v.SetDefault("edgar.form_types", []string{"10-K", "10-Q"})
	v.SetDefault("edgar.filing_limit", 5)
	v.SetDefault("prices.lookback_days", 120)
	v.SetDefault("news.api_key", "")
	v.SetDefault("peers.file", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.base_delay_ms", 500)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("batch.max_concurrent_symbols", 3)
	v.SetDefault("batch.strict", false)
	v.SetDefault("fixtures.enabled", false)
	v.SetDefault("fixtures.path", "fixtures")
	v.SetDefault("runs.dir", "runs")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that must be present before any fetch happens.
func (c *Config) Validate() error {
	if !c.Fixtures.Enabled && c.Edgar.UserAgent == "" {
		return eris.New("config: edgar.user_agent is required for live SEC EDGAR access (set EQUITY_EDGAR_USER_AGENT to a contact string)")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
