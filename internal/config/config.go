package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"portfolio-drop-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sei       SeiConfig       `mapstructure:"sei"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Advisor   AdvisorConfig   `mapstructure:"advisor"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SeiConfig covers balance lookups against the Sei network.
type SeiConfig struct {
	EVMRPCURL      string        `mapstructure:"evm_rpc_url"`
	LCDURL         string        `mapstructure:"lcd_url"`
	ChainID        string        `mapstructure:"chain_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OracleConfig captures price oracle connectivity and cache behaviour.
type OracleConfig struct {
	BaseURL        string             `mapstructure:"base_url"`
	APIKey         string             `mapstructure:"api_key"`
	TestMode       bool               `mapstructure:"test_mode"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
	MaxAttempts    int                `mapstructure:"max_attempts"`
	InitialBackoff time.Duration      `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration      `mapstructure:"max_backoff"`
	CacheTTL       time.Duration      `mapstructure:"cache_ttl"`
	FallbackPrices map[string]float64 `mapstructure:"fallback_prices"`
	UserAgent      string             `mapstructure:"user_agent"`
}

// MonitorConfig governs the alert check loop.
type MonitorConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AnchorRefresh   time.Duration `mapstructure:"anchor_refresh"`
	AlertCooldown   time.Duration `mapstructure:"alert_cooldown"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	UserTimeout     time.Duration `mapstructure:"user_timeout"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// WatchConfig governs the watched-address transaction poller.
type WatchConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
	BlockRange     uint64        `mapstructure:"block_range"`
	PageLimit      int           `mapstructure:"page_limit"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	AddressTimeout time.Duration `mapstructure:"address_timeout"`
	ExplorerBase   string        `mapstructure:"explorer_base"`
}

// AlertingConfig defines alert delivery settings.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// AdvisorConfig configures the optional AI advisory provider.
type AdvisorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AnalyticsConfig holds defaults for on-demand reports.
type AnalyticsConfig struct {
	VolatilityLookback int      `mapstructure:"volatility_lookback"`
	TargetStablePct    float64  `mapstructure:"target_stable_pct"`
	StableSymbols      []string `mapstructure:"stable_symbols"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEIWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "seiwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("sei.evm_rpc_url", "https://evm-rpc-testnet.sei-apis.com")
	v.SetDefault("sei.lcd_url", "https://rest-testnet.sei-apis.com")
	v.SetDefault("sei.chain_id", "atlantic-2")
	v.SetDefault("sei.request_timeout", "10s")

	v.SetDefault("oracle.base_url", "https://api.rivalz.ai/adcs/v1")
	v.SetDefault("oracle.test_mode", true)
	v.SetDefault("oracle.request_timeout", "2s")
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.initial_backoff", "500ms")
	v.SetDefault("oracle.max_backoff", "2s")
	v.SetDefault("oracle.cache_ttl", "5s")
	v.SetDefault("oracle.user_agent", "seiwatcher/1.0")
	v.SetDefault("oracle.fallback_prices", map[string]float64{
		"SEI":  1.0,
		"USDC": 1.0,
		"ETH":  2000.0,
		"BTC":  40000.0,
		"SOL":  100.0,
	})

	v.SetDefault("monitor.tick_interval", "30s")
	v.SetDefault("monitor.startup_delay", "10s")
	v.SetDefault("monitor.anchor_refresh", "5m")
	v.SetDefault("monitor.alert_cooldown", "5m")
	v.SetDefault("monitor.max_concurrent", 8)
	v.SetDefault("monitor.user_timeout", "15s")
	v.SetDefault("monitor.advisory_lock_key", int64(0x53454957))

	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.interval", "60s")
	v.SetDefault("watch.startup_delay", "15s")
	v.SetDefault("watch.block_range", 10)
	v.SetDefault("watch.page_limit", 20)
	v.SetDefault("watch.max_concurrent", 4)
	v.SetDefault("watch.address_timeout", "20s")
	v.SetDefault("watch.explorer_base", "https://seitrace.com")

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("advisor.enabled", false)
	v.SetDefault("advisor.base_url", "https://elizaos.ai/api")
	v.SetDefault("advisor.request_timeout", "2s")

	v.SetDefault("analytics.volatility_lookback", 60)
	v.SetDefault("analytics.target_stable_pct", 20.0)
	v.SetDefault("analytics.stable_symbols", []string{"USDC"})

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.TickInterval <= 0 {
		return fmt.Errorf("monitor.tick_interval must be greater than zero")
	}
	if c.Monitor.AnchorRefresh <= 0 {
		return fmt.Errorf("monitor.anchor_refresh must be greater than zero")
	}
	if c.Monitor.AlertCooldown <= 0 {
		return fmt.Errorf("monitor.alert_cooldown must be greater than zero")
	}
	if c.Monitor.MaxConcurrent <= 0 {
		return fmt.Errorf("monitor.max_concurrent must be greater than zero")
	}
	if c.Watch.Enabled {
		if c.Watch.Interval <= 0 {
			return fmt.Errorf("watch.interval must be greater than zero")
		}
		if c.Watch.BlockRange == 0 {
			return fmt.Errorf("watch.block_range must be greater than zero")
		}
		if c.Watch.PageLimit <= 0 {
			return fmt.Errorf("watch.page_limit must be greater than zero")
		}
		if c.Watch.MaxConcurrent <= 0 {
			return fmt.Errorf("watch.max_concurrent must be greater than zero")
		}
	}
	if c.Oracle.CacheTTL <= 0 {
		return fmt.Errorf("oracle.cache_ttl must be greater than zero")
	}
	if c.Oracle.MaxAttempts <= 0 {
		return fmt.Errorf("oracle.max_attempts must be greater than zero")
	}
	if len(c.Oracle.FallbackPrices) == 0 {
		return fmt.Errorf("oracle.fallback_prices must not be empty")
	}
	if c.Analytics.VolatilityLookback < 2 {
		return fmt.Errorf("analytics.volatility_lookback must be at least 2")
	}
	if c.Analytics.TargetStablePct < 0 || c.Analytics.TargetStablePct > 100 {
		return fmt.Errorf("analytics.target_stable_pct must be within 0-100")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled && c.Alerting.Telegram.BotToken == "" {
		return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
	}
	if c.Advisor.Enabled && c.Advisor.BaseURL == "" {
		return fmt.Errorf("advisor.base_url is required when advisor is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
