package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"debt-dashboard/internal/logging"
	"debt-dashboard/internal/version"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Server   ServerConfig   `mapstructure:"server"`
	View     ViewConfig     `mapstructure:"view"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
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
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SourceConfig selects where raw observations come from.
type SourceConfig struct {
	Kind      string        `mapstructure:"kind"`
	Path      string        `mapstructure:"path"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	MemoSize  int           `mapstructure:"memo_size"`
}

// RefreshConfig governs how often the dataset is reloaded.
type RefreshConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ServerConfig configures the dashboard HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

// ViewConfig holds the initial dashboard control state.
type ViewConfig struct {
	MovingAverage bool   `mapstructure:"moving_average"`
	Normalization string `mapstructure:"normalization"`
	Annotations   bool   `mapstructure:"annotations"`
}

// AlertingConfig defines the leverage alert threshold and routing.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	RatioThreshold  float64        `mapstructure:"ratio_threshold"`
	Channels        []string       `mapstructure:"channels"`
	AdvisoryLockKey int64          `mapstructure:"advisory_lock_key"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets chart export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEBTDASH")
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
	v.SetDefault("app.name", "debtdash")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.kind", "static")
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.user_agent", version.UserAgent())
	v.SetDefault("source.memo_size", 16)

	v.SetDefault("refresh.interval", "0s")
	v.SetDefault("refresh.align_to_bucket", true)
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("view.moving_average", true)
	v.SetDefault("view.normalization", "absolute")
	v.SetDefault("view.annotations", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.ratio_threshold", 0.6)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.advisory_lock_key", int64(0x64656274))
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
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
	switch strings.ToLower(c.Source.Kind) {
	case "static":
	case "csv":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for csv sources")
		}
	case "http":
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required for http sources")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres sources")
		}
	default:
		return fmt.Errorf("source.kind %q is not supported", c.Source.Kind)
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh.interval cannot be negative")
	}
	if c.Export.ChartWidth <= 0 || c.Export.ChartHeight <= 0 {
		return fmt.Errorf("export.chart_width and export.chart_height must be greater than zero")
	}
	switch strings.ToLower(c.View.Normalization) {
	case "absolute", "share":
	default:
		return fmt.Errorf("view.normalization must be absolute or share")
	}
	if c.Alerting.RatioThreshold < 0 {
		return fmt.Errorf("alerting.ratio_threshold cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveChartSize returns the CLI overrides or the configured chart size.
func (c *Config) ResolveChartSize(width, height int) (int, int) {
	if width <= 0 {
		width = c.Export.ChartWidth
	}
	if height <= 0 {
		height = c.Export.ChartHeight
	}
	return width, height
}
