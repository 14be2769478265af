package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all process configuration for the bot
type Config struct {
	DiscordToken string        `mapstructure:"discord_token"`
	DatabaseDSN  string        `mapstructure:"database_dsn"`
	DataDir      string        `mapstructure:"data_dir"`
	SettingsFile string        `mapstructure:"settings_file"`
	Storage      StorageConfig `mapstructure:"storage"`
	Logging      LoggingConfig `mapstructure:"logging"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	Tracker      TrackerConfig `mapstructure:"tracker"`
}

// StorageConfig selects the document store backend
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "file" or "redis"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// MetricsConfig defines the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// TrackerConfig defines the tracker loop intervals
type TrackerConfig struct {
	UpdateInterval      time.Duration `mapstructure:"update_interval"`
	SaveInterval        time.Duration `mapstructure:"save_interval"`
	PeriodCheckInterval time.Duration `mapstructure:"period_check_interval"`
	StartupGrace        time.Duration `mapstructure:"startup_grace"`
}

// Load reads .env, an optional config file and GUILDBOT_* environment variables.
func Load(configPath string) (*Config, error) {
	// .env file is optional, continue with environment variables
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("GUILDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The plain names are kept for existing deployments.
	_ = v.BindEnv("discord_token", "GUILDBOT_DISCORD_TOKEN", "DISCORD_TOKEN")
	_ = v.BindEnv("database_dsn", "GUILDBOT_DATABASE_DSN", "DATABASE_DSN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("settings_file", "settings.jsonc")

	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "guildbot:")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("tracker.update_interval", "10s")
	v.SetDefault("tracker.save_interval", "60s")
	v.SetDefault("tracker.period_check_interval", "1h")
	v.SetDefault("tracker.startup_grace", "30s")
}

func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "file":
		if cfg.DataDir == "" {
			return &ConfigError{Field: "data_dir", Message: "data_dir is required for file storage"}
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return &ConfigError{Field: "storage.redis.host", Message: "storage.redis.host is required for redis storage"}
		}
	default:
		return &ConfigError{Field: "storage.type", Message: fmt.Sprintf("unknown storage type %q", cfg.Storage.Type)}
	}

	intervals := map[string]time.Duration{
		"tracker.update_interval":       cfg.Tracker.UpdateInterval,
		"tracker.save_interval":         cfg.Tracker.SaveInterval,
		"tracker.period_check_interval": cfg.Tracker.PeriodCheckInterval,
	}
	for field, d := range intervals {
		if d <= 0 {
			return &ConfigError{Field: field, Message: field + " must be positive"}
		}
	}
	return nil
}

// RequireToken fails when no Discord token is configured. Offline commands
// do not need one.
func (c *Config) RequireToken() error {
	if c.DiscordToken == "" {
		return &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
