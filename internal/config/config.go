// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Kaiascan      KaiascanConfig     `mapstructure:"kaiascan"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Tracking      TrackingConfig     `mapstructure:"tracking"`
	Telegram      TelegramConfig     `mapstructure:"telegram"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// KaiascanConfig contains Kaiascan API connection configuration
type KaiascanConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	RetryWaitMin   time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax   time.Duration `mapstructure:"retry_wait_max"`
	PageSize       int           `mapstructure:"page_size"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// TrackingConfig contains the poller sweep configuration
type TrackingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
	PanicBackoff time.Duration `mapstructure:"panic_backoff"`
}

// TelegramConfig contains Telegram Bot API configuration
type TelegramConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BotToken    string        `mapstructure:"bot_token"`
	BaseURL     string        `mapstructure:"base_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// NotificationConfig contains notification system configuration
type NotificationConfig struct {
	DefaultChannel string        `mapstructure:"default_channel"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	EnableWebhook  bool          `mapstructure:"enable_webhook"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	EnableLog      bool          `mapstructure:"enable_log"`
}

// CacheConfig contains lookup cache configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // memory, redis
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	PriceTTL      time.Duration `mapstructure:"price_ttl"`
	MetadataTTL   time.Duration `mapstructure:"metadata_ttl"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// MetricsConfig contains metrics collection configuration
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("KAIA_TRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind well-known environment variables that override config keys
	viper.BindEnv("telegram.bot_token", "BOT_TOKEN", "KAIA_TRACKER_TELEGRAM_BOT_TOKEN")
	viper.BindEnv("kaiascan.api_token", "KAIASCAN_API_TOKEN", "KAIA_TRACKER_KAIASCAN_API_TOKEN")
	viper.BindEnv("storage.connection_string", "DATABASE_URL", "KAIA_TRACKER_STORAGE_CONNECTION_STRING")
	viper.BindEnv("cache.redis_addr", "REDIS_ADDR", "KAIA_TRACKER_CACHE_REDIS_ADDR")

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "kaia-wallet-tracker")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Kaiascan defaults
	viper.SetDefault("kaiascan.base_url", "https://mainnet-oapi.kaiascan.io/api/v1")
	viper.SetDefault("kaiascan.request_timeout", "15s")
	viper.SetDefault("kaiascan.retry_max", 3)
	viper.SetDefault("kaiascan.retry_wait_min", "500ms")
	viper.SetDefault("kaiascan.retry_wait_max", "5s")
	viper.SetDefault("kaiascan.page_size", 25)

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/tracker.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")

	// Tracking defaults (one sweep per minute)
	viper.SetDefault("tracking.enabled", true)
	viper.SetDefault("tracking.poll_interval", "60s")
	viper.SetDefault("tracking.concurrency", 1)
	viper.SetDefault("tracking.panic_backoff", "5s")

	// Telegram defaults
	viper.SetDefault("telegram.enabled", true)
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", "30s")

	// Notification defaults
	viper.SetDefault("notifications.default_channel", "telegram")
	viper.SetDefault("notifications.timeout", "10s")
	viper.SetDefault("notifications.retry_count", 3)
	viper.SetDefault("notifications.retry_delay", "2s")
	viper.SetDefault("notifications.enable_webhook", false)
	viper.SetDefault("notifications.enable_log", true)

	// Cache defaults
	viper.SetDefault("cache.type", "memory")
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.price_ttl", "60s")
	viper.SetDefault("cache.metadata_ttl", "1h")

	// Server defaults
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.update_interval", "30s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Kaiascan.BaseURL == "" {
		return fmt.Errorf("kaiascan base URL is required")
	}
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Tracking.PollInterval <= 0 {
		return fmt.Errorf("tracking poll interval must be positive")
	}
	if c.Tracking.Concurrency < 1 {
		return fmt.Errorf("tracking concurrency must be at least 1")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when telegram is enabled")
	}
	if c.Notifications.EnableWebhook && c.Notifications.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required when webhook notifications are enabled")
	}
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	return nil
}
