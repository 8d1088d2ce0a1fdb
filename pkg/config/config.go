package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Session   SessionConfig   `mapstructure:"session"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Commerce7 Commerce7Config `mapstructure:"commerce7"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	OTel      OTelConfig      `mapstructure:"otel"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	// BaseURL is the public origin of this service, used for OAuth
	// callbacks and webhook registration.
	BaseURL string `mapstructure:"base_url"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
}

// SessionConfig holds URL-token session settings
type SessionConfig struct {
	// TTL is how long an idle session record is retained.
	TTL time.Duration `mapstructure:"ttl"`
	// BypassEnabled injects a fixed development principal instead of
	// resolving the session query parameter. Never valid in production.
	BypassEnabled  bool   `mapstructure:"bypass_enabled"`
	BypassClientID string `mapstructure:"bypass_client_id"`
	BypassTenant   string `mapstructure:"bypass_tenant"`
}

// WebhookConfig holds webhook ingress settings
type WebhookConfig struct {
	// IntegrationEmails are the platform accounts this service writes
	// through. Events originating from any of them are suppressed so the
	// service does not react to its own writes.
	IntegrationEmails []string `mapstructure:"integration_emails"`
	// SharedSecret, when set, must match the X-Webhook-Secret header on
	// Commerce7 deliveries before tenant lookup runs.
	SharedSecret   string  `mapstructure:"shared_secret"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Commerce7Config holds Commerce7 app credentials
type Commerce7Config struct {
	AppID      string `mapstructure:"app_id"`
	SecretKey  string `mapstructure:"secret_key"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

// ShopifyConfig holds Shopify app credentials
type ShopifyConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Scopes     string `mapstructure:"scopes"`
	APIVersion string `mapstructure:"api_version"`
}

// NotifyConfig holds the member-communications collaborator settings
type NotifyConfig struct {
	Mode    string        `mapstructure:"mode"` // http, kafka, noop
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	CollectorAddr string `mapstructure:"collector_addr"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// .env is optional, environment variables may carry everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// continue with env vars only
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "libero-vino")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Database defaults
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "libero_vino")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "30m")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 50)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 5)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT_ID", "libero-vino")

	// Session defaults
	v.SetDefault("SESSION_TTL", "720h") // 30 days
	v.SetDefault("SESSION_BYPASS_ENABLED", false)
	v.SetDefault("SESSION_BYPASS_CLIENT_ID", "")
	v.SetDefault("SESSION_BYPASS_TENANT", "")

	// Webhook defaults
	v.SetDefault("WEBHOOK_INTEGRATION_EMAILS", "")
	v.SetDefault("WEBHOOK_SHARED_SECRET", "")
	v.SetDefault("WEBHOOK_RATE_LIMIT_RPS", 20.0)
	v.SetDefault("WEBHOOK_RATE_LIMIT_BURST", 40)

	// Commerce7 defaults
	v.SetDefault("COMMERCE7_APP_ID", "")
	v.SetDefault("COMMERCE7_SECRET_KEY", "")
	v.SetDefault("COMMERCE7_API_BASE_URL", "https://api.commerce7.com/v1")

	// Shopify defaults
	v.SetDefault("SHOPIFY_API_KEY", "")
	v.SetDefault("SHOPIFY_API_SECRET", "")
	v.SetDefault("SHOPIFY_SCOPES", "read_customers,write_customers,read_orders")
	v.SetDefault("SHOPIFY_API_VERSION", "2025-07")

	// Notify defaults
	v.SetDefault("NOTIFY_MODE", "noop")
	v.SetDefault("NOTIFY_URL", "http://localhost:8090")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "libero-vino")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.BaseURL = v.GetString("APP_BASE_URL")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Database
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxOpenConns = v.GetInt("DATABASE_MAX_OPEN_CONNS")
	cfg.Database.MaxIdleConns = v.GetInt("DATABASE_MAX_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")
	cfg.Database.ConnMaxIdleTime = v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	brokersStr := v.GetString("KAFKA_BROKERS")
	cfg.Kafka.Brokers = strings.Split(brokersStr, ",")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	// Session
	cfg.Session.TTL = v.GetDuration("SESSION_TTL")
	cfg.Session.BypassEnabled = v.GetBool("SESSION_BYPASS_ENABLED")
	cfg.Session.BypassClientID = v.GetString("SESSION_BYPASS_CLIENT_ID")
	cfg.Session.BypassTenant = v.GetString("SESSION_BYPASS_TENANT")

	// Webhook
	emailsStr := v.GetString("WEBHOOK_INTEGRATION_EMAILS")
	cfg.Webhook.IntegrationEmails = splitNonEmpty(emailsStr)
	cfg.Webhook.SharedSecret = v.GetString("WEBHOOK_SHARED_SECRET")
	cfg.Webhook.RateLimitRPS = v.GetFloat64("WEBHOOK_RATE_LIMIT_RPS")
	cfg.Webhook.RateLimitBurst = v.GetInt("WEBHOOK_RATE_LIMIT_BURST")

	// Commerce7
	cfg.Commerce7.AppID = v.GetString("COMMERCE7_APP_ID")
	cfg.Commerce7.SecretKey = v.GetString("COMMERCE7_SECRET_KEY")
	cfg.Commerce7.APIBaseURL = v.GetString("COMMERCE7_API_BASE_URL")

	// Shopify
	cfg.Shopify.APIKey = v.GetString("SHOPIFY_API_KEY")
	cfg.Shopify.APISecret = v.GetString("SHOPIFY_API_SECRET")
	cfg.Shopify.Scopes = v.GetString("SHOPIFY_SCOPES")
	cfg.Shopify.APIVersion = v.GetString("SHOPIFY_API_VERSION")

	// Notify
	cfg.Notify.Mode = v.GetString("NOTIFY_MODE")
	cfg.Notify.URL = v.GetString("NOTIFY_URL")
	cfg.Notify.Timeout = v.GetDuration("NOTIFY_TIMEOUT")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	return nil
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	switch c.Notify.Mode {
	case "http", "kafka", "noop":
	default:
		return fmt.Errorf("invalid notify mode: %s", c.Notify.Mode)
	}

	if c.IsProduction() {
		if c.Session.BypassEnabled {
			return fmt.Errorf("session bypass must be disabled in production")
		}
		if c.Commerce7.AppID == "" && c.Shopify.APIKey == "" {
			return fmt.Errorf("at least one platform credential set is required in production")
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
