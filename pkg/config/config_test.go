package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	envVars := []string{
		"APP_NAME", "APP_ENVIRONMENT", "APP_DEBUG",
		"SERVER_HOST", "SERVER_PORT",
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_USER", "DATABASE_PASSWORD", "DATABASE_DBNAME",
		"REDIS_HOST", "REDIS_PORT",
		"SESSION_TTL", "SESSION_BYPASS_ENABLED",
		"WEBHOOK_INTEGRATION_EMAILS", "WEBHOOK_RATE_LIMIT_RPS",
		"COMMERCE7_APP_ID", "SHOPIFY_API_KEY",
		"NOTIFY_MODE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "libero-vino" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "libero-vino")
	}

	if cfg.App.Environment != "development" {
		t.Errorf("App.Environment = %q, want %q", cfg.App.Environment, "development")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}

	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want %d", cfg.Redis.Port, 6379)
	}

	if cfg.Session.TTL != 720*time.Hour {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, 720*time.Hour)
	}

	if cfg.Session.BypassEnabled {
		t.Error("Session.BypassEnabled = true, want false")
	}

	if len(cfg.Webhook.IntegrationEmails) != 0 {
		t.Errorf("Webhook.IntegrationEmails = %v, want empty", cfg.Webhook.IntegrationEmails)
	}

	if cfg.Commerce7.APIBaseURL != "https://api.commerce7.com/v1" {
		t.Errorf("Commerce7.APIBaseURL = %q, want commerce7 API", cfg.Commerce7.APIBaseURL)
	}

	if cfg.Notify.Mode != "noop" {
		t.Errorf("Notify.Mode = %q, want %q", cfg.Notify.Mode, "noop")
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	os.Setenv("APP_NAME", "test-app")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("DATABASE_HOST", "club-db.example.com")
	os.Setenv("WEBHOOK_INTEGRATION_EMAILS", "integration@vino.example, ops@vino.example")
	defer func() {
		os.Unsetenv("APP_NAME")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("DATABASE_HOST")
		os.Unsetenv("WEBHOOK_INTEGRATION_EMAILS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-app")
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}

	if cfg.Database.Host != "club-db.example.com" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "club-db.example.com")
	}

	want := []string{"integration@vino.example", "ops@vino.example"}
	if len(cfg.Webhook.IntegrationEmails) != len(want) {
		t.Fatalf("Webhook.IntegrationEmails = %v, want %v", cfg.Webhook.IntegrationEmails, want)
	}
	for i, e := range want {
		if cfg.Webhook.IntegrationEmails[i] != e {
			t.Errorf("IntegrationEmails[%d] = %q, want %q", i, cfg.Webhook.IntegrationEmails[i], e)
		}
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("DSN() = %q, want %q", dsn, expected)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{
		Host: "redis.example.com",
		Port: 6380,
	}

	expected := "redis.example.com:6380"
	if addr := cfg.Addr(); addr != expected {
		t.Errorf("Addr() = %q, want %q", addr, expected)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			App:      AppConfig{Name: "test", Environment: "development"},
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Host: "localhost", DBName: "club_db"},
			Notify:   NotifyConfig{Mode: "noop"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing app name",
			mutate:  func(c *Config) { c.App.Name = "" },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: true,
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing database name",
			mutate:  func(c *Config) { c.Database.DBName = "" },
			wantErr: true,
		},
		{
			name:    "invalid notify mode",
			mutate:  func(c *Config) { c.Notify.Mode = "carrier-pigeon" },
			wantErr: true,
		},
		{
			name: "session bypass in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Commerce7.AppID = "app"
				c.Session.BypassEnabled = true
			},
			wantErr: true,
		},
		{
			name: "production without platform credentials",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			wantErr: true,
		},
		{
			name: "production with commerce7 credentials",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Commerce7.AppID = "app"
				c.Commerce7.SecretKey = "secret"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "production"},
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() {
		t.Error("IsProduction() = true, want false")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "development"},
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}

	cfg.App.Environment = "production"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
}
