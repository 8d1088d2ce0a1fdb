package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// openTestDB connects using TEST_POSTGRES_* overrides on top of the
// defaults. Integration tests skip unless INTEGRATION_TEST=true.
func openTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}

	db, err := NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	if cfg.Host != "localhost" || cfg.Port != 5432 {
		t.Errorf("unexpected default endpoint %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.MinConns >= cfg.MaxConns {
		t.Errorf("min conns %d must stay below max conns %d", cfg.MinConns, cfg.MaxConns)
	}
	if cfg.MaxRetries == 0 {
		t.Error("expected connect retries by default")
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "libero",
		Password: "vino",
		Database: "libero_vino",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	for _, part := range []string{"host=db.internal", "port=5433", "user=libero", "dbname=libero_vino", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN missing %q: %s", part, dsn)
		}
	}
}

func TestNewPostgres_UnreachableHost(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "no-such-host.invalid",
		Port:           5432,
		User:           "libero",
		Password:       "vino",
		Database:       "libero_vino",
		SSLMode:        "disable",
		MaxRetries:     0,
		RetryInterval:  100 * time.Millisecond,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := NewPostgres(ctx, cfg); err == nil {
		t.Error("expected connect to fail for unreachable host")
	}
}

func TestPostgresDB_Connectivity_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Errorf("ping failed: %v", err)
	}
	if !db.IsConnected(ctx) {
		t.Error("expected IsConnected after successful connect")
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed: %v", err)
	}
	if db.Pool() == nil || db.Stats() == nil {
		t.Error("expected pool and stats to be exposed")
	}
}

func TestPostgresDB_QueryRoundTrip_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Exec(ctx, "CREATE TEMP TABLE stages_tmp (id SERIAL PRIMARY KEY, name TEXT, stage_order INT)")
	if err != nil {
		t.Fatalf("create temp table failed: %v", err)
	}
	if err := db.Exec(ctx, "INSERT INTO stages_tmp (name, stage_order) VALUES ($1, $2)", "Cellar Club", 1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var name string
	if err := db.QueryRow(ctx, "SELECT name FROM stages_tmp WHERE stage_order = $1", 1).Scan(&name); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if name != "Cellar Club" {
		t.Errorf("expected 'Cellar Club', got %q", name)
	}
}

func TestPostgresDB_Transaction_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Exec(ctx, "CREATE TEMP TABLE ltv_tmp (id SERIAL PRIMARY KEY, cents BIGINT)"); err != nil {
		t.Fatalf("create temp table failed: %v", err)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO ltv_tmp (cents) VALUES ($1)", 125000); err != nil {
		_ = tx.Rollback(ctx)
		t.Fatalf("insert in tx failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	var cents int64
	if err := db.QueryRow(ctx, "SELECT cents FROM ltv_tmp").Scan(&cents); err != nil {
		t.Fatalf("query after commit failed: %v", err)
	}
	if cents != 125000 {
		t.Errorf("expected 125000, got %d", cents)
	}
}

func TestPostgresDB_PingAfterClose_Integration(t *testing.T) {
	db := openTestDB(t)
	db.Close()

	if err := db.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail after close")
	}
}
