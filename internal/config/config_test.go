package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "ENV", "LOG_LEVEL", "DB_DRIVER", "DATABASE_PATH", "DATABASE_URL",
		"DATABASE_URL_DIRECT", "DB_MAX_OPEN_CONNS", "DB_BUSY_TIMEOUT_MS", "RUN_MIGRATIONS_ON_STARTUP",
		"BLOB_MODE", "EXPORT_DIR", "S3_PRESIGN_TTL_SECONDS", "CATALOG_DEBOUNCE_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.DatabasePath)
	assert.Equal(t, 4, cfg.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
	assert.True(t, cfg.RunMigrationsOnStartup, "sqlite migrates on startup by default")
	assert.Equal(t, BlobModeLocal, cfg.Blob.Mode)
	assert.Equal(t, "exports", cfg.Blob.ExportDir)
	assert.Equal(t, 900, cfg.Blob.S3.PresignTTLSeconds)
	assert.Equal(t, 500*time.Millisecond, cfg.CatalogDebounce)
}

func TestLoadPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgresql")
	t.Setenv("DATABASE_URL", "postgres://app@localhost/meals")

	cfg := Load()

	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://app@localhost/meals", cfg.DatabaseURL)
	assert.False(t, cfg.RunMigrationsOnStartup, "postgres migrations are explicit by default")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RUN_MIGRATIONS_ON_STARTUP", "0")
	t.Setenv("DB_MAX_OPEN_CONNS", "-3")
	t.Setenv("BLOB_MODE", "S3")
	t.Setenv("CATALOG_DEBOUNCE_MS", "250")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	assert.False(t, cfg.RunMigrationsOnStartup)
	assert.Equal(t, 4, cfg.MaxOpenConns)
	assert.Equal(t, BlobModeS3, cfg.Blob.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.CatalogDebounce)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseDriver(t *testing.T) {
	cases := map[string]string{
		"":         DriverSQLite,
		"sqlite3":  DriverSQLite,
		"Postgres": DriverPostgres,
		"pg":       DriverPostgres,
		"memory":   DriverMemory,
		"oracle":   DriverSQLite,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDriver(in), "input %q", in)
	}
}

func TestParseBlobModeFallback(t *testing.T) {
	t.Setenv("BLOB_MODE", "ftp")
	assert.Equal(t, BlobModeLocal, parseBlobMode("BLOB_MODE", BlobModeLocal))
}

func TestS3SummaryHidesSecrets(t *testing.T) {
	summary := S3Config{Bucket: "meal-exports", SecretAccessKey: "very-secret"}.Summary()

	assert.Contains(t, summary, "bucket=meal-exports")
	assert.Contains(t, summary, "secret_access_key=set")
	assert.Contains(t, summary, "endpoint=-")
	assert.NotContains(t, summary, "very-secret")
}
