package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	BlobModeLocal = "local"
	BlobModeS3    = "s3"
	BlobModeAuto  = "auto"
)

const DefaultDatabasePath = "nutrition-helper.db"

type BlobConfig struct {
	Mode      string // local|s3|auto
	ExportDir string // root of the local store
	S3        S3Config
}

// Config содержит конфигурацию приложения
type Config struct {
	Env      string // local | staging | prod
	LogLevel string

	// Database
	Driver            string // sqlite | postgres | memory
	DatabasePath      string // sqlite file
	DatabaseURL       string // postgres runtime connection
	DatabaseURLDirect string // postgres migrations / DDL (may be empty)
	MaxOpenConns      int
	BusyTimeout       time.Duration

	// Migrations
	RunMigrationsOnStartup bool

	// Exports
	Blob BlobConfig

	// Catalog watcher
	CatalogDebounce time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	env := firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("ENV"), "local")
	logLevel := firstNonEmpty(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))), "info")

	driver := ParseDriver(os.Getenv("DB_DRIVER"))

	// SQLite files are created on first use, so the schema follows them by default.
	runMigrations := driver == DriverSQLite
	if strings.TrimSpace(os.Getenv("RUN_MIGRATIONS_ON_STARTUP")) != "" {
		runMigrations = parseBoolEnv("RUN_MIGRATIONS_ON_STARTUP")
	}

	return &Config{
		Env:      env,
		LogLevel: logLevel,

		Driver:            driver,
		DatabasePath:      firstNonEmpty(strings.TrimSpace(os.Getenv("DATABASE_PATH")), DefaultDatabasePath),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseURLDirect: strings.TrimSpace(os.Getenv("DATABASE_URL_DIRECT")),
		MaxOpenConns:      positiveInt("DB_MAX_OPEN_CONNS", 4),
		BusyTimeout:       time.Duration(positiveInt("DB_BUSY_TIMEOUT_MS", 5000)) * time.Millisecond,

		RunMigrationsOnStartup: runMigrations,

		Blob: BlobConfig{
			Mode:      parseBlobMode("BLOB_MODE", BlobModeLocal),
			ExportDir: firstNonEmpty(strings.TrimSpace(os.Getenv("EXPORT_DIR")), "exports"),
			S3:        loadS3(),
		},

		CatalogDebounce: time.Duration(positiveInt("CATALOG_DEBOUNCE_MS", 500)) * time.Millisecond,
	}
}

func loadS3() S3Config {
	return S3Config{
		Endpoint:          strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		Region:            strings.TrimSpace(os.Getenv("S3_REGION")),
		Bucket:            strings.TrimSpace(os.Getenv("S3_BUCKET")),
		AccessKeyID:       strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
		SecretAccessKey:   strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
		PublicBaseURL:     strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL")),
		PresignTTLSeconds: positiveInt("S3_PRESIGN_TTL_SECONDS", 900),
	}
}

// ParseDriver normalizes a driver name; unknown values fall back to sqlite.
func ParseDriver(raw string) string {
	driver := strings.ToLower(strings.TrimSpace(raw))
	switch driver {
	case "":
		return DriverSQLite
	case DriverSQLite, DriverPostgres, DriverMemory:
		return driver
	case "sqlite3":
		return DriverSQLite
	case "pg", "postgresql":
		return DriverPostgres
	default:
		log.Printf("WARNING: unknown DB_DRIVER=%q, fallback to %s", driver, DriverSQLite)
		return DriverSQLite
	}
}

func parseBlobMode(key string, defaultVal string) string {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if mode == "" {
		return defaultVal
	}
	switch mode {
	case BlobModeLocal, BlobModeS3, BlobModeAuto:
		return mode
	default:
		log.Printf("WARNING: unknown %s=%q, fallback to %s", key, mode, defaultVal)
		return defaultVal
	}
}

// positiveInt reads an int env var. Missing, malformed and non-positive
// values all yield def.
func positiveInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
