package dbmigrate

import (
	"fmt"

	"github.com/valerioformato/nutrition-helper/internal/config"
)

// SelectDatabaseURL selects the DSN for migrations.
// sqlite: DATABASE_PATH. postgres: DIRECT > DATABASE_URL; with requireDirect
// only DATABASE_URL_DIRECT is accepted.
func SelectDatabaseURL(cfg *config.Config, requireDirect bool) (dsn string, source string, err error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.DatabasePath == "" {
			return "", "", fmt.Errorf("DATABASE_PATH is empty")
		}
		return cfg.DatabasePath, "DATABASE_PATH", nil
	case config.DriverPostgres:
	default:
		return "", "", fmt.Errorf("driver %q has no migrations", cfg.Driver)
	}

	if requireDirect {
		if cfg.DatabaseURLDirect == "" {
			return "", "", fmt.Errorf("DATABASE_URL_DIRECT is required for DDL/migrations")
		}
		return cfg.DatabaseURLDirect, "DATABASE_URL_DIRECT", nil
	}

	if cfg.DatabaseURLDirect != "" {
		return cfg.DatabaseURLDirect, "DATABASE_URL_DIRECT", nil
	}
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL, "DATABASE_URL", nil
	}

	return "", "", fmt.Errorf("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")
}

// DialectFor maps a config driver to its migration dialect.
func DialectFor(driver string) (string, error) {
	switch driver {
	case config.DriverSQLite:
		return DialectSQLite, nil
	case config.DriverPostgres:
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("driver %q has no migrations", driver)
	}
}
