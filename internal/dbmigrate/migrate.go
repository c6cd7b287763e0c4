package dbmigrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// goose keeps its dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

var logger goose.Logger

// SetLogger routes goose output (e.g. the status table) to l.
func SetLogger(l goose.Logger) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	logger = l
}

// MigrationsDir returns the embedded directory holding the dialect's migrations.
func MigrationsDir(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "migrations/sqlite", nil
	case DialectPostgres:
		return "migrations/postgres", nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}

func gooseDialect(dialect string) string {
	if dialect == DialectSQLite {
		return "sqlite3"
	}
	return dialect
}

// Migrate runs a goose command (up, down, status, version, ...) with the
// embedded migrations against an open database.
func Migrate(ctx context.Context, db *sql.DB, dialect, command string) error {
	dir, err := MigrationsDir(dialect)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if logger != nil {
		goose.SetLogger(logger)
	}

	if err := goose.SetDialect(gooseDialect(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, dir); err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}
	return nil
}
