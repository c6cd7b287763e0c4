package dbmigrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/valerioformato/nutrition-helper/internal/storage/sqlite"
)

// Run opens the database named by dsn, pings it and applies command.
// For sqlite the dsn is a file path.
func Run(ctx context.Context, command, dialect, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("database URL is empty")
	}

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		db, err = sqlite.OpenDB(dsn, sqlite.Options{MaxOpenConns: 1})
	case DialectPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return Migrate(ctx, db, dialect, command)
}
