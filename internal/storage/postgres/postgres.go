package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// SQLSTATE codes mapped to the storage taxonomy.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx opens a
// savepoint, so helpers can always start a (nested) transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStorage — Postgres реализация storage.Store
type PostgresStorage struct {
	*templatesStorage
	*optionsStorage
	*tagsStorage
	*entriesStorage

	pool *pgxpool.Pool
	inTx bool
}

var _ storage.Store = (*PostgresStorage)(nil)

// New connects to databaseURL and pings it. The schema is created by dbmigrate.
func New(ctx context.Context, databaseURL string, maxConns int) (*PostgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newPostgresStorage(pool, pool, false), nil
}

func newPostgresStorage(pool *pgxpool.Pool, q querier, inTx bool) *PostgresStorage {
	now := func() time.Time { return time.Now().UTC() }
	tags := newTagsStorage(q, now)
	options := newOptionsStorage(q, now)
	return &PostgresStorage{
		templatesStorage: newTemplatesStorage(q, now),
		optionsStorage:   options,
		tagsStorage:      tags,
		entriesStorage:   newEntriesStorage(q, now, tags),
		pool:             pool,
		inTx:             inTx,
	}
}

// InTx runs fn in a transaction that first takes a transaction-scoped
// advisory lock on the (option, week) pair. Nested calls reuse the outer
// transaction.
func (p *PostgresStorage) InTx(ctx context.Context, lock storage.EntryLock, fn func(ctx context.Context, tx storage.Store) error) error {
	if p.inTx {
		return fn(ctx, p)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return classify("begin transaction", "", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(lock)); err != nil {
		return classify("acquire entry lock", "", err)
	}

	if err := fn(ctx, newPostgresStorage(p.pool, tx, true)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", "", err)
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// lockKey is hashed by hashtext into the advisory lock id.
func lockKey(lock storage.EntryLock) string {
	return fmt.Sprintf("meal_entry:%d:%s", lock.MealOptionID, lock.Week)
}

// classify maps a pgx error to the storage taxonomy.
func classify(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return storage.Conflict(entity, err)
		case codeForeignKeyViolation:
			return storage.ForeignKey(op, err)
		}
	}
	return &storage.Error{Kind: storage.KindStorage, Op: op, Entity: entity, Err: err}
}

// inTx runs fn in a transaction (a savepoint when q is already a pgx.Tx).
func inTx(ctx context.Context, q querier, op string, fn func(tx pgx.Tx) error) error {
	tx, err := q.Begin(ctx)
	if err != nil {
		return classify(op, "", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(op, "", err)
	}
	return nil
}

func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
