package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// SQLite extended result codes for constraint violations.
const (
	codeConstraintForeignKey = 787
	codeConstraintTrigger    = 1811
	codeConstraintPrimaryKey = 1555
	codeConstraintUnique     = 2067
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage — встроенное хранилище на одном файле SQLite
type SQLiteStorage struct {
	db   *sql.DB
	q    dbtx
	inTx bool
	now  func() time.Time
}

var _ storage.Store = (*SQLiteStorage)(nil)

type Options struct {
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// DSN builds the connection string: foreign keys on, WAL journal, a busy
// timeout, and BEGIN IMMEDIATE for every transaction so writers serialize.
func DSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, sep, busyTimeout.Milliseconds())
}

// OpenDB opens the database file without touching the schema.
func OpenDB(path string, opts Options) (*sql.DB, error) {
	db, err := sql.Open(DriverName, DSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Open opens path and pings it. The schema is created by dbmigrate.
func Open(ctx context.Context, path string, opts Options) (*SQLiteStorage, error) {
	db, err := OpenDB(path, opts)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return New(db), nil
}

// New wraps an open database.
func New(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{
		db:  db,
		q:   db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying handle, e.g. for migrations.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// InTx runs fn in one BEGIN IMMEDIATE transaction. Nested calls reuse the
// outer transaction.
func (s *SQLiteStorage) InTx(ctx context.Context, lock storage.EntryLock, fn func(ctx context.Context, tx storage.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", "", err)
	}
	defer tx.Rollback()

	txs := &SQLiteStorage{db: s.db, q: tx, inTx: true, now: s.now}
	if err := fn(ctx, txs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit transaction", "", err)
	}
	return nil
}

// withTx runs fn in the current transaction, or in a new one.
func (s *SQLiteStorage) withTx(ctx context.Context, op string, fn func(q dbtx) error) error {
	if s.inTx {
		return fn(s.q)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, "", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(op, "", err)
	}
	return nil
}

// classify maps a driver error to the storage taxonomy.
func classify(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case codeConstraintUnique, codeConstraintPrimaryKey:
			return storage.Conflict(entity, err)
		case codeConstraintForeignKey, codeConstraintTrigger:
			return storage.ForeignKey(op, err)
		}
	}
	return &storage.Error{Kind: storage.KindStorage, Op: op, Entity: entity, Err: err}
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", v, err)
	}
	return t, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(query)) + "%"
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
