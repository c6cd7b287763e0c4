package dbmigrate

import (
	"testing"

	"github.com/valerioformato/nutrition-helper/internal/config"
)

func TestSelectDatabaseURL_Priority(t *testing.T) {
	cfg := &config.Config{
		Driver:            config.DriverPostgres,
		DatabaseURLDirect: "postgres://direct",
		DatabaseURL:       "postgres://url",
	}

	dsn, source, err := SelectDatabaseURL(cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "postgres://direct" || source != "DATABASE_URL_DIRECT" {
		t.Fatalf("expected direct URL, got dsn=%q source=%q", dsn, source)
	}
}

func TestSelectDatabaseURL_FallbackToDatabaseURL(t *testing.T) {
	cfg := &config.Config{
		Driver:      config.DriverPostgres,
		DatabaseURL: "postgres://url",
	}

	dsn, source, err := SelectDatabaseURL(cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "postgres://url" || source != "DATABASE_URL" {
		t.Fatalf("expected DATABASE_URL, got dsn=%q source=%q", dsn, source)
	}
}

func TestSelectDatabaseURL_RequireDirect(t *testing.T) {
	cfg := &config.Config{
		Driver:      config.DriverPostgres,
		DatabaseURL: "postgres://url",
	}

	if _, _, err := SelectDatabaseURL(cfg, true); err == nil {
		t.Fatal("expected error when direct is required but missing")
	}
}

func TestSelectDatabaseURL_SQLitePath(t *testing.T) {
	cfg := &config.Config{
		Driver:       config.DriverSQLite,
		DatabasePath: "/tmp/meals.db",
		DatabaseURL:  "postgres://ignored",
	}

	dsn, source, err := SelectDatabaseURL(cfg, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "/tmp/meals.db" || source != "DATABASE_PATH" {
		t.Fatalf("expected sqlite path, got dsn=%q source=%q", dsn, source)
	}
}

func TestSelectDatabaseURL_Memory(t *testing.T) {
	cfg := &config.Config{Driver: config.DriverMemory}

	if _, _, err := SelectDatabaseURL(cfg, false); err == nil {
		t.Fatal("expected error for the memory driver")
	}
}

func TestDialectFor(t *testing.T) {
	if d, err := DialectFor(config.DriverSQLite); err != nil || d != DialectSQLite {
		t.Fatalf("sqlite: got %q, %v", d, err)
	}
	if d, err := DialectFor(config.DriverPostgres); err != nil || d != DialectPostgres {
		t.Fatalf("postgres: got %q, %v", d, err)
	}
	if _, err := DialectFor(config.DriverMemory); err == nil {
		t.Fatal("expected error for the memory driver")
	}
}
