// Package cli is the command shell of the planner: one cobra command per
// operation, JSON on stdout, warnings and errors on stderr.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/config"
	"github.com/valerioformato/nutrition-helper/internal/dbmigrate"
	"github.com/valerioformato/nutrition-helper/internal/entries"
	"github.com/valerioformato/nutrition-helper/internal/options"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/storage/memory"
	"github.com/valerioformato/nutrition-helper/internal/storage/postgres"
	"github.com/valerioformato/nutrition-helper/internal/storage/sqlite"
	"github.com/valerioformato/nutrition-helper/internal/tags"
	"github.com/valerioformato/nutrition-helper/internal/templates"
	"github.com/valerioformato/nutrition-helper/internal/validation"
)

const (
	Version = "0.1.0"
	appName = "nutrition-helper"
)

// app carries what every command needs. The store is opened lazily by the
// commands that use it.
type app struct {
	out    io.Writer
	errOut io.Writer

	dbPath   string
	driver   string
	logLevel string

	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Store
	started bool

	// newStore opens the store; tests replace it.
	newStore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error)
}

// Execute runs the command line in args and returns the process exit code.
// Errors are printed to errOut.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	a := &app{out: out, errOut: errOut, newStore: openStore}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	a.started, a.cfg = false, nil
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err == nil {
		return ExitOK
	}

	// Anything cobra rejects before a command starts is a usage error.
	if !a.started {
		err = usageError{err}
	}
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	return ExitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Weekly meal planner with slot rules, weekly limits and tag suggestions",
		Long: `nutrition-helper manages meal templates, their options, tags and the
entries of a weekly plan. Every write goes through the business rules:
slot compatibility and weekly limits block, tag suggestions warn.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra checks these only after the persistent pre-run.
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return usageError{err}
			}
			if err := cmd.ValidateFlagGroups(); err != nil {
				return usageError{err}
			}
			a.started = true
			a.setup()
			return nil
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database file (overrides DATABASE_PATH)")
	cmd.PersistentFlags().StringVar(&a.driver, "driver", "", "Storage driver: sqlite, postgres or memory (overrides DB_DRIVER)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	cmd.AddCommand(
		a.migrateCmd(),
		a.templateCmd(),
		a.optionCmd(),
		a.tagCmd(),
		a.entryCmd(),
		a.validateCmd(),
		a.usageCmd(),
		a.weekCmd(),
		a.exportCmd(),
		a.catalogCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  noArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(a.out, "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// setup loads the configuration and applies the global flags.
func (a *app) setup() {
	if a.cfg != nil {
		return
	}
	cfg := config.Load()
	if a.dbPath != "" {
		cfg.DatabasePath = a.dbPath
	}
	if a.driver != "" {
		cfg.Driver = config.ParseDriver(a.driver)
		if strings.TrimSpace(os.Getenv("RUN_MIGRATIONS_ON_STARTUP")) == "" {
			cfg.RunMigrationsOnStartup = cfg.Driver == config.DriverSQLite
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = strings.ToLower(a.logLevel)
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	logConfig(a.logger, cfg)
}

// logConfig prints the resolved configuration at debug level. Secrets are
// only reported as set or not set.
func logConfig(logger *slog.Logger, cfg *config.Config) {
	database := cfg.DatabasePath
	if cfg.Driver == config.DriverPostgres {
		database = "DATABASE_URL"
		if cfg.DatabaseURL == "" {
			database = "(not set)"
		}
	}
	logger.Debug("Configuration",
		"env", cfg.Env,
		"driver", cfg.Driver,
		"database", database,
		"migrations_on_startup", cfg.RunMigrationsOnStartup,
		"blob_mode", cfg.Blob.Mode,
		"export_dir", cfg.Blob.ExportDir)
	if cfg.Blob.Mode != config.BlobModeLocal {
		logger.Debug("S3 export store", "config", cfg.Blob.S3.Summary())
	}
}

// storeFor returns the open store, opening it on first use.
func (a *app) storeFor(ctx context.Context) (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := a.newStore(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) templates(ctx context.Context) (*templates.Service, error) {
	s, err := a.storeFor(ctx)
	if err != nil {
		return nil, err
	}
	return templates.NewService(s), nil
}

func (a *app) options(ctx context.Context) (*options.Service, error) {
	s, err := a.storeFor(ctx)
	if err != nil {
		return nil, err
	}
	return options.NewService(s), nil
}

func (a *app) tags(ctx context.Context) (*tags.Service, error) {
	s, err := a.storeFor(ctx)
	if err != nil {
		return nil, err
	}
	return tags.NewService(s), nil
}

func (a *app) entries(ctx context.Context) (*entries.Service, error) {
	s, err := a.storeFor(ctx)
	if err != nil {
		return nil, err
	}
	return entries.NewService(s), nil
}

// openStore opens the configured backend, migrating it first when
// RunMigrationsOnStartup is set.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Debug("Using in-memory store")
		return memory.New(), nil

	case config.DriverPostgres:
		if cfg.RunMigrationsOnStartup {
			dsn, source, err := dbmigrate.SelectDatabaseURL(cfg, false)
			if err != nil {
				return nil, err
			}
			logger.Info("Running migrations", "dialect", dbmigrate.DialectPostgres, "using", source)
			if err := dbmigrate.Run(ctx, "up", dbmigrate.DialectPostgres, dsn); err != nil {
				return nil, err
			}
		}
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		s, err := postgres.New(ctx, cfg.DatabaseURL, cfg.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		s, err := sqlite.Open(ctx, cfg.DatabasePath, sqlite.Options{
			MaxOpenConns: cfg.MaxOpenConns,
			BusyTimeout:  cfg.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrationsOnStartup {
			dbmigrate.SetLogger(gooseLogger{logger})
			if err := dbmigrate.Migrate(ctx, s.DB(), dbmigrate.DialectSQLite, "up"); err != nil {
				s.Close()
				return nil, err
			}
		}
		logger.Debug("Opened sqlite store", "path", cfg.DatabasePath)
		return s, nil
	}
}

// gooseLogger sends goose output to slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) printWarnings(warnings []validation.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(a.errOut, "Warning: %s\n", w.Message)
	}
}
