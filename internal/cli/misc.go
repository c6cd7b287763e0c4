package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/blob"
	"github.com/valerioformato/nutrition-helper/internal/catalog"
	"github.com/valerioformato/nutrition-helper/internal/dbmigrate"
	"github.com/valerioformato/nutrition-helper/internal/export"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|status|down>",
		Short:     "Apply or inspect the database schema",
		Args:      exactArgs(1),
		ValidArgs: []string{"up", "status", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			switch command {
			case "up", "status", "down":
			default:
				return usagef("unsupported command %q (allowed: up, status, down)", command)
			}

			dialect, err := dbmigrate.DialectFor(a.cfg.Driver)
			if err != nil {
				return usageError{err}
			}
			dsn, source, err := dbmigrate.SelectDatabaseURL(a.cfg, false)
			if err != nil {
				return err
			}

			a.logger.Info("Running migrations", "command", command, "dialect", dialect, "using", source)
			dbmigrate.SetLogger(log.New(a.errOut, "", 0))
			if err := dbmigrate.Run(cmd.Context(), command, dialect, dsn); err != nil {
				return err
			}
			a.logger.Info("Migrations completed", "command", command)
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	var (
		optionID int64
		slot     string
		date     string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check whether an option may be planned at a date and slot",
		Long: `Runs the slot, weekly limit and tag suggestion rules for a
hypothetical entry without writing anything. Exits 4 when a rule blocks it.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = week.FormatDate(time.Now())
			}
			svc, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Validate(cmd.Context(), optionID, storage.SlotType(slot), date)
			if err != nil {
				return err
			}
			a.printWarnings(res.Warnings)
			if err := a.printJSON(res); err != nil {
				return err
			}
			if !res.OK() {
				return res.Failure
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&optionID, "option", 0, "Meal option id")
	cmd.Flags().StringVar(&slot, "slot", "", "Slot to check")
	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")
	cmd.MarkFlagRequired("option")
	cmd.MarkFlagRequired("slot")
	return cmd
}

func (a *app) usageCmd() *cobra.Command {
	var weekKey string
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show weekly usage of an option or a tag",
	}
	cmd.PersistentFlags().StringVar(&weekKey, "week", "", "ISO week YYYY-WW (default current week)")

	resolveWeek := func() string {
		if weekKey == "" {
			return week.Key(time.Now())
		}
		return weekKey
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "option <id>",
			Short: "Usage of a meal option against its template's weekly limit",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				svc, err := a.entries(cmd.Context())
				if err != nil {
					return err
				}
				u, err := svc.WeeklyUsage(cmd.Context(), id, resolveWeek())
				if err != nil {
					return err
				}
				return a.printJSON(u)
			},
		},
		&cobra.Command{
			Use:   "tag <id>",
			Short: "Usage of a tag against its weekly suggestion",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				svc, err := a.entries(cmd.Context())
				if err != nil {
					return err
				}
				u, err := svc.WeeklyTagUsage(cmd.Context(), id, resolveWeek())
				if err != nil {
					return err
				}
				return a.printJSON(u)
			},
		},
	)
	return cmd
}

// weekInfo is printed by the week command.
type weekInfo struct {
	Date  string   `json:"date"`
	Week  string   `json:"week"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

func (a *app) weekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week [date]",
		Short: "Show the ISO week of a date (default today)",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := week.Truncate(time.Now())
			if len(args) == 1 {
				parsed, err := week.ParseDate(args[0])
				if err != nil {
					return storage.Invalid("date", "%v", err)
				}
				d = parsed
			}
			start, end := week.Range(d)
			info := weekInfo{
				Date:  week.FormatDate(d),
				Week:  week.Key(d),
				Start: week.FormatDate(start),
				End:   week.FormatDate(end),
			}
			for _, day := range week.Days(d) {
				info.Days = append(info.Days, week.FormatDate(day))
			}
			return a.printJSON(info)
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var weekKey, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a week's plan as CSV or PDF and store it",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if weekKey == "" {
				weekKey = week.Key(time.Now())
			}
			store, err := a.storeFor(cmd.Context())
			if err != nil {
				return err
			}
			blobs, mode, err := blob.NewBlobStore(cmd.Context(), a.cfg.Blob, slog.NewLogLogger(a.logger.Handler(), slog.LevelInfo))
			if err != nil {
				return err
			}
			a.logger.Debug("Export store ready", "mode", mode)

			res, err := export.NewExporter(store, blobs).WeeklyPlan(cmd.Context(), weekKey, format)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&weekKey, "week", "", "ISO week YYYY-WW (default current week)")
	cmd.Flags().StringVar(&format, "format", export.FormatCSV, "Output format: csv or pdf")
	return cmd
}

func (a *app) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import templates, options, tags and planned entries from a YAML file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <file>",
			Short: "Import a catalog file once",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cat, err := catalog.LoadFile(args[0])
				if err != nil {
					return err
				}
				store, err := a.storeFor(cmd.Context())
				if err != nil {
					return err
				}
				report, err := catalog.NewImporter(store, a.logger).Import(cmd.Context(), cat)
				if err != nil {
					return err
				}
				a.printWarnings(report.Warnings)
				return a.printJSON(report)
			},
		},
		a.catalogWatchCmd(),
	)
	return cmd
}

func (a *app) catalogWatchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-import a catalog file whenever it changes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.storeFor(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = a.cfg.CatalogDebounce
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := catalog.NewWatcher(args[0], debounce, catalog.NewImporter(store, a.logger), a.logger)
			w.OnImport = func(report *catalog.ImportReport, err error) {
				if err != nil {
					fmt.Fprintf(a.errOut, "Error: %v\n", err)
					return
				}
				a.printWarnings(report.Warnings)
				a.printJSON(report)
			}

			a.logger.Info("Watching catalog", "path", args[0], "debounce", debounce)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before re-importing (overrides CATALOG_DEBOUNCE_MS)")
	return cmd
}
