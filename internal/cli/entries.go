package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/entries"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

func (a *app) entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entry",
		Aliases: []string{"entries"},
		Short:   "Plan and log meal entries",
	}
	cmd.AddCommand(
		a.entryAddCmd(),
		a.entryListCmd(),
		a.entryGetCmd(),
		a.entryUpdateCmd(),
		a.entryCompleteCmd(),
		a.entryDeleteCmd(),
	)
	return cmd
}

func (a *app) entryAddCmd() *cobra.Command {
	var (
		req      entries.CreateEntryRequest
		slot     string
		location string
		servings float64
		notes    string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a meal entry, enforcing slot rules and weekly limits",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SlotType = storage.SlotType(slot)
			req.Location = storage.LocationType(location)
			if req.Date == "" {
				req.Date = week.FormatDate(time.Now())
			}
			if cmd.Flags().Changed("servings") {
				req.Servings = &servings
			}
			if cmd.Flags().Changed("notes") {
				req.Notes = &notes
			}

			svc, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			a.printWarnings(res.Warnings)
			return a.printJSON(res)
		},
	}
	cmd.Flags().Int64Var(&req.MealOptionID, "option", 0, "Meal option id")
	cmd.Flags().StringVar(&req.Date, "date", "", "Date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&slot, "slot", "", "Slot: breakfast, morning_snack, lunch, afternoon_snack or dinner")
	cmd.Flags().StringVar(&location, "location", string(storage.LocationHome), "Where the meal is eaten")
	cmd.Flags().Float64Var(&servings, "servings", entries.DefaultServings, "Servings")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().BoolVar(&req.Completed, "completed", false, "Mark as already eaten")
	cmd.Flags().BoolVar(&req.SkipValidation, "force", false, "Skip slot and weekly limit checks")
	return cmd
}

func (a *app) entryListCmd() *cobra.Command {
	var (
		date, from, to, slot, weekKey string
		optionID                      int64
		completed                     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meal entries",
		Long: `List meal entries by date (optionally narrowed to a slot), by an
inclusive date range, by ISO week, by option or by completion state.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			flags := cmd.Flags()

			var list []entries.EntryDTO
			switch {
			case flags.Changed("week"):
				start, perr := week.ParseKey(weekKey)
				if perr != nil {
					return storage.Invalid("week", "%v", perr)
				}
				first, last := week.Range(start)
				list, err = svc.ListByDateRange(ctx, week.FormatDate(first), week.FormatDate(last))
			case flags.Changed("from") || flags.Changed("to"):
				if from == "" || to == "" {
					return usagef("--from and --to must be given together")
				}
				list, err = svc.ListByDateRange(ctx, from, to)
			case flags.Changed("option"):
				list, err = svc.ListByOption(ctx, optionID)
			case flags.Changed("completed"):
				list, err = svc.ListByCompleted(ctx, completed)
			case slot != "":
				if date == "" {
					date = week.FormatDate(time.Now())
				}
				list, err = svc.ListByDateAndSlot(ctx, date, storage.SlotType(slot))
			default:
				if date == "" {
					date = week.FormatDate(time.Now())
				}
				list, err = svc.ListByDate(ctx, date)
			}
			if err != nil {
				return err
			}
			return a.printJSON(list)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&slot, "slot", "", "Only this slot of --date")
	cmd.Flags().StringVar(&from, "from", "", "Range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Range end YYYY-MM-DD")
	cmd.Flags().StringVar(&weekKey, "week", "", "ISO week YYYY-WW")
	cmd.Flags().Int64Var(&optionID, "option", 0, "Only entries of this option")
	cmd.Flags().BoolVar(&completed, "completed", false, "Filter by completion state")
	cmd.MarkFlagsMutuallyExclusive("week", "from", "option", "completed", "date")
	cmd.MarkFlagsMutuallyExclusive("week", "to", "option", "completed", "slot")
	return cmd
}

func (a *app) entryGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a meal entry",
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
			e, err := svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(e)
		},
	}
}

func (a *app) entryUpdateCmd() *cobra.Command {
	var (
		optionID                    int64
		date, slot, location, notes string
		servings                    float64
		completed, force            bool
		clear                       []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update or move a meal entry",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cleared, err := clearSet(clear, "notes")
			if err != nil {
				return err
			}

			req := entries.UpdateEntryRequest{SkipValidation: force}
			flags := cmd.Flags()
			if flags.Changed("option") {
				req.MealOptionID = &optionID
			}
			if flags.Changed("date") {
				req.Date = &date
			}
			if flags.Changed("slot") {
				s := storage.SlotType(slot)
				req.SlotType = &s
			}
			if flags.Changed("location") {
				l := storage.LocationType(location)
				req.Location = &l
			}
			if flags.Changed("servings") {
				req.Servings = &servings
			}
			if flags.Changed("completed") {
				req.Completed = &completed
			}
			switch {
			case cleared["notes"]:
				req.Notes = storage.Clear[string]()
			case flags.Changed("notes"):
				req.Notes = storage.Set(notes)
			}

			svc, err := a.entries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Update(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			a.printWarnings(res.Warnings)
			return a.printJSON(res)
		},
	}
	cmd.Flags().Int64Var(&optionID, "option", 0, "New meal option id")
	cmd.Flags().StringVar(&date, "date", "", "New date YYYY-MM-DD")
	cmd.Flags().StringVar(&slot, "slot", "", "New slot")
	cmd.Flags().StringVar(&location, "location", "", "New location")
	cmd.Flags().Float64Var(&servings, "servings", 0, "New servings")
	cmd.Flags().StringVar(&notes, "notes", "", "New notes")
	cmd.Flags().BoolVar(&completed, "completed", false, "Completion state")
	cmd.Flags().BoolVar(&force, "force", false, "Skip slot and weekly limit checks")
	cmd.Flags().StringSliceVar(&clear, "clear", nil, "Fields to clear: notes")
	return cmd
}

func (a *app) entryCompleteCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a meal entry as eaten",
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
			e, err := svc.SetCompleted(cmd.Context(), id, !undo)
			if err != nil {
				return err
			}
			return a.printJSON(e)
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Mark as not eaten")
	return cmd
}

func (a *app) entryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meal entry",
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
			if err := svc.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return a.printJSON(map[string]any{"deleted": id})
		},
	}
}
