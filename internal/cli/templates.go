package cli

import (
	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/templates"
)

func (a *app) templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Manage meal templates",
	}
	cmd.AddCommand(
		a.templateCreateCmd(),
		a.templateListCmd(),
		a.templateGetCmd(),
		a.templateUpdateCmd(),
		a.templateDeleteCmd(),
	)
	return cmd
}

func (a *app) templateCreateCmd() *cobra.Command {
	var (
		req      templates.CreateTemplateRequest
		slots    []string
		location string
		desc     string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a meal template",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.CompatibleSlots = parseSlots(slots)
			req.LocationType = storage.LocationType(location)
			if cmd.Flags().Changed("description") {
				req.Description = &desc
			}
			if cmd.Flags().Changed("weekly-limit") {
				req.WeeklyLimit = &limit
			}

			svc, err := a.templates(cmd.Context())
			if err != nil {
				return err
			}
			t, err := svc.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printJSON(t)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Template name")
	cmd.Flags().StringVar(&desc, "description", "", "Description")
	cmd.Flags().StringSliceVar(&slots, "slots", nil, "Compatible slots (comma separated)")
	cmd.Flags().StringVar(&location, "location", string(storage.LocationAny), "Location: home, office, restaurant or any")
	cmd.Flags().IntVar(&limit, "weekly-limit", 0, "Maximum uses per week")
	return cmd
}

func (a *app) templateListCmd() *cobra.Command {
	var slot, location, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meal templates",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.templates(cmd.Context())
			if err != nil {
				return err
			}
			var list []templates.TemplateDTO
			switch {
			case slot != "":
				list, err = svc.ListBySlot(cmd.Context(), storage.SlotType(slot))
			case location != "":
				list, err = svc.ListByLocation(cmd.Context(), storage.LocationType(location))
			default:
				list, err = svc.Search(cmd.Context(), search)
			}
			if err != nil {
				return err
			}
			return a.printJSON(list)
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "", "Only templates compatible with this slot")
	cmd.Flags().StringVar(&location, "location", "", "Only templates usable at this location")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive name search")
	cmd.MarkFlagsMutuallyExclusive("slot", "location", "search")
	return cmd
}

func (a *app) templateGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a meal template",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.templates(cmd.Context())
			if err != nil {
				return err
			}
			t, err := svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(t)
		},
	}
}

func (a *app) templateUpdateCmd() *cobra.Command {
	var (
		name, desc, location string
		slots, clear         []string
		limit                int
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a meal template",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cleared, err := clearSet(clear, "description", "weekly-limit")
			if err != nil {
				return err
			}

			var req templates.UpdateTemplateRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("slots") {
				req.CompatibleSlots = parseSlots(slots)
			}
			if flags.Changed("location") {
				loc := storage.LocationType(location)
				req.LocationType = &loc
			}
			switch {
			case cleared["description"]:
				req.Description = storage.Clear[string]()
			case flags.Changed("description"):
				req.Description = storage.Set(desc)
			}
			switch {
			case cleared["weekly-limit"]:
				req.WeeklyLimit = storage.Clear[int]()
			case flags.Changed("weekly-limit"):
				req.WeeklyLimit = storage.Set(limit)
			}

			svc, err := a.templates(cmd.Context())
			if err != nil {
				return err
			}
			t, err := svc.Update(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return a.printJSON(t)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&desc, "description", "", "New description")
	cmd.Flags().StringSliceVar(&slots, "slots", nil, "New compatible slots")
	cmd.Flags().StringVar(&location, "location", "", "New location")
	cmd.Flags().IntVar(&limit, "weekly-limit", 0, "New weekly limit")
	cmd.Flags().StringSliceVar(&clear, "clear", nil, "Fields to clear: description, weekly-limit")
	return cmd
}

func (a *app) templateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meal template and its options",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.templates(cmd.Context())
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
