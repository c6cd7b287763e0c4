package cli

import (
	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/tags"
)

func (a *app) tagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tag",
		Aliases: []string{"tags"},
		Short:   "Manage tags and their weekly suggestions",
	}
	cmd.AddCommand(
		a.tagCreateCmd(),
		a.tagListCmd(),
		a.tagGetCmd(),
		a.tagUpdateCmd(),
		a.tagDeleteCmd(),
	)
	return cmd
}

func (a *app) tagCreateCmd() *cobra.Command {
	var (
		req        tags.CreateTagRequest
		category   string
		suggestion int
		parent     int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tag",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Category = storage.TagCategory(category)
			if cmd.Flags().Changed("weekly-suggestion") {
				req.WeeklySuggestion = &suggestion
			}
			if cmd.Flags().Changed("parent") {
				req.ParentTagID = &parent
			}

			svc, err := a.tags(cmd.Context())
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
	cmd.Flags().StringVar(&req.Name, "name", "", "Tag name (lowercase letters and underscores)")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "Human readable name")
	cmd.Flags().StringVar(&category, "category", string(storage.TagOther), "Category: ingredient, dietary, prep_time or other")
	cmd.Flags().IntVar(&suggestion, "weekly-suggestion", 0, "Suggested maximum uses per week")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent tag id")
	return cmd
}

func (a *app) tagListCmd() *cobra.Command {
	var (
		category string
		parent   int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.tags(cmd.Context())
			if err != nil {
				return err
			}
			var list []tags.TagDTO
			switch {
			case category != "":
				list, err = svc.ListByCategory(cmd.Context(), storage.TagCategory(category))
			case parent > 0:
				list, err = svc.ListChildren(cmd.Context(), parent)
			default:
				list, err = svc.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			return a.printJSON(list)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only tags of this category")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Only children of this tag")
	cmd.MarkFlagsMutuallyExclusive("category", "parent")
	return cmd
}

// tagGetCmd accepts either an id or a tag name.
func (a *app) tagGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|name>",
		Short: "Show a tag",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.tags(cmd.Context())
			if err != nil {
				return err
			}
			var t *tags.TagDTO
			if id, perr := parseID(args[0]); perr == nil {
				t, err = svc.Get(cmd.Context(), id)
			} else {
				t, err = svc.GetByName(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return a.printJSON(t)
		},
	}
}

func (a *app) tagUpdateCmd() *cobra.Command {
	var (
		displayName, category string
		suggestion            int
		parent                int64
		clear                 []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a tag",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cleared, err := clearSet(clear, "weekly-suggestion", "parent")
			if err != nil {
				return err
			}

			var req tags.UpdateTagRequest
			flags := cmd.Flags()
			if flags.Changed("display-name") {
				req.DisplayName = &displayName
			}
			if flags.Changed("category") {
				c := storage.TagCategory(category)
				req.Category = &c
			}
			switch {
			case cleared["weekly-suggestion"]:
				req.WeeklySuggestion = storage.Clear[int]()
			case flags.Changed("weekly-suggestion"):
				req.WeeklySuggestion = storage.Set(suggestion)
			}
			switch {
			case cleared["parent"]:
				req.ParentTagID = storage.Clear[int64]()
			case flags.Changed("parent"):
				req.ParentTagID = storage.Set(parent)
			}

			svc, err := a.tags(cmd.Context())
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
	cmd.Flags().StringVar(&displayName, "display-name", "", "New display name")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().IntVar(&suggestion, "weekly-suggestion", 0, "New weekly suggestion")
	cmd.Flags().Int64Var(&parent, "parent", 0, "New parent tag id")
	cmd.Flags().StringSliceVar(&clear, "clear", nil, "Fields to clear: weekly-suggestion, parent")
	return cmd
}

func (a *app) tagDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tag; its children become top-level tags",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.tags(cmd.Context())
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
