package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/options"
	"github.com/valerioformato/nutrition-helper/internal/storage"
)

func (a *app) optionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "option",
		Aliases: []string{"options"},
		Short:   "Manage the options of meal templates",
	}
	cmd.AddCommand(
		a.optionCreateCmd(),
		a.optionListCmd(),
		a.optionGetCmd(),
		a.optionUpdateCmd(),
		a.optionDeleteCmd(),
		a.optionTagCmd(),
	)
	return cmd
}

func (a *app) optionCreateCmd() *cobra.Command {
	var (
		req         options.CreateOptionRequest
		desc, notes string
		tagIDs      []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a meal option",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(tagIDs)
			if err != nil {
				return err
			}
			req.TagIDs = ids
			if cmd.Flags().Changed("description") {
				req.Description = &desc
			}
			if cmd.Flags().Changed("notes") {
				req.NutritionalNotes = &notes
			}

			svc, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			o, err := svc.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printJSON(o)
		},
	}
	cmd.Flags().Int64Var(&req.TemplateID, "template", 0, "Template id")
	cmd.Flags().StringVar(&req.Name, "name", "", "Option name")
	cmd.Flags().StringVar(&desc, "description", "", "Description")
	cmd.Flags().StringVar(&notes, "notes", "", "Nutritional notes")
	cmd.Flags().StringSliceVar(&tagIDs, "tags", nil, "Tag ids (comma separated)")
	return cmd
}

func (a *app) optionListCmd() *cobra.Command {
	var (
		templateID int64
		search     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meal options",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			var list []options.OptionDTO
			if templateID > 0 {
				list, err = svc.ListByTemplateWithTags(cmd.Context(), templateID)
			} else {
				list, err = svc.Search(cmd.Context(), search)
			}
			if err != nil {
				return err
			}
			return a.printJSON(list)
		},
	}
	cmd.Flags().Int64Var(&templateID, "template", 0, "Only options of this template, with their tags")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive name search")
	cmd.MarkFlagsMutuallyExclusive("template", "search")
	return cmd
}

func (a *app) optionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a meal option with its tags",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			o, err := svc.GetWithTags(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(o)
		},
	}
}

func (a *app) optionUpdateCmd() *cobra.Command {
	var (
		name, desc, notes string
		clear             []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a meal option",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cleared, err := clearSet(clear, "description", "notes")
			if err != nil {
				return err
			}

			var req options.UpdateOptionRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			switch {
			case cleared["description"]:
				req.Description = storage.Clear[string]()
			case flags.Changed("description"):
				req.Description = storage.Set(desc)
			}
			switch {
			case cleared["notes"]:
				req.NutritionalNotes = storage.Clear[string]()
			case flags.Changed("notes"):
				req.NutritionalNotes = storage.Set(notes)
			}

			svc, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			o, err := svc.Update(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return a.printJSON(o)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&desc, "description", "", "New description")
	cmd.Flags().StringVar(&notes, "notes", "", "New nutritional notes")
	cmd.Flags().StringSliceVar(&clear, "clear", nil, "Fields to clear: description, notes")
	return cmd
}

func (a *app) optionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meal option",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.options(cmd.Context())
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

// optionTagCmd groups add, remove and set of an option's tags. Each prints
// the resulting tag ids.
func (a *app) optionTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Change the tags of a meal option",
	}
	type tagOp func(svc *options.Service, ctx context.Context, id int64, tagIDs []int64) ([]int64, error)
	sub := func(use, short string, minTags int, op tagOp) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <option-id> [tag-id...]",
			Short: short,
			Args:  minArgs(1 + minTags),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				tagIDs, err := parseIDs(args[1:])
				if err != nil {
					return err
				}
				svc, err := a.options(cmd.Context())
				if err != nil {
					return err
				}
				ids, err := op(svc, cmd.Context(), id, tagIDs)
				if err != nil {
					return err
				}
				return a.printJSON(map[string]any{"meal_option_id": id, "tag_ids": ids})
			},
		}
	}
	cmd.AddCommand(
		sub("add", "Attach tags to an option", 1, (*options.Service).AddTags),
		sub("remove", "Detach tags from an option", 1, (*options.Service).RemoveTags),
		sub("set", "Replace the tags of an option", 0, (*options.Service).SetTags),
	)
	return cmd
}
