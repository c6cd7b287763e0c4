package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerioformato/nutrition-helper/internal/entries"
	"github.com/valerioformato/nutrition-helper/internal/options"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/tags"
	"github.com/valerioformato/nutrition-helper/internal/templates"
	"github.com/valerioformato/nutrition-helper/internal/validation"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

// ImportReport counts what an import did. Re-importing an unchanged catalog
// creates nothing.
type ImportReport struct {
	TagsCreated      int                  `json:"tags_created"`
	TagsUpdated      int                  `json:"tags_updated"`
	TemplatesCreated int                  `json:"templates_created"`
	TemplatesUpdated int                  `json:"templates_updated"`
	OptionsCreated   int                  `json:"options_created"`
	OptionsUpdated   int                  `json:"options_updated"`
	EntriesCreated   int                  `json:"entries_created"`
	EntriesSkipped   int                  `json:"entries_skipped"`
	Rejected         []RejectedEntry      `json:"rejected"`
	Warnings         []validation.Warning `json:"warnings"`
}

// RejectedEntry is a planned entry the business rules refused.
type RejectedEntry struct {
	Option string           `json:"option"`
	Date   string           `json:"date"`
	Slot   storage.SlotType `json:"slot"`
	Reason string           `json:"reason"`
}

// Importer upserts a catalog by name through the entity services.
type Importer struct {
	tags      *tags.Service
	templates *templates.Service
	options   *options.Service
	entries   *entries.Service
	logger    *slog.Logger
}

func NewImporter(store storage.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		tags:      tags.NewService(store),
		templates: templates.NewService(store),
		options:   options.NewService(store),
		entries:   entries.NewService(store),
		logger:    logger,
	}
}

// Import applies cat. It stops at the first storage or input error; rule
// failures on planned entries are collected in the report instead.
func (im *Importer) Import(ctx context.Context, cat *Catalog) (*ImportReport, error) {
	report := &ImportReport{Rejected: []RejectedEntry{}, Warnings: []validation.Warning{}}

	tagIDs, err := im.importTags(ctx, cat.Tags, report)
	if err != nil {
		return nil, err
	}
	optionIDs, err := im.importTemplates(ctx, cat.Templates, tagIDs, report)
	if err != nil {
		return nil, err
	}
	if err := im.importEntries(ctx, cat.Entries, optionIDs, report); err != nil {
		return nil, err
	}

	im.logger.Info("Catalog imported",
		"tags_created", report.TagsCreated,
		"templates_created", report.TemplatesCreated,
		"options_created", report.OptionsCreated,
		"entries_created", report.EntriesCreated,
		"entries_skipped", report.EntriesSkipped,
		"rejected", len(report.Rejected))
	return report, nil
}

// importTags runs in two passes so parents may appear after their children.
func (im *Importer) importTags(ctx context.Context, list []Tag, report *ImportReport) (map[string]int64, error) {
	ids := make(map[string]int64, len(list))
	for _, t := range list {
		existing, err := im.tags.GetByName(ctx, t.Name)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			created, err := im.tags.Create(ctx, tags.CreateTagRequest{
				Name:             t.Name,
				DisplayName:      t.DisplayName,
				Category:         t.Category,
				WeeklySuggestion: t.WeeklySuggestion,
			})
			if err != nil {
				return nil, fmt.Errorf("tag %q: %w", t.Name, err)
			}
			ids[t.Name] = created.ID
			report.TagsCreated++
		case err != nil:
			return nil, fmt.Errorf("tag %q: %w", t.Name, err)
		default:
			ids[t.Name] = existing.ID
			report.TagsUpdated++
		}
	}

	for _, t := range list {
		parent := storage.Clear[int64]()
		if t.Parent != "" {
			parent = storage.Set(ids[t.Parent])
		}
		displayName, category := t.DisplayName, t.Category
		_, err := im.tags.Update(ctx, ids[t.Name], tags.UpdateTagRequest{
			DisplayName:      &displayName,
			Category:         &category,
			WeeklySuggestion: storage.PatchFromPtr(t.WeeklySuggestion),
			ParentTagID:      parent,
		})
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", t.Name, err)
		}
	}
	return ids, nil
}

type optionKey struct {
	template string
	option   string
}

func (im *Importer) importTemplates(ctx context.Context, list []Template, tagIDs map[string]int64, report *ImportReport) (map[optionKey]int64, error) {
	existing, err := im.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(existing))
	for _, t := range existing {
		byName[t.Name] = t.ID
	}

	optionIDs := map[optionKey]int64{}
	for _, tmpl := range list {
		id, ok := byName[tmpl.Name]
		if ok {
			slots, location := tmpl.CompatibleSlots, tmpl.LocationType
			if _, err := im.templates.Update(ctx, id, templates.UpdateTemplateRequest{
				Description:     storage.PatchFromPtr(tmpl.Description),
				CompatibleSlots: slots,
				LocationType:    &location,
				WeeklyLimit:     storage.PatchFromPtr(tmpl.WeeklyLimit),
			}); err != nil {
				return nil, fmt.Errorf("template %q: %w", tmpl.Name, err)
			}
			report.TemplatesUpdated++
		} else {
			created, err := im.templates.Create(ctx, templates.CreateTemplateRequest{
				Name:            tmpl.Name,
				Description:     tmpl.Description,
				CompatibleSlots: tmpl.CompatibleSlots,
				LocationType:    tmpl.LocationType,
				WeeklyLimit:     tmpl.WeeklyLimit,
			})
			if err != nil {
				return nil, fmt.Errorf("template %q: %w", tmpl.Name, err)
			}
			id = created.ID
			report.TemplatesCreated++
		}

		if err := im.importOptions(ctx, tmpl, id, tagIDs, optionIDs, report); err != nil {
			return nil, err
		}
	}
	return optionIDs, nil
}

func (im *Importer) importOptions(ctx context.Context, tmpl Template, templateID int64, tagIDs map[string]int64, optionIDs map[optionKey]int64, report *ImportReport) error {
	existing, err := im.options.ListByTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	byName := make(map[string]int64, len(existing))
	for _, o := range existing {
		byName[o.Name] = o.ID
	}

	for _, o := range tmpl.Options {
		ids := make([]int64, 0, len(o.Tags))
		for _, name := range o.Tags {
			ids = append(ids, tagIDs[name])
		}

		id, ok := byName[o.Name]
		if ok {
			if _, err := im.options.Update(ctx, id, options.UpdateOptionRequest{
				Description:      storage.PatchFromPtr(o.Description),
				NutritionalNotes: storage.PatchFromPtr(o.NutritionalNotes),
			}); err != nil {
				return fmt.Errorf("option %q: %w", o.Name, err)
			}
			if _, err := im.options.SetTags(ctx, id, ids); err != nil {
				return fmt.Errorf("option %q: %w", o.Name, err)
			}
			report.OptionsUpdated++
		} else {
			created, err := im.options.Create(ctx, options.CreateOptionRequest{
				TemplateID:       templateID,
				Name:             o.Name,
				Description:      o.Description,
				NutritionalNotes: o.NutritionalNotes,
				TagIDs:           ids,
			})
			if err != nil {
				return fmt.Errorf("option %q: %w", o.Name, err)
			}
			id = created.ID
			report.OptionsCreated++
		}
		optionIDs[optionKey{template: tmpl.Name, option: o.Name}] = id
	}
	return nil
}

func (im *Importer) importEntries(ctx context.Context, list []Entry, optionIDs map[optionKey]int64, report *ImportReport) error {
	for i, e := range list {
		optionID, err := resolveOption(e, optionIDs)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		location := e.Location
		if location == "" {
			location = storage.LocationAny
		}

		// An entry already planned for the same option, date and slot is
		// the one this catalog created last time.
		if _, err := week.ParseDate(e.Date); err == nil && e.Slot.Valid() {
			planned, err := im.entries.ListByDateAndSlot(ctx, e.Date, e.Slot)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			if containsOption(planned, optionID) {
				report.EntriesSkipped++
				continue
			}
		}

		res, err := im.entries.Create(ctx, entries.CreateEntryRequest{
			MealOptionID: optionID,
			Date:         e.Date,
			SlotType:     e.Slot,
			Location:     location,
			Servings:     e.Servings,
			Notes:        e.Notes,
			Completed:    e.Completed,
		})
		if rejected, ok := entries.AsRejected(err); ok {
			im.logger.Warn("Catalog entry rejected", "option", e.Option, "date", e.Date, "slot", e.Slot, "reason", rejected.Failure.Message())
			report.Rejected = append(report.Rejected, RejectedEntry{
				Option: e.Option,
				Date:   e.Date,
				Slot:   e.Slot,
				Reason: rejected.Failure.Message(),
			})
			continue
		}
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		report.EntriesCreated++
		report.Warnings = append(report.Warnings, res.Warnings...)
	}
	return nil
}

// resolveOption finds an option by name, scoped to a template when given.
func resolveOption(e Entry, optionIDs map[optionKey]int64) (int64, error) {
	if e.Template != "" {
		id, ok := optionIDs[optionKey{template: e.Template, option: e.Option}]
		if !ok {
			return 0, storage.Invalid("option", "no option %q in template %q", e.Option, e.Template)
		}
		return id, nil
	}

	var (
		found int64
		n     int
	)
	for k, id := range optionIDs {
		if k.option == e.Option {
			found = id
			n++
		}
	}
	switch n {
	case 0:
		return 0, storage.Invalid("option", "no option named %q in the catalog", e.Option)
	case 1:
		return found, nil
	default:
		return 0, storage.Invalid("option", "option %q exists in %d templates, set template", e.Option, n)
	}
}

func containsOption(list []entries.EntryDTO, optionID int64) bool {
	for _, e := range list {
		if e.MealOptionID == optionID {
			return true
		}
	}
	return false
}
