package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

// Reader is the part of the store a plan is built from.
type Reader interface {
	ListMealEntriesByDateRange(ctx context.Context, start, end time.Time) ([]storage.MealEntry, error)
	GetMealOption(ctx context.Context, id int64) (storage.MealOption, error)
	GetMealTemplate(ctx context.Context, id int64) (storage.MealTemplate, error)
	GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error)
	GetTag(ctx context.Context, id int64) (storage.Tag, error)
	GetWeeklyUsage(ctx context.Context, optionID int64, week string) (storage.WeeklyUsage, error)
	GetWeeklyTagUsage(ctx context.Context, tagID int64, week string) (storage.WeeklyTagUsage, error)
}

// BuildWeekPlan reads the entries of the ISO week named by key.
func BuildWeekPlan(ctx context.Context, r Reader, key string) (*WeekPlan, error) {
	monday, err := week.ParseKey(key)
	if err != nil {
		return nil, storage.Invalid("week", "%v", err)
	}
	start, end := week.Range(monday)

	entries, err := r.ListMealEntriesByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	plan := &WeekPlan{
		Week:    key,
		Start:   week.FormatDate(start),
		End:     week.FormatDate(end),
		Options: []OptionUsage{},
		Tags:    []TagUsage{},
	}
	dayIndex := make(map[string]int, 7)
	for i, d := range week.Days(monday) {
		day := DayPlan{Date: week.FormatDate(d), Weekday: d.Weekday().String()}
		for _, slot := range storage.AllSlots() {
			day.Slots = append(day.Slots, SlotPlan{Slot: slot, Entries: []PlannedEntry{}})
		}
		plan.Days = append(plan.Days, day)
		dayIndex[day.Date] = i
	}

	options := map[int64]storage.MealOption{}
	templates := map[int64]storage.MealTemplate{}
	for _, e := range entries {
		opt, ok := options[e.MealOptionID]
		if !ok {
			if opt, err = r.GetMealOption(ctx, e.MealOptionID); err != nil {
				return nil, err
			}
			options[opt.ID] = opt
		}
		tmpl, ok := templates[opt.TemplateID]
		if !ok {
			if tmpl, err = r.GetMealTemplate(ctx, opt.TemplateID); err != nil {
				return nil, err
			}
			templates[tmpl.ID] = tmpl
		}

		di, ok := dayIndex[week.FormatDate(e.Date)]
		si := e.SlotType.Order()
		if !ok || si < 0 {
			continue
		}
		s := &plan.Days[di].Slots[si]
		s.Entries = append(s.Entries, PlannedEntry{
			EntryID:      e.ID,
			OptionID:     opt.ID,
			OptionName:   opt.Name,
			TemplateName: tmpl.Name,
			Location:     e.Location,
			Servings:     e.Servings,
			Completed:    e.Completed,
			Notes:        e.Notes,
		})
	}

	tagIDs := map[int64]bool{}
	for _, opt := range options {
		usage, err := r.GetWeeklyUsage(ctx, opt.ID, key)
		if err != nil {
			return nil, err
		}
		plan.Options = append(plan.Options, OptionUsage{
			OptionID:    opt.ID,
			OptionName:  opt.Name,
			UsageCount:  usage.UsageCount,
			WeeklyLimit: templates[opt.TemplateID].WeeklyLimit,
		})

		ids, err := r.GetOptionTagIDs(ctx, opt.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			tagIDs[id] = true
		}
	}
	sort.Slice(plan.Options, func(i, j int) bool { return plan.Options[i].OptionName < plan.Options[j].OptionName })

	for id := range tagIDs {
		tag, err := r.GetTag(ctx, id)
		if err != nil {
			return nil, err
		}
		usage, err := r.GetWeeklyTagUsage(ctx, id, key)
		if err != nil {
			return nil, err
		}
		plan.Tags = append(plan.Tags, TagUsage{
			TagID:            id,
			TagName:          tag.DisplayName,
			UsageCount:       usage.UsageCount,
			WeeklySuggestion: tag.WeeklySuggestion,
		})
	}
	sort.Slice(plan.Tags, func(i, j int) bool { return plan.Tags[i].TagName < plan.Tags[j].TagName })

	return plan, nil
}
