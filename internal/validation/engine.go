// Package validation gates meal entry writes.
//
// Checks run in a fixed order and short-circuit: slot compatibility (hard),
// the template's weekly limit applied per option (hard), and tag weekly
// suggestions (soft). Usage counts include planned and completed entries of
// the target ISO week. The engine holds no state; every answer comes from
// fresh reads of the Repository.
package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

// Repository is the read side of the store the engine consults.
type Repository interface {
	GetMealOption(ctx context.Context, id int64) (storage.MealOption, error)
	GetMealTemplate(ctx context.Context, id int64) (storage.MealTemplate, error)
	GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error)
	GetTag(ctx context.Context, id int64) (storage.Tag, error)
	GetWeeklyUsage(ctx context.Context, optionID int64, week string) (storage.WeeklyUsage, error)
	GetWeeklyTagUsage(ctx context.Context, tagID int64, week string) (storage.WeeklyTagUsage, error)
}

type Engine struct {
	repo Repository
}

func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// discount removes entries that are being replaced from the usage counts.
type discount struct {
	option int
	tags   map[int64]int
}

// ValidateMealEntry decides whether a new entry for optionID may be placed at
// slot on date. A missing option or template is returned as
// *MissingReferenceError, storage failures as wrapped errors; rule outcomes
// are in the Result.
func (e *Engine) ValidateMealEntry(ctx context.Context, optionID int64, slot storage.SlotType, date time.Time) (Result, error) {
	return e.validate(ctx, optionID, slot, date, discount{})
}

// ValidateMove validates moving existing to (optionID, slot, date). Within the
// same ISO week the entry does not count against its own option or tags.
func (e *Engine) ValidateMove(ctx context.Context, existing storage.MealEntry, optionID int64, slot storage.SlotType, date time.Time) (Result, error) {
	d := discount{}
	if week.Key(existing.Date) == week.Key(date) {
		if existing.MealOptionID == optionID {
			d.option = 1
		}
		oldTags, err := e.repo.GetOptionTagIDs(ctx, existing.MealOptionID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Result{}, fmt.Errorf("failed to get tags of meal option %d: %w", existing.MealOptionID, err)
		}
		if len(oldTags) > 0 {
			d.tags = make(map[int64]int, len(oldTags))
			for _, id := range oldTags {
				d.tags[id] = 1
			}
		}
	}
	return e.validate(ctx, optionID, slot, date, d)
}

// CheckWeeklyLimit runs the weekly limit rule alone. It returns nil when the
// entry fits or the template has no limit.
func (e *Engine) CheckWeeklyLimit(ctx context.Context, optionID int64, date time.Time) (*Failure, error) {
	option, tmpl, err := e.resolve(ctx, optionID)
	if err != nil {
		return nil, err
	}
	return e.checkWeeklyLimit(ctx, option, tmpl, week.Key(date), 0)
}

// CheckTagSuggestions returns one warning per tag of the option whose weekly
// suggestion has been reached, ordered by tag id.
func (e *Engine) CheckTagSuggestions(ctx context.Context, optionID int64, date time.Time) ([]Warning, error) {
	if _, err := e.getOption(ctx, optionID); err != nil {
		return nil, err
	}
	return e.checkTagSuggestions(ctx, optionID, week.Key(date), nil)
}

func (e *Engine) validate(ctx context.Context, optionID int64, slot storage.SlotType, date time.Time, d discount) (Result, error) {
	option, tmpl, err := e.resolve(ctx, optionID)
	if err != nil {
		return Result{}, err
	}

	if f := checkSlot(option, tmpl, slot); f != nil {
		return Result{Failure: f}, nil
	}

	key := week.Key(date)
	f, err := e.checkWeeklyLimit(ctx, option, tmpl, key, d.option)
	if err != nil {
		return Result{}, err
	}
	if f != nil {
		return Result{Failure: f}, nil
	}

	warnings, err := e.checkTagSuggestions(ctx, option.ID, key, d.tags)
	if err != nil {
		return Result{}, err
	}
	return Result{Warnings: warnings}, nil
}

func (e *Engine) getOption(ctx context.Context, optionID int64) (storage.MealOption, error) {
	option, err := e.repo.GetMealOption(ctx, optionID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.MealOption{}, &MissingReferenceError{Entity: "meal_option", ID: optionID, Err: err}
	}
	if err != nil {
		return storage.MealOption{}, fmt.Errorf("failed to get meal option %d: %w", optionID, err)
	}
	return option, nil
}

func (e *Engine) resolve(ctx context.Context, optionID int64) (storage.MealOption, storage.MealTemplate, error) {
	option, err := e.getOption(ctx, optionID)
	if err != nil {
		return storage.MealOption{}, storage.MealTemplate{}, err
	}

	tmpl, err := e.repo.GetMealTemplate(ctx, option.TemplateID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.MealOption{}, storage.MealTemplate{}, &MissingReferenceError{Entity: "meal_template", ID: option.TemplateID, Err: err}
	}
	if err != nil {
		return storage.MealOption{}, storage.MealTemplate{}, fmt.Errorf("failed to get meal template %d: %w", option.TemplateID, err)
	}
	return option, tmpl, nil
}

func checkSlot(option storage.MealOption, tmpl storage.MealTemplate, slot storage.SlotType) *Failure {
	if tmpl.HasSlot(slot) {
		return nil
	}
	compatible := make([]storage.SlotType, len(tmpl.CompatibleSlots))
	copy(compatible, tmpl.CompatibleSlots)
	return &Failure{
		Kind:            FailureIncompatibleSlot,
		OptionName:      option.Name,
		Slot:            slot,
		CompatibleSlots: compatible,
	}
}

// checkWeeklyLimit blocks the (limit+1)-th entry: exactly limit entries may
// coexist in one week.
func (e *Engine) checkWeeklyLimit(ctx context.Context, option storage.MealOption, tmpl storage.MealTemplate, key string, less int) (*Failure, error) {
	if tmpl.WeeklyLimit == nil {
		return nil, nil
	}
	limit := *tmpl.WeeklyLimit

	usage, err := e.repo.GetWeeklyUsage(ctx, option.ID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly usage of meal option %d for %s: %w", option.ID, key, err)
	}

	current := max(usage.UsageCount-less, 0)
	if current >= limit {
		return &Failure{
			Kind:         FailureWeeklyLimitExceeded,
			ItemName:     option.Name,
			Limit:        limit,
			CurrentUsage: current,
		}, nil
	}
	return nil, nil
}

func (e *Engine) checkTagSuggestions(ctx context.Context, optionID int64, key string, less map[int64]int) ([]Warning, error) {
	tagIDs, err := e.repo.GetOptionTagIDs(ctx, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags of meal option %d: %w", optionID, err)
	}
	ids := append([]int64(nil), tagIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	warnings := []Warning{}
	for _, tagID := range ids {
		tag, err := e.repo.GetTag(ctx, tagID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &MissingReferenceError{Entity: "tag", ID: tagID, Err: err}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get tag %d: %w", tagID, err)
		}
		if tag.WeeklySuggestion == nil {
			continue
		}
		suggestion := *tag.WeeklySuggestion

		usage, err := e.repo.GetWeeklyTagUsage(ctx, tagID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get weekly usage of tag %d for %s: %w", tagID, key, err)
		}

		current := max(usage.UsageCount-less[tagID], 0)
		if current >= suggestion {
			warnings = append(warnings, tagSuggestionWarning(tag, suggestion, current))
		}
	}
	return warnings, nil
}
