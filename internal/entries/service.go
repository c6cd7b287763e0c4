package entries

import (
	"context"
	"fmt"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/validation"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

// Service handles meal entries. Writes that can change weekly usage run inside
// Store.InTx keyed on (option, week), so a check and the insert it guards are
// never interleaved with another write for the same option and week.
type Service struct {
	store storage.Store
}

// NewService creates a new entries service.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Create validates and stores a new entry. A rule failure is returned as
// *RejectedError and nothing is written; warnings ride along with the entry.
func (s *Service) Create(ctx context.Context, req CreateEntryRequest) (*WriteResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	date, _ := week.ParseDate(req.Date)

	servings := DefaultServings
	if req.Servings != nil {
		servings = *req.Servings
	}
	in := storage.MealEntryCreate{
		MealOptionID: req.MealOptionID,
		Date:         date,
		SlotType:     req.SlotType,
		Location:     req.Location,
		Servings:     servings,
		Notes:        req.Notes,
		Completed:    req.Completed,
	}

	lock := storage.EntryLock{MealOptionID: req.MealOptionID, Week: week.Key(date)}
	var out *WriteResult
	err := s.store.InTx(ctx, lock, func(ctx context.Context, tx storage.Store) error {
		warnings := []validation.Warning{}
		if !req.SkipValidation {
			res, err := validation.NewEngine(tx).ValidateMealEntry(ctx, req.MealOptionID, req.SlotType, date)
			if err != nil {
				return err
			}
			if !res.OK() {
				return &RejectedError{Failure: res.Failure}
			}
			warnings = append(warnings, res.Warnings...)

			w, err := locationWarning(ctx, tx, req.MealOptionID, req.Location)
			if err != nil {
				return err
			}
			if w != nil {
				warnings = append(warnings, *w)
			}
		}

		e, err := tx.CreateMealEntry(ctx, in)
		if err != nil {
			return err
		}
		out = &WriteResult{Entry: toDTO(e), Warnings: warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*EntryDTO, error) {
	e, err := s.store.GetMealEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(e)
	return &dto, nil
}

// Update applies a patch. Changing the option, date or slot revalidates the
// entry at its new place; the entry never counts against itself.
func (s *Service) Update(ctx context.Context, id int64, req UpdateEntryRequest) (*WriteResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetMealEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	upd := storage.MealEntryUpdate{
		MealOptionID: req.MealOptionID,
		SlotType:     req.SlotType,
		Location:     req.Location,
		Servings:     req.Servings,
		Notes:        req.Notes,
		Completed:    req.Completed,
	}
	target := existing
	if req.MealOptionID != nil {
		target.MealOptionID = *req.MealOptionID
	}
	if req.Date != nil {
		d, _ := week.ParseDate(*req.Date)
		upd.Date = &d
		target.Date = d
	}
	if req.SlotType != nil {
		target.SlotType = *req.SlotType
	}
	if req.Location != nil {
		target.Location = *req.Location
	}

	lock := storage.EntryLock{MealOptionID: target.MealOptionID, Week: week.Key(target.Date)}
	var out *WriteResult
	err = s.store.InTx(ctx, lock, func(ctx context.Context, tx storage.Store) error {
		// Re-read under the lock; the entry may have moved since.
		cur, err := tx.GetMealEntry(ctx, id)
		if err != nil {
			return err
		}

		warnings := []validation.Warning{}
		if !req.SkipValidation {
			moved := target.MealOptionID != cur.MealOptionID ||
				!target.Date.Equal(cur.Date) ||
				target.SlotType != cur.SlotType
			if moved {
				res, err := validation.NewEngine(tx).ValidateMove(ctx, cur, target.MealOptionID, target.SlotType, target.Date)
				if err != nil {
					return err
				}
				if !res.OK() {
					return &RejectedError{Failure: res.Failure}
				}
				warnings = append(warnings, res.Warnings...)
			}
			if moved || target.Location != cur.Location {
				w, err := locationWarning(ctx, tx, target.MealOptionID, target.Location)
				if err != nil {
					return err
				}
				if w != nil {
					warnings = append(warnings, *w)
				}
			}
		}

		e, err := tx.UpdateMealEntry(ctx, id, upd)
		if err != nil {
			return err
		}
		out = &WriteResult{Entry: toDTO(e), Warnings: warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetCompleted marks an entry consumed or back to planned. Usage counts both,
// so no rule is rechecked.
func (s *Service) SetCompleted(ctx context.Context, id int64, completed bool) (*EntryDTO, error) {
	e, err := s.store.UpdateMealEntry(ctx, id, storage.MealEntryUpdate{Completed: &completed})
	if err != nil {
		return nil, err
	}
	dto := toDTO(e)
	return &dto, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteMealEntry(ctx, id)
}

func (s *Service) ListByDate(ctx context.Context, date string) ([]EntryDTO, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	return toDTOs(s.store.ListMealEntriesByDate(ctx, d))
}

// ListByDateRange is inclusive on both ends.
func (s *Service) ListByDateRange(ctx context.Context, start, end string) ([]EntryDTO, error) {
	from, err := parseDate("start", start)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("end", end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, storage.Invalid("start", "%s is after end %s", start, end)
	}
	return toDTOs(s.store.ListMealEntriesByDateRange(ctx, from, to))
}

func (s *Service) ListByDateAndSlot(ctx context.Context, date string, slot storage.SlotType) ([]EntryDTO, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	if !slot.Valid() {
		return nil, storage.Invalid("slot_type", "unknown slot %q", slot)
	}
	return toDTOs(s.store.ListMealEntriesByDateAndSlot(ctx, d, slot))
}

func (s *Service) ListByCompleted(ctx context.Context, completed bool) ([]EntryDTO, error) {
	return toDTOs(s.store.ListMealEntriesByCompleted(ctx, completed))
}

func (s *Service) ListByOption(ctx context.Context, optionID int64) ([]EntryDTO, error) {
	return toDTOs(s.store.ListMealEntriesByOption(ctx, optionID))
}

// WeeklyUsage returns the option's usage in the week named by key, with the
// limit inherited from its template.
func (s *Service) WeeklyUsage(ctx context.Context, optionID int64, key string) (*UsageDTO, error) {
	if err := parseWeekKey(key); err != nil {
		return nil, err
	}
	opt, err := s.store.GetMealOption(ctx, optionID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.store.GetMealTemplate(ctx, opt.TemplateID)
	if err != nil {
		return nil, err
	}
	usage, err := s.store.GetWeeklyUsage(ctx, optionID, key)
	if err != nil {
		return nil, err
	}
	return &UsageDTO{
		MealOptionID: optionID,
		OptionName:   opt.Name,
		Week:         key,
		UsageCount:   usage.UsageCount,
		WeeklyLimit:  tmpl.WeeklyLimit,
	}, nil
}

func (s *Service) WeeklyTagUsage(ctx context.Context, tagID int64, key string) (*TagUsageDTO, error) {
	if err := parseWeekKey(key); err != nil {
		return nil, err
	}
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	usage, err := s.store.GetWeeklyTagUsage(ctx, tagID, key)
	if err != nil {
		return nil, err
	}
	return &TagUsageDTO{
		TagID:            tagID,
		TagName:          usage.TagName,
		Week:             key,
		UsageCount:       usage.UsageCount,
		WeeklySuggestion: tag.WeeklySuggestion,
	}, nil
}

// Validate runs the rules for a hypothetical entry without writing anything.
func (s *Service) Validate(ctx context.Context, optionID int64, slot storage.SlotType, date string) (validation.Result, error) {
	if !slot.Valid() {
		return validation.Result{}, storage.Invalid("slot_type", "unknown slot %q", slot)
	}
	d, err := parseDate("date", date)
	if err != nil {
		return validation.Result{}, err
	}
	return validation.NewEngine(s.store).ValidateMealEntry(ctx, optionID, slot, d)
}

// locationWarning is raised when an entry is logged somewhere its template is
// not meant for.
func locationWarning(ctx context.Context, repo storage.Store, optionID int64, location storage.LocationType) (*validation.Warning, error) {
	opt, err := repo.GetMealOption(ctx, optionID)
	if err != nil {
		return nil, err
	}
	tmpl, err := repo.GetMealTemplate(ctx, opt.TemplateID)
	if err != nil {
		return nil, err
	}
	if location.IsCompatibleWith(tmpl.LocationType) {
		return nil, nil
	}
	return &validation.Warning{
		Kind:    validation.WarningLocation,
		Message: fmt.Sprintf("'%s' is meant for %s but is planned at %s", opt.Name, tmpl.LocationType, location),
	}, nil
}
