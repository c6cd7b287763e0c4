package entries

import (
	"math"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/validation"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

// DefaultServings is used when a request leaves servings unset.
const DefaultServings = 1.0

type EntryDTO struct {
	ID           int64                `json:"id"`
	MealOptionID int64                `json:"meal_option_id"`
	Date         string               `json:"date"`
	Week         string               `json:"week"`
	SlotType     storage.SlotType     `json:"slot_type"`
	Location     storage.LocationType `json:"location"`
	Servings     float64              `json:"servings"`
	Notes        *string              `json:"notes,omitempty"`
	Completed    bool                 `json:"completed"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// WriteResult is the stored entry plus the advisories raised while writing it.
type WriteResult struct {
	Entry    EntryDTO             `json:"entry"`
	Warnings []validation.Warning `json:"warnings"`
}

type CreateEntryRequest struct {
	MealOptionID int64                `json:"meal_option_id"`
	Date         string               `json:"date"` // YYYY-MM-DD
	SlotType     storage.SlotType     `json:"slot_type"`
	Location     storage.LocationType `json:"location"`
	Servings     *float64             `json:"servings,omitempty"`
	Notes        *string              `json:"notes,omitempty"`
	Completed    bool                 `json:"completed"`

	// SkipValidation bypasses the business rules. Foreign keys still apply.
	SkipValidation bool `json:"-"`
}

func (r *CreateEntryRequest) Validate() error {
	if r.MealOptionID <= 0 {
		return storage.Invalid("meal_option_id", "must be positive")
	}
	if _, err := parseDate("date", r.Date); err != nil {
		return err
	}
	if !r.SlotType.Valid() {
		return storage.Invalid("slot_type", "unknown slot %q", r.SlotType)
	}
	if !r.Location.Valid() {
		return storage.Invalid("location", "unknown location %q", r.Location)
	}
	return validateServings(r.Servings)
}

type UpdateEntryRequest struct {
	MealOptionID *int64                `json:"meal_option_id,omitempty"`
	Date         *string               `json:"date,omitempty"`
	SlotType     *storage.SlotType     `json:"slot_type,omitempty"`
	Location     *storage.LocationType `json:"location,omitempty"`
	Servings     *float64              `json:"servings,omitempty"`
	Notes        storage.Patch[string] `json:"notes"`
	Completed    *bool                 `json:"completed,omitempty"`

	SkipValidation bool `json:"-"`
}

func (r *UpdateEntryRequest) Validate() error {
	if r.MealOptionID != nil && *r.MealOptionID <= 0 {
		return storage.Invalid("meal_option_id", "must be positive")
	}
	if r.Date != nil {
		if _, err := parseDate("date", *r.Date); err != nil {
			return err
		}
	}
	if r.SlotType != nil && !r.SlotType.Valid() {
		return storage.Invalid("slot_type", "unknown slot %q", *r.SlotType)
	}
	if r.Location != nil && !r.Location.Valid() {
		return storage.Invalid("location", "unknown location %q", *r.Location)
	}
	return validateServings(r.Servings)
}

// UsageDTO reports how often an option was used in a week against its limit.
type UsageDTO struct {
	MealOptionID int64  `json:"meal_option_id"`
	OptionName   string `json:"option_name"`
	Week         string `json:"week"`
	UsageCount   int    `json:"usage_count"`
	WeeklyLimit  *int   `json:"weekly_limit,omitempty"`
}

type TagUsageDTO struct {
	TagID            int64  `json:"tag_id"`
	TagName          string `json:"tag_name"`
	Week             string `json:"week"`
	UsageCount       int    `json:"usage_count"`
	WeeklySuggestion *int   `json:"weekly_suggestion,omitempty"`
}

func validateServings(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return storage.Invalid("servings", "must be a positive number, got %v", *v)
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	d, err := week.ParseDate(s)
	if err != nil {
		return time.Time{}, storage.Invalid(field, "%v", err)
	}
	return d, nil
}

func parseWeekKey(key string) error {
	if _, err := week.ParseKey(key); err != nil {
		return storage.Invalid("week", "%v", err)
	}
	return nil
}

func toDTO(e storage.MealEntry) EntryDTO {
	return EntryDTO{
		ID:           e.ID,
		MealOptionID: e.MealOptionID,
		Date:         week.FormatDate(e.Date),
		Week:         week.Key(e.Date),
		SlotType:     e.SlotType,
		Location:     e.Location,
		Servings:     e.Servings,
		Notes:        e.Notes,
		Completed:    e.Completed,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toDTOs(list []storage.MealEntry, err error) ([]EntryDTO, error) {
	if err != nil {
		return nil, err
	}
	out := make([]EntryDTO, len(list))
	for i, e := range list {
		out[i] = toDTO(e)
	}
	return out, nil
}
