package templates

import (
	"strings"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

type TemplateDTO struct {
	ID              int64                `json:"id"`
	Name            string               `json:"name"`
	Description     *string              `json:"description,omitempty"`
	CompatibleSlots []storage.SlotType   `json:"compatible_slots"`
	LocationType    storage.LocationType `json:"location_type"`
	WeeklyLimit     *int                 `json:"weekly_limit,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type CreateTemplateRequest struct {
	Name            string               `json:"name"`
	Description     *string              `json:"description,omitempty"`
	CompatibleSlots []storage.SlotType   `json:"compatible_slots"`
	LocationType    storage.LocationType `json:"location_type"`
	WeeklyLimit     *int                 `json:"weekly_limit,omitempty"`
}

func (r *CreateTemplateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return storage.Invalid("name", "must not be empty")
	}
	if err := validateSlots(r.CompatibleSlots); err != nil {
		return err
	}
	if !r.LocationType.Valid() {
		return storage.Invalid("location_type", "unknown location %q", r.LocationType)
	}
	return validateLimit(r.WeeklyLimit)
}

// UpdateTemplateRequest: absent fields are left untouched; Description and
// WeeklyLimit can also be cleared.
type UpdateTemplateRequest struct {
	Name            *string               `json:"name,omitempty"`
	Description     storage.Patch[string] `json:"description"`
	CompatibleSlots []storage.SlotType    `json:"compatible_slots,omitempty"`
	LocationType    *storage.LocationType `json:"location_type,omitempty"`
	WeeklyLimit     storage.Patch[int]    `json:"weekly_limit"`
}

func (r *UpdateTemplateRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return storage.Invalid("name", "must not be empty")
	}
	if r.CompatibleSlots != nil {
		if err := validateSlots(r.CompatibleSlots); err != nil {
			return err
		}
	}
	if r.LocationType != nil && !r.LocationType.Valid() {
		return storage.Invalid("location_type", "unknown location %q", *r.LocationType)
	}
	if v, ok := r.WeeklyLimit.Value(); ok {
		return validateLimit(&v)
	}
	return nil
}

func validateSlots(slots []storage.SlotType) error {
	if len(slots) == 0 {
		return storage.Invalid("compatible_slots", "at least one slot is required")
	}
	for _, s := range slots {
		if !s.Valid() {
			return storage.Invalid("compatible_slots", "unknown slot %q", s)
		}
	}
	return nil
}

func validateLimit(limit *int) error {
	if limit != nil && *limit <= 0 {
		return storage.Invalid("weekly_limit", "must be positive, got %d", *limit)
	}
	return nil
}
