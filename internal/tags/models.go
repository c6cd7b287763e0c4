package tags

import (
	"regexp"
	"strings"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// namePattern: lowercase letters and underscores, e.g. "whole_wheat_pasta".
var namePattern = regexp.MustCompile(`^[a-z_]+$`)

type TagDTO struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	DisplayName      string              `json:"display_name"`
	Category         storage.TagCategory `json:"category"`
	WeeklySuggestion *int                `json:"weekly_suggestion,omitempty"`
	ParentTagID      *int64              `json:"parent_tag_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

type CreateTagRequest struct {
	Name             string              `json:"name"`
	DisplayName      string              `json:"display_name"`
	Category         storage.TagCategory `json:"category"`
	WeeklySuggestion *int                `json:"weekly_suggestion,omitempty"`
	ParentTagID      *int64              `json:"parent_tag_id,omitempty"`
}

func (r *CreateTagRequest) Validate() error {
	if !namePattern.MatchString(r.Name) {
		return storage.Invalid("name", "%q must match %s", r.Name, namePattern)
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		return storage.Invalid("display_name", "must not be empty")
	}
	if !r.Category.Valid() {
		return storage.Invalid("category", "unknown tag category %q", r.Category)
	}
	if err := validateSuggestion(r.WeeklySuggestion); err != nil {
		return err
	}
	if r.ParentTagID != nil && *r.ParentTagID <= 0 {
		return storage.Invalid("parent_tag_id", "must be positive")
	}
	return nil
}

// UpdateTagRequest has no name field: tag names are immutable.
type UpdateTagRequest struct {
	DisplayName      *string              `json:"display_name,omitempty"`
	Category         *storage.TagCategory `json:"category,omitempty"`
	WeeklySuggestion storage.Patch[int]   `json:"weekly_suggestion"`
	ParentTagID      storage.Patch[int64] `json:"parent_tag_id"`
}

func (r *UpdateTagRequest) Validate() error {
	if r.DisplayName != nil && strings.TrimSpace(*r.DisplayName) == "" {
		return storage.Invalid("display_name", "must not be empty")
	}
	if r.Category != nil && !r.Category.Valid() {
		return storage.Invalid("category", "unknown tag category %q", *r.Category)
	}
	if v, ok := r.WeeklySuggestion.Value(); ok {
		if err := validateSuggestion(&v); err != nil {
			return err
		}
	}
	if v, ok := r.ParentTagID.Value(); ok && v <= 0 {
		return storage.Invalid("parent_tag_id", "must be positive")
	}
	return nil
}

// A suggestion of 0 is allowed and warns on every use.
func validateSuggestion(v *int) error {
	if v != nil && *v < 0 {
		return storage.Invalid("weekly_suggestion", "must not be negative, got %d", *v)
	}
	return nil
}
