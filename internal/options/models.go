package options

import (
	"strings"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

type OptionDTO struct {
	ID               int64     `json:"id"`
	TemplateID       int64     `json:"template_id"`
	Name             string    `json:"name"`
	Description      *string   `json:"description,omitempty"`
	NutritionalNotes *string   `json:"nutritional_notes,omitempty"`
	TagIDs           []int64   `json:"tag_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type CreateOptionRequest struct {
	TemplateID       int64   `json:"template_id"`
	Name             string  `json:"name"`
	Description      *string `json:"description,omitempty"`
	NutritionalNotes *string `json:"nutritional_notes,omitempty"`
	TagIDs           []int64 `json:"tag_ids,omitempty"`
}

func (r *CreateOptionRequest) Validate() error {
	if r.TemplateID <= 0 {
		return storage.Invalid("template_id", "must be positive")
	}
	if strings.TrimSpace(r.Name) == "" {
		return storage.Invalid("name", "must not be empty")
	}
	return validateTagIDs(r.TagIDs)
}

type UpdateOptionRequest struct {
	Name             *string               `json:"name,omitempty"`
	Description      storage.Patch[string] `json:"description"`
	NutritionalNotes storage.Patch[string] `json:"nutritional_notes"`
}

func (r *UpdateOptionRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return storage.Invalid("name", "must not be empty")
	}
	return nil
}

func validateTagIDs(ids []int64) error {
	for _, id := range ids {
		if id <= 0 {
			return storage.Invalid("tag_ids", "invalid tag id %d", id)
		}
	}
	return nil
}

// dedupeIDs keeps the first occurrence of every id.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
