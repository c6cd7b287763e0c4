package validation

import (
	"fmt"
	"strings"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// FailureKind names a hard rule that blocks an entry.
type FailureKind string

const (
	FailureIncompatibleSlot    FailureKind = "incompatible_slot"
	FailureWeeklyLimitExceeded FailureKind = "weekly_limit_exceeded"
)

// Failure is a blocking business outcome. It carries enough detail to render
// a user message without another query.
type Failure struct {
	Kind FailureKind `json:"type"`

	// incompatible_slot
	OptionName      string             `json:"option_name,omitempty"`
	Slot            storage.SlotType   `json:"slot,omitempty"`
	CompatibleSlots []storage.SlotType `json:"compatible_slots,omitempty"`

	// weekly_limit_exceeded
	ItemName     string `json:"item_name,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	CurrentUsage int    `json:"current_usage,omitempty"`
}

func (f *Failure) Message() string {
	switch f.Kind {
	case FailureIncompatibleSlot:
		slots := make([]string, len(f.CompatibleSlots))
		for i, s := range f.CompatibleSlots {
			slots[i] = string(s)
		}
		return fmt.Sprintf("'%s' is not compatible with %s. Compatible slots: [%s]", f.OptionName, f.Slot, strings.Join(slots, ", "))
	case FailureWeeklyLimitExceeded:
		return fmt.Sprintf("Weekly limit exceeded for '%s': %d/%d uses this week", f.ItemName, f.CurrentUsage, f.Limit)
	default:
		return string(f.Kind)
	}
}

// Error lets a caller that refuses the write return the failure as an error.
func (f *Failure) Error() string {
	return f.Message()
}

// WarningKind names a soft, non-blocking advisory.
type WarningKind string

const (
	WarningTagSuggestion WarningKind = "tag_suggestion"
	WarningLocation      WarningKind = "location_mismatch"
)

type Warning struct {
	Kind         WarningKind `json:"type"`
	TagID        int64       `json:"tag_id,omitempty"`
	TagName      string      `json:"tag_name,omitempty"`
	Suggestion   int         `json:"suggestion"`
	CurrentUsage int         `json:"current_usage"`
	Message      string      `json:"message"`
}

func tagSuggestionWarning(tag storage.Tag, suggestion, current int) Warning {
	return Warning{
		Kind:         WarningTagSuggestion,
		TagID:        tag.ID,
		TagName:      tag.DisplayName,
		Suggestion:   suggestion,
		CurrentUsage: current,
		Message:      fmt.Sprintf("Tag '%s' suggestion exceeded: %d/%d uses this week", tag.DisplayName, current, suggestion),
	}
}

// Result of a validation: either a Failure, or success with zero or more warnings.
type Result struct {
	Failure  *Failure  `json:"failure,omitempty"`
	Warnings []Warning `json:"warnings"`
}

func (r Result) OK() bool {
	return r.Failure == nil
}

// MissingReferenceError reports that the option or template named by a
// validation request does not exist. It unwraps to storage.ErrNotFound.
type MissingReferenceError struct {
	Entity string // "meal_option" | "meal_template" | "tag"
	ID     int64
	Err    error
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("Not found: %s %d", e.Entity, e.ID)
}

func (e *MissingReferenceError) Unwrap() error {
	if e.Err == nil {
		return storage.ErrNotFound
	}
	return e.Err
}
