package storage

import (
	"fmt"
	"strings"
)

// SlotType — слот приёма пищи в течение дня
type SlotType string

const (
	SlotBreakfast      SlotType = "breakfast"
	SlotMorningSnack   SlotType = "morning_snack"
	SlotLunch          SlotType = "lunch"
	SlotAfternoonSnack SlotType = "afternoon_snack"
	SlotDinner         SlotType = "dinner"
)

var allSlots = []SlotType{SlotBreakfast, SlotMorningSnack, SlotLunch, SlotAfternoonSnack, SlotDinner}

// AllSlots returns every slot in day order.
func AllSlots() []SlotType {
	out := make([]SlotType, len(allSlots))
	copy(out, allSlots)
	return out
}

// Order is the zero-based position of the slot within a day, -1 for unknown values.
func (s SlotType) Order() int {
	for i, v := range allSlots {
		if v == s {
			return i
		}
	}
	return -1
}

func (s SlotType) Valid() bool {
	return s.Order() >= 0
}

func (s SlotType) String() string {
	return string(s)
}

// ParseSlotType parses the wire value of a slot.
func ParseSlotType(v string) (SlotType, error) {
	s := SlotType(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", &ValidationError{Field: "slot_type", Message: fmt.Sprintf("unknown slot %q (allowed: %s)", v, joinValues(allSlots))}
	}
	return s, nil
}

// LocationType — где можно приготовить или съесть блюдо
type LocationType string

const (
	LocationHome       LocationType = "home"
	LocationOffice     LocationType = "office"
	LocationRestaurant LocationType = "restaurant"
	LocationAny        LocationType = "any"
)

var allLocations = []LocationType{LocationHome, LocationOffice, LocationRestaurant, LocationAny}

func AllLocations() []LocationType {
	out := make([]LocationType, len(allLocations))
	copy(out, allLocations)
	return out
}

func (l LocationType) Valid() bool {
	for _, v := range allLocations {
		if v == l {
			return true
		}
	}
	return false
}

func (l LocationType) String() string {
	return string(l)
}

// IsCompatibleWith reports whether two locations can be used together.
// "any" is compatible with everything.
func (l LocationType) IsCompatibleWith(other LocationType) bool {
	if l == LocationAny || other == LocationAny {
		return true
	}
	return l == other
}

func ParseLocationType(v string) (LocationType, error) {
	l := LocationType(strings.ToLower(strings.TrimSpace(v)))
	if !l.Valid() {
		return "", &ValidationError{Field: "location_type", Message: fmt.Sprintf("unknown location %q (allowed: %s)", v, joinValues(allLocations))}
	}
	return l, nil
}

// TagCategory — категория тега
type TagCategory string

const (
	TagIngredient TagCategory = "ingredient"
	TagDietary    TagCategory = "dietary"
	TagPrepTime   TagCategory = "prep_time"
	TagOther      TagCategory = "other"
)

var allTagCategories = []TagCategory{TagIngredient, TagDietary, TagPrepTime, TagOther}

func AllTagCategories() []TagCategory {
	out := make([]TagCategory, len(allTagCategories))
	copy(out, allTagCategories)
	return out
}

func (c TagCategory) Valid() bool {
	for _, v := range allTagCategories {
		if v == c {
			return true
		}
	}
	return false
}

func (c TagCategory) String() string {
	return string(c)
}

func ParseTagCategory(v string) (TagCategory, error) {
	c := TagCategory(strings.ToLower(strings.TrimSpace(v)))
	if !c.Valid() {
		return "", &ValidationError{Field: "category", Message: fmt.Sprintf("unknown tag category %q (allowed: %s)", v, joinValues(allTagCategories))}
	}
	return c, nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
