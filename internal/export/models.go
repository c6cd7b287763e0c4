package export

import (
	"github.com/valerioformato/nutrition-helper/internal/storage"
)

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// WeekPlan is one ISO week laid out as a days × slots grid, with the usage
// figures the rules are checked against.
type WeekPlan struct {
	Week    string        `json:"week"`
	Start   string        `json:"start"`
	End     string        `json:"end"`
	Days    []DayPlan     `json:"days"`
	Options []OptionUsage `json:"options"`
	Tags    []TagUsage    `json:"tags"`
}

type DayPlan struct {
	Date    string     `json:"date"`
	Weekday string     `json:"weekday"`
	Slots   []SlotPlan `json:"slots"`
}

type SlotPlan struct {
	Slot    storage.SlotType `json:"slot"`
	Entries []PlannedEntry   `json:"entries"`
}

type PlannedEntry struct {
	EntryID      int64                `json:"entry_id"`
	OptionID     int64                `json:"option_id"`
	OptionName   string               `json:"option_name"`
	TemplateName string               `json:"template_name"`
	Location     storage.LocationType `json:"location"`
	Servings     float64              `json:"servings"`
	Completed    bool                 `json:"completed"`
	Notes        *string              `json:"notes,omitempty"`
}

type OptionUsage struct {
	OptionID    int64  `json:"option_id"`
	OptionName  string `json:"option_name"`
	UsageCount  int    `json:"usage_count"`
	WeeklyLimit *int   `json:"weekly_limit,omitempty"`
}

type TagUsage struct {
	TagID            int64  `json:"tag_id"`
	TagName          string `json:"tag_name"`
	UsageCount       int    `json:"usage_count"`
	WeeklySuggestion *int   `json:"weekly_suggestion,omitempty"`
}

// ExportResult describes a stored export document.
type ExportResult struct {
	Week      string `json:"week"`
	Key       string `json:"key"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url"`
	Entries   int    `json:"entries"`
}

// EntryCount is the number of entries across the whole grid.
func (p WeekPlan) EntryCount() int {
	n := 0
	for _, d := range p.Days {
		for _, s := range d.Slots {
			n += len(s.Entries)
		}
	}
	return n
}
