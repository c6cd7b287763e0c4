package storage

import (
	"context"
	"time"
)

// ============================================================================
// Templates
// ============================================================================

// MealTemplate — шаблон приёма пищи: совместимые слоты, локация и недельный лимит
type MealTemplate struct {
	ID              int64
	Name            string
	Description     *string
	CompatibleSlots []SlotType
	LocationType    LocationType
	WeeklyLimit     *int // hard cap per ISO week, nil = unlimited
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasSlot reports whether slot is among the template's compatible slots.
func (t MealTemplate) HasSlot(slot SlotType) bool {
	for _, s := range t.CompatibleSlots {
		if s == slot {
			return true
		}
	}
	return false
}

type MealTemplateCreate struct {
	Name            string
	Description     *string
	CompatibleSlots []SlotType
	LocationType    LocationType
	WeeklyLimit     *int
}

// MealTemplateUpdate: nil pointers and a nil slot list leave the field unchanged.
type MealTemplateUpdate struct {
	Name            *string
	Description     Patch[string]
	CompatibleSlots []SlotType
	LocationType    *LocationType
	WeeklyLimit     Patch[int]
}

// TemplatesStorage manages meal templates.
type TemplatesStorage interface {
	CreateMealTemplate(ctx context.Context, in MealTemplateCreate) (MealTemplate, error)
	// GetMealTemplate returns ErrNotFound when the template does not exist.
	GetMealTemplate(ctx context.Context, id int64) (MealTemplate, error)
	ListMealTemplates(ctx context.Context) ([]MealTemplate, error)
	ListMealTemplatesByLocation(ctx context.Context, location LocationType) ([]MealTemplate, error)
	ListMealTemplatesBySlot(ctx context.Context, slot SlotType) ([]MealTemplate, error)
	SearchMealTemplates(ctx context.Context, query string) ([]MealTemplate, error)
	UpdateMealTemplate(ctx context.Context, id int64, upd MealTemplateUpdate) (MealTemplate, error)
	DeleteMealTemplate(ctx context.Context, id int64) error
}

// ============================================================================
// Options
// ============================================================================

// MealOption — конкретный вариант блюда внутри шаблона
type MealOption struct {
	ID               int64
	TemplateID       int64
	Name             string
	Description      *string
	NutritionalNotes *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MealOptionWithTags is an option together with the ids of its tags, ascending.
type MealOptionWithTags struct {
	MealOption
	TagIDs []int64
}

type MealOptionCreate struct {
	TemplateID       int64
	Name             string
	Description      *string
	NutritionalNotes *string
}

type MealOptionUpdate struct {
	Name             *string
	Description      Patch[string]
	NutritionalNotes Patch[string]
}

// OptionsStorage manages meal options and their tag associations.
type OptionsStorage interface {
	CreateMealOption(ctx context.Context, in MealOptionCreate) (MealOption, error)
	GetMealOption(ctx context.Context, id int64) (MealOption, error)
	GetMealOptionWithTags(ctx context.Context, id int64) (MealOptionWithTags, error)
	ListMealOptions(ctx context.Context) ([]MealOption, error)
	ListMealOptionsByTemplate(ctx context.Context, templateID int64) ([]MealOption, error)
	SearchMealOptions(ctx context.Context, query string) ([]MealOption, error)
	UpdateMealOption(ctx context.Context, id int64, upd MealOptionUpdate) (MealOption, error)
	DeleteMealOption(ctx context.Context, id int64) error

	GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error)
	AddOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error
	RemoveOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error
	// SetOptionTags replaces the whole tag set of an option.
	SetOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error
}

// ============================================================================
// Tags
// ============================================================================

// Tag — тег с мягким недельным лимитом и необязательным родителем
type Tag struct {
	ID               int64
	Name             string // internal key: "pasta", "whole_wheat_pasta"
	DisplayName      string
	Category         TagCategory
	WeeklySuggestion *int
	ParentTagID      *int64
	CreatedAt        time.Time
}

type TagCreate struct {
	Name             string
	DisplayName      string
	Category         TagCategory
	WeeklySuggestion *int
	ParentTagID      *int64
}

// TagUpdate: the tag name is immutable once created.
type TagUpdate struct {
	DisplayName      *string
	Category         *TagCategory
	WeeklySuggestion Patch[int]
	ParentTagID      Patch[int64]
}

// TagsStorage manages tags.
type TagsStorage interface {
	CreateTag(ctx context.Context, in TagCreate) (Tag, error)
	GetTag(ctx context.Context, id int64) (Tag, error)
	GetTagByName(ctx context.Context, name string) (Tag, error)
	ListTags(ctx context.Context) ([]Tag, error)
	ListTagsByCategory(ctx context.Context, category TagCategory) ([]Tag, error)
	ListTagChildren(ctx context.Context, parentID int64) ([]Tag, error)
	UpdateTag(ctx context.Context, id int64, upd TagUpdate) (Tag, error)
	DeleteTag(ctx context.Context, id int64) error
}

// ============================================================================
// Entries
// ============================================================================

// MealEntry — запланированный или съеденный приём пищи
type MealEntry struct {
	ID           int64
	MealOptionID int64
	Date         time.Time // calendar date, midnight UTC
	SlotType     SlotType
	Location     LocationType
	Servings     float64
	Notes        *string
	Completed    bool // false = planned, true = consumed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MealEntryCreate struct {
	MealOptionID int64
	Date         time.Time
	SlotType     SlotType
	Location     LocationType
	Servings     float64
	Notes        *string
	Completed    bool
}

type MealEntryUpdate struct {
	MealOptionID *int64
	Date         *time.Time
	SlotType     *SlotType
	Location     *LocationType
	Servings     *float64
	Notes        Patch[string]
	Completed    *bool
}

// WeeklyUsage — число записей варианта за ISO-неделю (planned + completed)
type WeeklyUsage struct {
	MealOptionID int64
	Week         string
	UsageCount   int
}

// WeeklyTagUsage — число записей с тегом за ISO-неделю
type WeeklyTagUsage struct {
	TagID      int64
	TagName    string
	Week       string
	UsageCount int
}

// EntriesStorage manages meal entries and the weekly usage aggregates.
type EntriesStorage interface {
	CreateMealEntry(ctx context.Context, in MealEntryCreate) (MealEntry, error)
	GetMealEntry(ctx context.Context, id int64) (MealEntry, error)
	ListMealEntriesByDate(ctx context.Context, date time.Time) ([]MealEntry, error)
	// ListMealEntriesByDateRange is inclusive on both ends.
	ListMealEntriesByDateRange(ctx context.Context, start, end time.Time) ([]MealEntry, error)
	ListMealEntriesByDateAndSlot(ctx context.Context, date time.Time, slot SlotType) ([]MealEntry, error)
	ListMealEntriesByCompleted(ctx context.Context, completed bool) ([]MealEntry, error)
	ListMealEntriesByOption(ctx context.Context, optionID int64) ([]MealEntry, error)
	UpdateMealEntry(ctx context.Context, id int64, upd MealEntryUpdate) (MealEntry, error)
	DeleteMealEntry(ctx context.Context, id int64) error

	// GetWeeklyUsage returns a zero count when the option has no entries that week.
	GetWeeklyUsage(ctx context.Context, optionID int64, week string) (WeeklyUsage, error)
	// GetWeeklyTagUsage returns ErrNotFound for an unknown tag and a zero count for an idle one.
	GetWeeklyTagUsage(ctx context.Context, tagID int64, week string) (WeeklyTagUsage, error)
}

// EntryLock names the (option, ISO week) pair a write transaction serializes on.
type EntryLock struct {
	MealOptionID int64
	Week         string
}

// Store — полный интерфейс хранилища планировщика
type Store interface {
	TemplatesStorage
	OptionsStorage
	TagsStorage
	EntriesStorage

	// InTx runs fn against a Store bound to one write transaction. Concurrent
	// InTx calls for the same lock never interleave. An error returned by fn
	// rolls the transaction back where the backend supports it.
	InTx(ctx context.Context, lock EntryLock, fn func(ctx context.Context, tx Store) error) error

	// Close закрывает соединение
	Close() error
}
