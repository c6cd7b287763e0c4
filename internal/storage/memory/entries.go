package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

func (m *MemoryStorage) CreateMealEntry(ctx context.Context, in storage.MealEntryCreate) (storage.MealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.options[in.MealOptionID]; !ok {
		return storage.MealEntry{}, storage.ForeignKey("create meal entry", fmt.Errorf("meal option %d does not exist", in.MealOptionID))
	}

	now := m.now()
	e := &storage.MealEntry{
		ID:           m.newIDLocked(),
		MealOptionID: in.MealOptionID,
		Date:         week.Truncate(in.Date),
		SlotType:     in.SlotType,
		Location:     in.Location,
		Servings:     in.Servings,
		Notes:        in.Notes,
		Completed:    in.Completed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.entries[e.ID] = e
	return *e, nil
}

func (m *MemoryStorage) GetMealEntry(ctx context.Context, id int64) (storage.MealEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return storage.MealEntry{}, storage.NotFound("meal_entry", id)
	}
	return *e, nil
}

func (m *MemoryStorage) ListMealEntriesByDate(ctx context.Context, date time.Time) ([]storage.MealEntry, error) {
	d := week.Truncate(date)
	return m.filterEntries(func(e *storage.MealEntry) bool { return e.Date.Equal(d) }), nil
}

func (m *MemoryStorage) ListMealEntriesByDateRange(ctx context.Context, start, end time.Time) ([]storage.MealEntry, error) {
	s, en := week.Truncate(start), week.Truncate(end)
	return m.filterEntries(func(e *storage.MealEntry) bool {
		return !e.Date.Before(s) && !e.Date.After(en)
	}), nil
}

func (m *MemoryStorage) ListMealEntriesByDateAndSlot(ctx context.Context, date time.Time, slot storage.SlotType) ([]storage.MealEntry, error) {
	d := week.Truncate(date)
	return m.filterEntries(func(e *storage.MealEntry) bool { return e.Date.Equal(d) && e.SlotType == slot }), nil
}

func (m *MemoryStorage) ListMealEntriesByCompleted(ctx context.Context, completed bool) ([]storage.MealEntry, error) {
	return m.filterEntries(func(e *storage.MealEntry) bool { return e.Completed == completed }), nil
}

func (m *MemoryStorage) ListMealEntriesByOption(ctx context.Context, optionID int64) ([]storage.MealEntry, error) {
	return m.filterEntries(func(e *storage.MealEntry) bool { return e.MealOptionID == optionID }), nil
}

func (m *MemoryStorage) UpdateMealEntry(ctx context.Context, id int64, upd storage.MealEntryUpdate) (storage.MealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return storage.MealEntry{}, storage.NotFound("meal_entry", id)
	}
	if upd.MealOptionID != nil {
		if _, ok := m.options[*upd.MealOptionID]; !ok {
			return storage.MealEntry{}, storage.ForeignKey("update meal entry", fmt.Errorf("meal option %d does not exist", *upd.MealOptionID))
		}
		e.MealOptionID = *upd.MealOptionID
	}
	if upd.Date != nil {
		e.Date = week.Truncate(*upd.Date)
	}
	if upd.SlotType != nil {
		e.SlotType = *upd.SlotType
	}
	if upd.Location != nil {
		e.Location = *upd.Location
	}
	if upd.Servings != nil {
		e.Servings = *upd.Servings
	}
	e.Notes = upd.Notes.Apply(e.Notes)
	if upd.Completed != nil {
		e.Completed = *upd.Completed
	}
	e.UpdatedAt = m.now()
	return *e, nil
}

func (m *MemoryStorage) DeleteMealEntry(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return storage.NotFound("meal_entry", id)
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryStorage) GetWeeklyUsage(ctx context.Context, optionID int64, weekKey string) (storage.WeeklyUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries {
		if e.MealOptionID == optionID && week.Key(e.Date) == weekKey {
			n++
		}
	}
	return storage.WeeklyUsage{MealOptionID: optionID, Week: weekKey, UsageCount: n}, nil
}

func (m *MemoryStorage) GetWeeklyTagUsage(ctx context.Context, tagID int64, weekKey string) (storage.WeeklyTagUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tag, ok := m.tags[tagID]
	if !ok {
		return storage.WeeklyTagUsage{}, storage.NotFound("tag", tagID)
	}

	n := 0
	for _, e := range m.entries {
		if week.Key(e.Date) != weekKey {
			continue
		}
		if _, tagged := m.optTags[e.MealOptionID][tagID]; tagged {
			n++
		}
	}
	return storage.WeeklyTagUsage{TagID: tagID, TagName: tag.Name, Week: weekKey, UsageCount: n}, nil
}

func (m *MemoryStorage) filterEntries(keep func(*storage.MealEntry) bool) []storage.MealEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []storage.MealEntry{}
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sortEntries(out)
	return out
}
