package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

func (m *MemoryStorage) CreateMealOption(ctx context.Context, in storage.MealOptionCreate) (storage.MealOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[in.TemplateID]; !ok {
		return storage.MealOption{}, storage.ForeignKey("create meal option", fmt.Errorf("meal template %d does not exist", in.TemplateID))
	}

	now := m.now()
	o := &storage.MealOption{
		ID:               m.newIDLocked(),
		TemplateID:       in.TemplateID,
		Name:             in.Name,
		Description:      in.Description,
		NutritionalNotes: in.NutritionalNotes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.options[o.ID] = o
	return *o, nil
}

func (m *MemoryStorage) GetMealOption(ctx context.Context, id int64) (storage.MealOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.options[id]
	if !ok {
		return storage.MealOption{}, storage.NotFound("meal_option", id)
	}
	return *o, nil
}

func (m *MemoryStorage) GetMealOptionWithTags(ctx context.Context, id int64) (storage.MealOptionWithTags, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.options[id]
	if !ok {
		return storage.MealOptionWithTags{}, storage.NotFound("meal_option", id)
	}
	return storage.MealOptionWithTags{MealOption: *o, TagIDs: m.tagIDsLocked(id)}, nil
}

func (m *MemoryStorage) ListMealOptions(ctx context.Context) ([]storage.MealOption, error) {
	return m.filterOptions(func(*storage.MealOption) bool { return true }), nil
}

func (m *MemoryStorage) ListMealOptionsByTemplate(ctx context.Context, templateID int64) ([]storage.MealOption, error) {
	return m.filterOptions(func(o *storage.MealOption) bool { return o.TemplateID == templateID }), nil
}

func (m *MemoryStorage) SearchMealOptions(ctx context.Context, query string) ([]storage.MealOption, error) {
	q := strings.ToLower(query)
	return m.filterOptions(func(o *storage.MealOption) bool {
		return strings.Contains(strings.ToLower(o.Name), q) || containsFold(o.Description, q) || containsFold(o.NutritionalNotes, q)
	}), nil
}

func (m *MemoryStorage) UpdateMealOption(ctx context.Context, id int64, upd storage.MealOptionUpdate) (storage.MealOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.options[id]
	if !ok {
		return storage.MealOption{}, storage.NotFound("meal_option", id)
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	o.Description = upd.Description.Apply(o.Description)
	o.NutritionalNotes = upd.NutritionalNotes.Apply(o.NutritionalNotes)
	o.UpdatedAt = m.now()
	return *o, nil
}

func (m *MemoryStorage) DeleteMealOption(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.options[id]; !ok {
		return storage.NotFound("meal_option", id)
	}
	if m.optionHasEntriesLocked(id) {
		return storage.ForeignKey("delete meal option", errors.New("meal entries reference this option"))
	}
	m.deleteOptionLocked(id)
	return nil
}

func (m *MemoryStorage) GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.options[optionID]; !ok {
		return nil, storage.NotFound("meal_option", optionID)
	}
	return m.tagIDsLocked(optionID), nil
}

func (m *MemoryStorage) AddOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOptionTagsLocked("add meal option tags", optionID, tagIDs); err != nil {
		return err
	}
	set := m.optTags[optionID]
	if set == nil {
		set = make(map[int64]struct{})
		m.optTags[optionID] = set
	}
	for _, id := range tagIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (m *MemoryStorage) RemoveOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range tagIDs {
		delete(m.optTags[optionID], id)
	}
	return nil
}

func (m *MemoryStorage) SetOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOptionTagsLocked("set meal option tags", optionID, tagIDs); err != nil {
		return err
	}
	set := make(map[int64]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		set[id] = struct{}{}
	}
	m.optTags[optionID] = set
	return nil
}

// Helper methods (must be called with lock held)
func (m *MemoryStorage) checkOptionTagsLocked(op string, optionID int64, tagIDs []int64) error {
	if _, ok := m.options[optionID]; !ok {
		return storage.ForeignKey(op, fmt.Errorf("meal option %d does not exist", optionID))
	}
	for _, id := range tagIDs {
		if _, ok := m.tags[id]; !ok {
			return storage.ForeignKey(op, fmt.Errorf("tag %d does not exist", id))
		}
	}
	return nil
}

func (m *MemoryStorage) tagIDsLocked(optionID int64) []int64 {
	ids := make([]int64, 0, len(m.optTags[optionID]))
	for id := range m.optTags[optionID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemoryStorage) optionHasEntriesLocked(optionID int64) bool {
	for _, e := range m.entries {
		if e.MealOptionID == optionID {
			return true
		}
	}
	return false
}

func (m *MemoryStorage) deleteOptionLocked(optionID int64) {
	delete(m.optTags, optionID)
	delete(m.options, optionID)
}

func (m *MemoryStorage) filterOptions(keep func(*storage.MealOption) bool) []storage.MealOption {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []storage.MealOption{}
	for _, o := range m.options {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sortOptions(out)
	return out
}
