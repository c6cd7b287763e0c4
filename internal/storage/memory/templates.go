package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

func (m *MemoryStorage) CreateMealTemplate(ctx context.Context, in storage.MealTemplateCreate) (storage.MealTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	t := &storage.MealTemplate{
		ID:              m.newIDLocked(),
		Name:            in.Name,
		Description:     in.Description,
		CompatibleSlots: append([]storage.SlotType(nil), in.CompatibleSlots...),
		LocationType:    in.LocationType,
		WeeklyLimit:     in.WeeklyLimit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.templates[t.ID] = t
	return cloneTemplate(t), nil
}

func (m *MemoryStorage) GetMealTemplate(ctx context.Context, id int64) (storage.MealTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return storage.MealTemplate{}, storage.NotFound("meal_template", id)
	}
	return cloneTemplate(t), nil
}

func (m *MemoryStorage) ListMealTemplates(ctx context.Context) ([]storage.MealTemplate, error) {
	return m.filterTemplates(func(*storage.MealTemplate) bool { return true }), nil
}

func (m *MemoryStorage) ListMealTemplatesByLocation(ctx context.Context, location storage.LocationType) ([]storage.MealTemplate, error) {
	return m.filterTemplates(func(t *storage.MealTemplate) bool {
		return location.IsCompatibleWith(t.LocationType)
	}), nil
}

func (m *MemoryStorage) ListMealTemplatesBySlot(ctx context.Context, slot storage.SlotType) ([]storage.MealTemplate, error) {
	return m.filterTemplates(func(t *storage.MealTemplate) bool { return t.HasSlot(slot) }), nil
}

func (m *MemoryStorage) SearchMealTemplates(ctx context.Context, query string) ([]storage.MealTemplate, error) {
	q := strings.ToLower(query)
	return m.filterTemplates(func(t *storage.MealTemplate) bool {
		return strings.Contains(strings.ToLower(t.Name), q) || containsFold(t.Description, q)
	}), nil
}

func (m *MemoryStorage) UpdateMealTemplate(ctx context.Context, id int64, upd storage.MealTemplateUpdate) (storage.MealTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.templates[id]
	if !ok {
		return storage.MealTemplate{}, storage.NotFound("meal_template", id)
	}

	if upd.Name != nil {
		t.Name = *upd.Name
	}
	t.Description = upd.Description.Apply(t.Description)
	if upd.CompatibleSlots != nil {
		t.CompatibleSlots = append([]storage.SlotType(nil), upd.CompatibleSlots...)
	}
	if upd.LocationType != nil {
		t.LocationType = *upd.LocationType
	}
	t.WeeklyLimit = upd.WeeklyLimit.Apply(t.WeeklyLimit)
	t.UpdatedAt = m.now()

	return cloneTemplate(t), nil
}

// DeleteMealTemplate cascades to the template's options. It fails with a
// foreign key error when one of those options still has entries.
func (m *MemoryStorage) DeleteMealTemplate(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return storage.NotFound("meal_template", id)
	}

	var optionIDs []int64
	for _, o := range m.options {
		if o.TemplateID == id {
			if m.optionHasEntriesLocked(o.ID) {
				return storage.ForeignKey("delete meal template", errors.New("meal entries reference its options"))
			}
			optionIDs = append(optionIDs, o.ID)
		}
	}
	for _, optionID := range optionIDs {
		m.deleteOptionLocked(optionID)
	}
	delete(m.templates, id)
	return nil
}

func (m *MemoryStorage) filterTemplates(keep func(*storage.MealTemplate) bool) []storage.MealTemplate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []storage.MealTemplate{}
	for _, t := range m.templates {
		if keep(t) {
			out = append(out, cloneTemplate(t))
		}
	}
	sortTemplates(out)
	return out
}
