package memory

import (
	"context"
	"fmt"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

func (m *MemoryStorage) CreateTag(ctx context.Context, in storage.TagCreate) (storage.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tags {
		if t.Name == in.Name {
			return storage.Tag{}, storage.Conflict("tag", fmt.Errorf("UNIQUE constraint failed: tags.name (%s)", in.Name))
		}
	}
	if in.ParentTagID != nil {
		if _, ok := m.tags[*in.ParentTagID]; !ok {
			return storage.Tag{}, storage.ForeignKey("create tag", fmt.Errorf("parent tag %d does not exist", *in.ParentTagID))
		}
	}

	t := &storage.Tag{
		ID:               m.newIDLocked(),
		Name:             in.Name,
		DisplayName:      in.DisplayName,
		Category:         in.Category,
		WeeklySuggestion: in.WeeklySuggestion,
		ParentTagID:      in.ParentTagID,
		CreatedAt:        m.now(),
	}
	m.tags[t.ID] = t
	return *t, nil
}

func (m *MemoryStorage) GetTag(ctx context.Context, id int64) (storage.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tags[id]
	if !ok {
		return storage.Tag{}, storage.NotFound("tag", id)
	}
	return *t, nil
}

func (m *MemoryStorage) GetTagByName(ctx context.Context, name string) (storage.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tags {
		if t.Name == name {
			return *t, nil
		}
	}
	return storage.Tag{}, storage.NotFoundName("tag", name)
}

func (m *MemoryStorage) ListTags(ctx context.Context) ([]storage.Tag, error) {
	return m.filterTags(func(*storage.Tag) bool { return true }), nil
}

func (m *MemoryStorage) ListTagsByCategory(ctx context.Context, category storage.TagCategory) ([]storage.Tag, error) {
	return m.filterTags(func(t *storage.Tag) bool { return t.Category == category }), nil
}

func (m *MemoryStorage) ListTagChildren(ctx context.Context, parentID int64) ([]storage.Tag, error) {
	return m.filterTags(func(t *storage.Tag) bool { return t.ParentTagID != nil && *t.ParentTagID == parentID }), nil
}

func (m *MemoryStorage) UpdateTag(ctx context.Context, id int64, upd storage.TagUpdate) (storage.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tags[id]
	if !ok {
		return storage.Tag{}, storage.NotFound("tag", id)
	}
	if parentID, ok := upd.ParentTagID.Value(); ok {
		if _, exists := m.tags[parentID]; !exists {
			return storage.Tag{}, storage.ForeignKey("update tag", fmt.Errorf("parent tag %d does not exist", parentID))
		}
	}

	if upd.DisplayName != nil {
		t.DisplayName = *upd.DisplayName
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	t.WeeklySuggestion = upd.WeeklySuggestion.Apply(t.WeeklySuggestion)
	t.ParentTagID = upd.ParentTagID.Apply(t.ParentTagID)
	return *t, nil
}

// DeleteTag detaches the tag from options and orphans its children.
func (m *MemoryStorage) DeleteTag(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tags[id]; !ok {
		return storage.NotFound("tag", id)
	}
	for _, set := range m.optTags {
		delete(set, id)
	}
	for _, t := range m.tags {
		if t.ParentTagID != nil && *t.ParentTagID == id {
			t.ParentTagID = nil
		}
	}
	delete(m.tags, id)
	return nil
}

func (m *MemoryStorage) filterTags(keep func(*storage.Tag) bool) []storage.Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []storage.Tag{}
	for _, t := range m.tags {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sortTags(out)
	return out
}
