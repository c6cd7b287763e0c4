package tags

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/storage/memory"
)

// mockTags serves GetTag from a map and records UpdateTag calls. Other
// methods are left to the embedded nil interface and panic if reached.
type mockTags struct {
	storage.TagsStorage
	tags    map[int64]storage.Tag
	getErr  error
	updated []int64
}

func (m *mockTags) GetTag(ctx context.Context, id int64) (storage.Tag, error) {
	if m.getErr != nil {
		return storage.Tag{}, m.getErr
	}
	t, ok := m.tags[id]
	if !ok {
		return storage.Tag{}, storage.NotFound("tag", id)
	}
	return t, nil
}

func (m *mockTags) UpdateTag(ctx context.Context, id int64, upd storage.TagUpdate) (storage.Tag, error) {
	m.updated = append(m.updated, id)
	t := m.tags[id]
	t.ParentTagID = upd.ParentTagID.Apply(t.ParentTagID)
	return t, nil
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

// chain builds 1 <- 2 <- 3 (3's parent is 2, 2's parent is 1).
func chain() *mockTags {
	return &mockTags{tags: map[int64]storage.Tag{
		1: {ID: 1, Name: "grain"},
		2: {ID: 2, Name: "pasta", ParentTagID: int64Ptr(1)},
		3: {ID: 3, Name: "whole_wheat_pasta", ParentTagID: int64Ptr(2)},
	}}
}

func TestUpdateRejectsCycles(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		id     int64
		parent int64
	}{
		{"self parent", 2, 2},
		{"direct child as parent", 1, 2},
		{"grandchild as parent", 1, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := chain()
			_, err := NewService(mock).Update(ctx, tc.id, UpdateTagRequest{ParentTagID: storage.Set(tc.parent)})
			_, ok := storage.AsValidationError(err)
			assert.True(t, ok, "got %v", err)
			assert.Empty(t, mock.updated)
		})
	}
}

func TestUpdateAllowsReparenting(t *testing.T) {
	mock := chain()
	svc := NewService(mock)

	dto, err := svc.Update(context.Background(), 3, UpdateTagRequest{ParentTagID: storage.Set[int64](1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), *dto.ParentTagID)

	dto, err = svc.Update(context.Background(), 3, UpdateTagRequest{ParentTagID: storage.Clear[int64]()})
	require.NoError(t, err)
	assert.Nil(t, dto.ParentTagID)
	assert.Equal(t, []int64{3, 3}, mock.updated)
}

func TestUpdatePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	mock := chain()
	mock.getErr = boom

	_, err := NewService(mock).Update(context.Background(), 1, UpdateTagRequest{ParentTagID: storage.Set[int64](2)})
	assert.ErrorIs(t, err, boom)
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	for name, req := range map[string]CreateTagRequest{
		"uppercase name":      {Name: "Pasta", DisplayName: "Pasta", Category: storage.TagIngredient},
		"name with digits":    {Name: "omega3", DisplayName: "Omega 3", Category: storage.TagDietary},
		"empty display name":  {Name: "pasta", DisplayName: " ", Category: storage.TagIngredient},
		"unknown category":    {Name: "pasta", DisplayName: "Pasta", Category: "carbs"},
		"negative suggestion": {Name: "pasta", DisplayName: "Pasta", Category: storage.TagIngredient, WeeklySuggestion: intPtr(-1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, req)
			_, ok := storage.AsValidationError(err)
			assert.True(t, ok, "got %v", err)
		})
	}
}

func TestCreateAndLookup(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	parent, err := svc.Create(ctx, CreateTagRequest{Name: "pasta", DisplayName: "Pasta", Category: storage.TagIngredient, WeeklySuggestion: intPtr(3)})
	require.NoError(t, err)
	child, err := svc.Create(ctx, CreateTagRequest{Name: "whole_wheat_pasta", DisplayName: "Whole wheat pasta", Category: storage.TagIngredient, ParentTagID: &parent.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateTagRequest{Name: "vegan", DisplayName: "Vegan", Category: storage.TagDietary, WeeklySuggestion: intPtr(0)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateTagRequest{Name: "pasta", DisplayName: "Again", Category: storage.TagOther})
	assert.ErrorIs(t, err, storage.ErrConflict)

	byName, err := svc.GetByName(ctx, "whole_wheat_pasta")
	require.NoError(t, err)
	assert.Equal(t, child.ID, byName.ID)

	_, err = svc.GetByName(ctx, "rice")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	children, err := svc.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	dietary, err := svc.ListByCategory(ctx, storage.TagDietary)
	require.NoError(t, err)
	require.Len(t, dietary, 1)
	assert.Equal(t, "vegan", dietary[0].Name)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Deleting the parent detaches the child.
	require.NoError(t, svc.Delete(ctx, parent.ID))
	got, err := svc.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentTagID)
}
