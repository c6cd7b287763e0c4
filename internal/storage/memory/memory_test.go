package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	m := New()

	tpl, err := m.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Pasta",
		CompatibleSlots: []storage.SlotType{storage.SlotLunch},
		LocationType:    storage.LocationHome,
	})
	require.NoError(t, err)

	tpl.CompatibleSlots[0] = storage.SlotBreakfast
	tpl.Name = "changed"

	got, err := m.GetMealTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", got.Name)
	assert.Equal(t, []storage.SlotType{storage.SlotLunch}, got.CompatibleSlots)
}

func TestInTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().InTx(ctx, storage.EntryLock{MealOptionID: 1, Week: "2024-45"}, func(ctx context.Context, tx storage.Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
