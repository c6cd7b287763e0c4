package templates

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/storage/memory"
)

func intPtr(v int) *int { return &v }

func TestCreateValidates(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	cases := map[string]CreateTemplateRequest{
		"empty name":     {Name: "  ", CompatibleSlots: []storage.SlotType{storage.SlotLunch}, LocationType: storage.LocationHome},
		"no slots":       {Name: "Pasta", LocationType: storage.LocationHome},
		"bad slot":       {Name: "Pasta", CompatibleSlots: []storage.SlotType{"brunch"}, LocationType: storage.LocationHome},
		"bad location":   {Name: "Pasta", CompatibleSlots: []storage.SlotType{storage.SlotLunch}, LocationType: "car"},
		"zero limit":     {Name: "Pasta", CompatibleSlots: []storage.SlotType{storage.SlotLunch}, LocationType: storage.LocationHome, WeeklyLimit: intPtr(0)},
		"negative limit": {Name: "Pasta", CompatibleSlots: []storage.SlotType{storage.SlotLunch}, LocationType: storage.LocationHome, WeeklyLimit: intPtr(-1)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, req)
			_, ok := storage.AsValidationError(err)
			assert.True(t, ok, "expected validation error, got %v", err)
		})
	}
}

func TestCreateDedupesSlotsAndTrimsName(t *testing.T) {
	svc := NewService(memory.New())

	dto, err := svc.Create(context.Background(), CreateTemplateRequest{
		Name:            "  Pasta ",
		CompatibleSlots: []storage.SlotType{storage.SlotDinner, storage.SlotLunch, storage.SlotDinner},
		LocationType:    storage.LocationHome,
		WeeklyLimit:     intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Pasta", dto.Name)
	assert.Equal(t, []storage.SlotType{storage.SlotDinner, storage.SlotLunch}, dto.CompatibleSlots)
	assert.Equal(t, 3, *dto.WeeklyLimit)
}

func TestListFilters(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	for _, req := range []CreateTemplateRequest{
		{Name: "Yogurt", CompatibleSlots: []storage.SlotType{storage.SlotBreakfast, storage.SlotMorningSnack}, LocationType: storage.LocationAny},
		{Name: "Sandwich", CompatibleSlots: []storage.SlotType{storage.SlotLunch}, LocationType: storage.LocationOffice},
		{Name: "Roast", CompatibleSlots: []storage.SlotType{storage.SlotDinner}, LocationType: storage.LocationHome},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	office, err := svc.ListByLocation(ctx, storage.LocationOffice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sandwich", "Yogurt"}, names(office))

	snacks, err := svc.ListBySlot(ctx, storage.SlotMorningSnack)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yogurt"}, names(snacks))

	found, err := svc.Search(ctx, "roa")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roast"}, names(found))

	all, err := svc.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.ListBySlot(ctx, "brunch")
	_, ok := storage.AsValidationError(err)
	assert.True(t, ok)
}

func TestUpdateFromJSONPatch(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	desc := "Weeknight pasta"
	created, err := svc.Create(ctx, CreateTemplateRequest{
		Name:            "Pasta",
		Description:     &desc,
		CompatibleSlots: []storage.SlotType{storage.SlotLunch},
		LocationType:    storage.LocationHome,
		WeeklyLimit:     intPtr(2),
	})
	require.NoError(t, err)

	var req UpdateTemplateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"description": null, "weekly_limit": 4}`), &req))

	updated, err := svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", updated.Name)
	assert.Nil(t, updated.Description)
	require.NotNil(t, updated.WeeklyLimit)
	assert.Equal(t, 4, *updated.WeeklyLimit)

	_, err = svc.Update(ctx, created.ID, UpdateTemplateRequest{WeeklyLimit: storage.Set(0)})
	_, ok := storage.AsValidationError(err)
	assert.True(t, ok)

	_, err = svc.Update(ctx, 999, UpdateTemplateRequest{Name: &desc})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteWithHistoryFails(t *testing.T) {
	store := memory.New()
	svc := NewService(store)
	ctx := context.Background()

	tpl, err := svc.Create(ctx, CreateTemplateRequest{Name: "Pasta", CompatibleSlots: []storage.SlotType{storage.SlotLunch}, LocationType: storage.LocationHome})
	require.NoError(t, err)
	opt, err := store.CreateMealOption(ctx, storage.MealOptionCreate{TemplateID: tpl.ID, Name: "Carbonara"})
	require.NoError(t, err)
	_, err = store.CreateMealEntry(ctx, storage.MealEntryCreate{MealOptionID: opt.ID, SlotType: storage.SlotLunch, Location: storage.LocationHome, Servings: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, tpl.ID), storage.ErrForeignKey)
}

func names(list []TemplateDTO) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Name
	}
	return out
}
