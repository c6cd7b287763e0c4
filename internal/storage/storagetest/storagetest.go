// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

// Factory returns an empty store with the schema in place.
type Factory func(t *testing.T) storage.Store

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Templates", func(t *testing.T) { testTemplates(t, newStore(t)) })
	t.Run("TemplateUpdatePatch", func(t *testing.T) { testTemplateUpdatePatch(t, newStore(t)) })
	t.Run("Options", func(t *testing.T) { testOptions(t, newStore(t)) })
	t.Run("OptionTags", func(t *testing.T) { testOptionTags(t, newStore(t)) })
	t.Run("Tags", func(t *testing.T) { testTags(t, newStore(t)) })
	t.Run("Entries", func(t *testing.T) { testEntries(t, newStore(t)) })
	t.Run("EntryUpdate", func(t *testing.T) { testEntryUpdate(t, newStore(t)) })
	t.Run("WeeklyUsage", func(t *testing.T) { testWeeklyUsage(t, newStore(t)) })
	t.Run("WeeklyUsageYearBoundary", func(t *testing.T) { testWeeklyUsageYearBoundary(t, newStore(t)) })
	t.Run("ReferentialIntegrity", func(t *testing.T) { testReferentialIntegrity(t, newStore(t)) })
	t.Run("InTxSerializes", func(t *testing.T) { testInTxSerializes(t, newStore(t)) })
}

func ptr[T any](v T) *T { return &v }

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := week.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustTemplate(t *testing.T, s storage.Store, name string, limit *int, slots ...storage.SlotType) storage.MealTemplate {
	t.Helper()
	if len(slots) == 0 {
		slots = []storage.SlotType{storage.SlotLunch, storage.SlotDinner}
	}
	tpl, err := s.CreateMealTemplate(context.Background(), storage.MealTemplateCreate{
		Name:            name,
		CompatibleSlots: slots,
		LocationType:    storage.LocationHome,
		WeeklyLimit:     limit,
	})
	require.NoError(t, err)
	return tpl
}

func mustOption(t *testing.T, s storage.Store, templateID int64, name string) storage.MealOption {
	t.Helper()
	opt, err := s.CreateMealOption(context.Background(), storage.MealOptionCreate{TemplateID: templateID, Name: name})
	require.NoError(t, err)
	return opt
}

func mustTag(t *testing.T, s storage.Store, name string, suggestion *int) storage.Tag {
	t.Helper()
	tag, err := s.CreateTag(context.Background(), storage.TagCreate{
		Name:             name,
		DisplayName:      name,
		Category:         storage.TagIngredient,
		WeeklySuggestion: suggestion,
	})
	require.NoError(t, err)
	return tag
}

func mustEntry(t *testing.T, s storage.Store, optionID int64, day string, slot storage.SlotType) storage.MealEntry {
	t.Helper()
	e, err := s.CreateMealEntry(context.Background(), storage.MealEntryCreate{
		MealOptionID: optionID,
		Date:         date(t, day),
		SlotType:     slot,
		Location:     storage.LocationHome,
		Servings:     1,
	})
	require.NoError(t, err)
	return e
}

func testTemplates(t *testing.T, s storage.Store) {
	ctx := context.Background()

	pasta, err := s.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Pasta",
		Description:     ptr("Any pasta dish"),
		CompatibleSlots: []storage.SlotType{storage.SlotLunch, storage.SlotDinner},
		LocationType:    storage.LocationHome,
		WeeklyLimit:     ptr(3),
	})
	require.NoError(t, err)
	assert.NotZero(t, pasta.ID)
	assert.Equal(t, []storage.SlotType{storage.SlotLunch, storage.SlotDinner}, pasta.CompatibleSlots)
	require.NotNil(t, pasta.WeeklyLimit)
	assert.Equal(t, 3, *pasta.WeeklyLimit)
	assert.False(t, pasta.CreatedAt.IsZero())

	_, err = s.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Bread",
		CompatibleSlots: []storage.SlotType{storage.SlotBreakfast},
		LocationType:    storage.LocationAny,
	})
	require.NoError(t, err)
	_, err = s.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Office salad",
		Description:     ptr("Quick 100% green"),
		CompatibleSlots: []storage.SlotType{storage.SlotLunch},
		LocationType:    storage.LocationOffice,
	})
	require.NoError(t, err)

	got, err := s.GetMealTemplate(ctx, pasta.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", got.Name)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Any pasta dish", *got.Description)

	all, err := s.ListMealTemplates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bread", "Office salad", "Pasta"}, templateNames(all))

	atOffice, err := s.ListMealTemplatesByLocation(ctx, storage.LocationOffice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bread", "Office salad"}, templateNames(atOffice))

	anywhere, err := s.ListMealTemplatesByLocation(ctx, storage.LocationAny)
	require.NoError(t, err)
	assert.Len(t, anywhere, 3)

	lunch, err := s.ListMealTemplatesBySlot(ctx, storage.SlotLunch)
	require.NoError(t, err)
	assert.Equal(t, []string{"Office salad", "Pasta"}, templateNames(lunch))

	found, err := s.SearchMealTemplates(ctx, "PASTA")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pasta"}, templateNames(found))

	found, err = s.SearchMealTemplates(ctx, "100%")
	require.NoError(t, err)
	assert.Equal(t, []string{"Office salad"}, templateNames(found), "wildcards are literal")

	require.NoError(t, s.DeleteMealTemplate(ctx, pasta.ID))
	_, err = s.GetMealTemplate(ctx, pasta.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMealTemplate(ctx, pasta.ID), storage.ErrNotFound)
}

func testTemplateUpdatePatch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl, err := s.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Rice",
		Description:     ptr("Rice bowls"),
		CompatibleSlots: []storage.SlotType{storage.SlotLunch},
		LocationType:    storage.LocationHome,
		WeeklyLimit:     ptr(2),
	})
	require.NoError(t, err)

	// unchanged fields survive
	updated, err := s.UpdateMealTemplate(ctx, tpl.ID, storage.MealTemplateUpdate{Name: ptr("Rice & grains")})
	require.NoError(t, err)
	assert.Equal(t, "Rice & grains", updated.Name)
	require.NotNil(t, updated.Description)
	require.NotNil(t, updated.WeeklyLimit)
	assert.Equal(t, 2, *updated.WeeklyLimit)

	// clear and set
	updated, err = s.UpdateMealTemplate(ctx, tpl.ID, storage.MealTemplateUpdate{
		Description:     storage.Clear[string](),
		WeeklyLimit:     storage.Clear[int](),
		CompatibleSlots: []storage.SlotType{storage.SlotLunch, storage.SlotDinner},
		LocationType:    ptr(storage.LocationAny),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
	assert.Nil(t, updated.WeeklyLimit)
	assert.Equal(t, []storage.SlotType{storage.SlotLunch, storage.SlotDinner}, updated.CompatibleSlots)
	assert.Equal(t, storage.LocationAny, updated.LocationType)

	updated, err = s.UpdateMealTemplate(ctx, tpl.ID, storage.MealTemplateUpdate{WeeklyLimit: storage.Set(5)})
	require.NoError(t, err)
	require.NotNil(t, updated.WeeklyLimit)
	assert.Equal(t, 5, *updated.WeeklyLimit)

	_, err = s.UpdateMealTemplate(ctx, tpl.ID+1000, storage.MealTemplateUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testOptions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	pasta := mustTemplate(t, s, "Pasta", nil)
	soup := mustTemplate(t, s, "Soup", nil)

	carbonara, err := s.CreateMealOption(ctx, storage.MealOptionCreate{
		TemplateID:       pasta.ID,
		Name:             "Carbonara",
		NutritionalNotes: ptr("High in fat"),
	})
	require.NoError(t, err)
	assert.Equal(t, pasta.ID, carbonara.TemplateID)
	mustOption(t, s, pasta.ID, "Arrabbiata")
	mustOption(t, s, soup.ID, "Minestrone")

	byTemplate, err := s.ListMealOptionsByTemplate(ctx, pasta.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arrabbiata", "Carbonara"}, optionNames(byTemplate))

	all, err := s.ListMealOptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := s.SearchMealOptions(ctx, "fat")
	require.NoError(t, err)
	assert.Equal(t, []string{"Carbonara"}, optionNames(found))

	updated, err := s.UpdateMealOption(ctx, carbonara.ID, storage.MealOptionUpdate{
		Description:      storage.Set("Guanciale and pecorino"),
		NutritionalNotes: storage.Clear[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, "Carbonara", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Guanciale and pecorino", *updated.Description)
	assert.Nil(t, updated.NutritionalNotes)

	_, err = s.CreateMealOption(ctx, storage.MealOptionCreate{TemplateID: 9999, Name: "Orphan"})
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	require.NoError(t, s.DeleteMealOption(ctx, carbonara.ID))
	_, err = s.GetMealOption(ctx, carbonara.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// deleting a template removes its options
	require.NoError(t, s.DeleteMealTemplate(ctx, soup.ID))
	left, err := s.ListMealOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arrabbiata"}, optionNames(left))
}

func testOptionTags(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Pasta", nil)
	opt := mustOption(t, s, tpl.ID, "Carbonara")
	pasta := mustTag(t, s, "pasta", nil)
	pork := mustTag(t, s, "pork", nil)
	cheese := mustTag(t, s, "cheese", nil)

	require.NoError(t, s.AddOptionTags(ctx, opt.ID, []int64{pork.ID, pasta.ID}))
	require.NoError(t, s.AddOptionTags(ctx, opt.ID, []int64{pasta.ID}), "duplicates are ignored")

	ids, err := s.GetOptionTagIDs(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{pasta.ID, pork.ID}, ids)

	withTags, err := s.GetMealOptionWithTags(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carbonara", withTags.Name)
	assert.Equal(t, []int64{pasta.ID, pork.ID}, withTags.TagIDs)

	require.NoError(t, s.RemoveOptionTags(ctx, opt.ID, []int64{pork.ID}))
	ids, err = s.GetOptionTagIDs(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{pasta.ID}, ids)

	require.NoError(t, s.SetOptionTags(ctx, opt.ID, []int64{cheese.ID, pork.ID}))
	ids, err = s.GetOptionTagIDs(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{pork.ID, cheese.ID}, ids)

	require.NoError(t, s.SetOptionTags(ctx, opt.ID, nil))
	ids, err = s.GetOptionTagIDs(ctx, opt.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	err = s.AddOptionTags(ctx, opt.ID, []int64{9999})
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	_, err = s.GetOptionTagIDs(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// deleting a tag detaches it
	require.NoError(t, s.SetOptionTags(ctx, opt.ID, []int64{cheese.ID, pasta.ID}))
	require.NoError(t, s.DeleteTag(ctx, cheese.ID))
	ids, err = s.GetOptionTagIDs(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{pasta.ID}, ids)
}

func testTags(t *testing.T, s storage.Store) {
	ctx := context.Background()

	pasta, err := s.CreateTag(ctx, storage.TagCreate{
		Name:             "pasta",
		DisplayName:      "Pasta",
		Category:         storage.TagIngredient,
		WeeklySuggestion: ptr(3),
	})
	require.NoError(t, err)
	require.NotNil(t, pasta.WeeklySuggestion)
	assert.Equal(t, 3, *pasta.WeeklySuggestion)

	wholeWheat, err := s.CreateTag(ctx, storage.TagCreate{
		Name:        "whole_wheat_pasta",
		DisplayName: "Whole wheat pasta",
		Category:    storage.TagIngredient,
		ParentTagID: &pasta.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, wholeWheat.ParentTagID)
	assert.Equal(t, pasta.ID, *wholeWheat.ParentTagID)

	_, err = s.CreateTag(ctx, storage.TagCreate{Name: "vegan", DisplayName: "Vegan", Category: storage.TagDietary})
	require.NoError(t, err)

	_, err = s.CreateTag(ctx, storage.TagCreate{Name: "pasta", DisplayName: "Again", Category: storage.TagOther})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.CreateTag(ctx, storage.TagCreate{Name: "orphan", DisplayName: "Orphan", Category: storage.TagOther, ParentTagID: ptr(int64(9999))})
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	byName, err := s.GetTagByName(ctx, "whole_wheat_pasta")
	require.NoError(t, err)
	assert.Equal(t, wholeWheat.ID, byName.ID)

	_, err = s.GetTagByName(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := s.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pasta", "vegan", "whole_wheat_pasta"}, tagNames(all))

	ingredients, err := s.ListTagsByCategory(ctx, storage.TagIngredient)
	require.NoError(t, err)
	assert.Equal(t, []string{"pasta", "whole_wheat_pasta"}, tagNames(ingredients))

	children, err := s.ListTagChildren(ctx, pasta.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"whole_wheat_pasta"}, tagNames(children))

	updated, err := s.UpdateTag(ctx, pasta.ID, storage.TagUpdate{
		DisplayName:      ptr("Pasta (all)"),
		WeeklySuggestion: storage.Clear[int](),
	})
	require.NoError(t, err)
	assert.Equal(t, "pasta", updated.Name)
	assert.Equal(t, "Pasta (all)", updated.DisplayName)
	assert.Nil(t, updated.WeeklySuggestion)

	updated, err = s.UpdateTag(ctx, wholeWheat.ID, storage.TagUpdate{ParentTagID: storage.Clear[int64]()})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentTagID)

	// deleting a parent orphans its children
	_, err = s.UpdateTag(ctx, wholeWheat.ID, storage.TagUpdate{ParentTagID: storage.Set(pasta.ID)})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTag(ctx, pasta.ID))
	child, err := s.GetTag(ctx, wholeWheat.ID)
	require.NoError(t, err)
	assert.Nil(t, child.ParentTagID)

	assert.ErrorIs(t, s.DeleteTag(ctx, pasta.ID), storage.ErrNotFound)
}

func testEntries(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Any meal", nil, storage.AllSlots()...)
	a := mustOption(t, s, tpl.ID, "A")
	b := mustOption(t, s, tpl.ID, "B")

	dinner := mustEntry(t, s, a.ID, "2024-11-04", storage.SlotDinner)
	breakfast := mustEntry(t, s, b.ID, "2024-11-04", storage.SlotBreakfast)
	nextDay := mustEntry(t, s, a.ID, "2024-11-05", storage.SlotLunch)
	later := mustEntry(t, s, b.ID, "2024-11-20", storage.SlotLunch)

	got, err := s.GetMealEntry(ctx, dinner.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(date(t, "2024-11-04")))
	assert.Equal(t, storage.SlotDinner, got.SlotType)
	assert.Equal(t, storage.LocationHome, got.Location)
	assert.Equal(t, 1.0, got.Servings)
	assert.False(t, got.Completed)

	byDate, err := s.ListMealEntriesByDate(ctx, date(t, "2024-11-04"))
	require.NoError(t, err)
	assert.Equal(t, []int64{breakfast.ID, dinner.ID}, entryIDs(byDate), "ordered by slot of the day")

	inRange, err := s.ListMealEntriesByDateRange(ctx, date(t, "2024-11-04"), date(t, "2024-11-05"))
	require.NoError(t, err)
	assert.Equal(t, []int64{breakfast.ID, dinner.ID, nextDay.ID}, entryIDs(inRange), "range is inclusive")

	bySlot, err := s.ListMealEntriesByDateAndSlot(ctx, date(t, "2024-11-05"), storage.SlotLunch)
	require.NoError(t, err)
	assert.Equal(t, []int64{nextDay.ID}, entryIDs(bySlot))

	byOption, err := s.ListMealEntriesByOption(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{breakfast.ID, later.ID}, entryIDs(byOption))

	_, err = s.UpdateMealEntry(ctx, later.ID, storage.MealEntryUpdate{Completed: ptr(true)})
	require.NoError(t, err)

	done, err := s.ListMealEntriesByCompleted(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{later.ID}, entryIDs(done))

	planned, err := s.ListMealEntriesByCompleted(ctx, false)
	require.NoError(t, err)
	assert.Len(t, planned, 3)

	_, err = s.CreateMealEntry(ctx, storage.MealEntryCreate{
		MealOptionID: 9999,
		Date:         date(t, "2024-11-04"),
		SlotType:     storage.SlotLunch,
		Location:     storage.LocationHome,
		Servings:     1,
	})
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	require.NoError(t, s.DeleteMealEntry(ctx, dinner.ID))
	_, err = s.GetMealEntry(ctx, dinner.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMealEntry(ctx, dinner.ID), storage.ErrNotFound)
}

func testEntryUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Any meal", nil, storage.AllSlots()...)
	a := mustOption(t, s, tpl.ID, "A")
	b := mustOption(t, s, tpl.ID, "B")

	e, err := s.CreateMealEntry(ctx, storage.MealEntryCreate{
		MealOptionID: a.ID,
		Date:         date(t, "2024-11-04"),
		SlotType:     storage.SlotLunch,
		Location:     storage.LocationOffice,
		Servings:     1.5,
		Notes:        ptr("half portion of bread"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, e.Servings)

	updated, err := s.UpdateMealEntry(ctx, e.ID, storage.MealEntryUpdate{
		MealOptionID: &b.ID,
		Date:         ptr(date(t, "2024-11-06")),
		SlotType:     ptr(storage.SlotDinner),
		Notes:        storage.Clear[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, b.ID, updated.MealOptionID)
	assert.True(t, updated.Date.Equal(date(t, "2024-11-06")))
	assert.Equal(t, storage.SlotDinner, updated.SlotType)
	assert.Equal(t, storage.LocationOffice, updated.Location)
	assert.Equal(t, 1.5, updated.Servings)
	assert.Nil(t, updated.Notes)

	_, err = s.UpdateMealEntry(ctx, e.ID, storage.MealEntryUpdate{MealOptionID: ptr(int64(9999))})
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	_, err = s.UpdateMealEntry(ctx, e.ID+1000, storage.MealEntryUpdate{Completed: ptr(true)})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testWeeklyUsage(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Pasta", nil)
	a := mustOption(t, s, tpl.ID, "Carbonara")
	b := mustOption(t, s, tpl.ID, "Pesto")
	pasta := mustTag(t, s, "pasta", ptr(3))
	pork := mustTag(t, s, "pork", nil)
	require.NoError(t, s.SetOptionTags(ctx, a.ID, []int64{pasta.ID, pork.ID}))
	require.NoError(t, s.SetOptionTags(ctx, b.ID, []int64{pasta.ID}))

	// 2024-45 runs Monday 2024-11-04 .. Sunday 2024-11-10
	mustEntry(t, s, a.ID, "2024-11-04", storage.SlotLunch)
	done := mustEntry(t, s, a.ID, "2024-11-10", storage.SlotDinner)
	mustEntry(t, s, b.ID, "2024-11-06", storage.SlotLunch)
	mustEntry(t, s, a.ID, "2024-11-11", storage.SlotLunch) // 2024-46

	_, err := s.UpdateMealEntry(ctx, done.ID, storage.MealEntryUpdate{Completed: ptr(true)})
	require.NoError(t, err)

	usage, err := s.GetWeeklyUsage(ctx, a.ID, "2024-45")
	require.NoError(t, err)
	assert.Equal(t, storage.WeeklyUsage{MealOptionID: a.ID, Week: "2024-45", UsageCount: 2}, usage, "planned and completed both count")

	usage, err = s.GetWeeklyUsage(ctx, a.ID, "2024-46")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.UsageCount)

	usage, err = s.GetWeeklyUsage(ctx, b.ID, "2024-44")
	require.NoError(t, err)
	assert.Equal(t, storage.WeeklyUsage{MealOptionID: b.ID, Week: "2024-44"}, usage, "no rows means zero")

	tagUsage, err := s.GetWeeklyTagUsage(ctx, pasta.ID, "2024-45")
	require.NoError(t, err)
	assert.Equal(t, storage.WeeklyTagUsage{TagID: pasta.ID, TagName: "pasta", Week: "2024-45", UsageCount: 3}, tagUsage)

	tagUsage, err = s.GetWeeklyTagUsage(ctx, pork.ID, "2024-45")
	require.NoError(t, err)
	assert.Equal(t, 2, tagUsage.UsageCount)

	tagUsage, err = s.GetWeeklyTagUsage(ctx, pork.ID, "2030-01")
	require.NoError(t, err)
	assert.Equal(t, "pork", tagUsage.TagName)
	assert.Zero(t, tagUsage.UsageCount)

	_, err = s.GetWeeklyTagUsage(ctx, 9999, "2024-45")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testWeeklyUsageYearBoundary(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Eggs", nil)
	opt := mustOption(t, s, tpl.ID, "Omelette")

	// Monday 2024-12-30 and Sunday 2025-01-05 are both in ISO week 2025-01.
	mustEntry(t, s, opt.ID, "2024-12-30", storage.SlotLunch)
	mustEntry(t, s, opt.ID, "2025-01-05", storage.SlotDinner)
	// Sunday 2024-12-29 closes 2024-52.
	mustEntry(t, s, opt.ID, "2024-12-29", storage.SlotLunch)
	// 2021-01-03 belongs to 2020-53.
	mustEntry(t, s, opt.ID, "2021-01-03", storage.SlotLunch)

	for key, want := range map[string]int{"2025-01": 2, "2024-52": 1, "2020-53": 1, "2024-01": 0} {
		usage, err := s.GetWeeklyUsage(ctx, opt.ID, key)
		require.NoError(t, err)
		assert.Equal(t, want, usage.UsageCount, "week %s", key)
	}
}

func testReferentialIntegrity(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Pasta", nil)
	opt := mustOption(t, s, tpl.ID, "Carbonara")
	e := mustEntry(t, s, opt.ID, "2024-11-04", storage.SlotLunch)

	err := s.DeleteMealOption(ctx, opt.ID)
	assert.ErrorIs(t, err, storage.ErrForeignKey, "an option with history cannot be deleted")
	assert.Equal(t, storage.KindForeignKey, storage.KindOf(err))

	err = s.DeleteMealTemplate(ctx, tpl.ID)
	assert.ErrorIs(t, err, storage.ErrForeignKey, "the cascade stops at entries")

	_, err = s.GetMealOption(ctx, opt.ID)
	require.NoError(t, err, "failed delete leaves the option in place")

	require.NoError(t, s.DeleteMealEntry(ctx, e.ID))
	require.NoError(t, s.DeleteMealOption(ctx, opt.ID))
}

// testInTxSerializes runs concurrent check-then-insert transactions against a
// limit of 2; serialization must keep the count at exactly 2.
func testInTxSerializes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := mustTemplate(t, s, "Pasta", ptr(2))
	opt := mustOption(t, s, tpl.ID, "Carbonara")
	day := date(t, "2024-11-06")
	key := week.Key(day)

	errLimit := errors.New("limit reached")

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.InTx(ctx, storage.EntryLock{MealOptionID: opt.ID, Week: key}, func(ctx context.Context, tx storage.Store) error {
				usage, err := tx.GetWeeklyUsage(ctx, opt.ID, key)
				if err != nil {
					return err
				}
				if usage.UsageCount >= 2 {
					return errLimit
				}
				_, err = tx.CreateMealEntry(ctx, storage.MealEntryCreate{
					MealOptionID: opt.ID,
					Date:         day,
					SlotType:     storage.SlotLunch,
					Location:     storage.LocationHome,
					Servings:     1,
				})
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	ok, limited := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errLimit):
			limited++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, workers-2, limited)

	usage, err := s.GetWeeklyUsage(ctx, opt.ID, key)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.UsageCount)

	// a failing fn does not leak its writes where the backend can roll back
	err = s.InTx(ctx, storage.EntryLock{MealOptionID: opt.ID, Week: key}, func(ctx context.Context, tx storage.Store) error {
		return errLimit
	})
	assert.ErrorIs(t, err, errLimit)
}

func templateNames(list []storage.MealTemplate) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Name)
	}
	return out
}

func optionNames(list []storage.MealOption) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		out = append(out, o.Name)
	}
	return out
}

func tagNames(list []storage.Tag) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Name)
	}
	return out
}

func entryIDs(list []storage.MealEntry) []int64 {
	out := make([]int64, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}
