package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

type fakeEntry struct {
	optionID int64
	date     time.Time
}

type fakeRepo struct {
	templates map[int64]storage.MealTemplate
	options   map[int64]storage.MealOption
	tags      map[int64]storage.Tag
	optTags   map[int64][]int64
	entries   []fakeEntry

	usageErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		templates: map[int64]storage.MealTemplate{},
		options:   map[int64]storage.MealOption{},
		tags:      map[int64]storage.Tag{},
		optTags:   map[int64][]int64{},
	}
}

func (r *fakeRepo) GetMealOption(ctx context.Context, id int64) (storage.MealOption, error) {
	o, ok := r.options[id]
	if !ok {
		return storage.MealOption{}, storage.NotFound("meal_option", id)
	}
	return o, nil
}

func (r *fakeRepo) GetMealTemplate(ctx context.Context, id int64) (storage.MealTemplate, error) {
	t, ok := r.templates[id]
	if !ok {
		return storage.MealTemplate{}, storage.NotFound("meal_template", id)
	}
	return t, nil
}

func (r *fakeRepo) GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error) {
	return r.optTags[optionID], nil
}

func (r *fakeRepo) GetTag(ctx context.Context, id int64) (storage.Tag, error) {
	t, ok := r.tags[id]
	if !ok {
		return storage.Tag{}, storage.NotFound("tag", id)
	}
	return t, nil
}

func (r *fakeRepo) GetWeeklyUsage(ctx context.Context, optionID int64, key string) (storage.WeeklyUsage, error) {
	if r.usageErr != nil {
		return storage.WeeklyUsage{}, r.usageErr
	}
	n := 0
	for _, e := range r.entries {
		if e.optionID == optionID && week.Key(e.date) == key {
			n++
		}
	}
	return storage.WeeklyUsage{MealOptionID: optionID, Week: key, UsageCount: n}, nil
}

func (r *fakeRepo) GetWeeklyTagUsage(ctx context.Context, tagID int64, key string) (storage.WeeklyTagUsage, error) {
	n := 0
	for _, e := range r.entries {
		if week.Key(e.date) != key {
			continue
		}
		for _, id := range r.optTags[e.optionID] {
			if id == tagID {
				n++
			}
		}
	}
	return storage.WeeklyTagUsage{TagID: tagID, TagName: r.tags[tagID].Name, Week: key, UsageCount: n}, nil
}

func (r *fakeRepo) addTemplate(id int64, limit *int, slots ...storage.SlotType) {
	r.templates[id] = storage.MealTemplate{ID: id, Name: "template", CompatibleSlots: slots, LocationType: storage.LocationAny, WeeklyLimit: limit}
}

func (r *fakeRepo) addOption(id, templateID int64, name string, tags ...int64) {
	r.options[id] = storage.MealOption{ID: id, TemplateID: templateID, Name: name}
	r.optTags[id] = tags
}

func (r *fakeRepo) addTag(id int64, name, display string, suggestion *int) {
	r.tags[id] = storage.Tag{ID: id, Name: name, DisplayName: display, Category: storage.TagIngredient, WeeklySuggestion: suggestion}
}

func intPtr(v int) *int { return &v }

var (
	monday    = time.Date(2024, time.November, 4, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2024, time.November, 6, 0, 0, 0, 0, time.UTC)
	nextWeek  = time.Date(2024, time.November, 11, 0, 0, 0, 0, time.UTC)
)

func TestValidateMealEntry_IncompatibleSlot(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, nil, storage.SlotLunch, storage.SlotDinner)
	repo.addOption(10, 1, "Pasta al pomodoro")

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotBreakfast, monday)
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.Equal(t, FailureIncompatibleSlot, res.Failure.Kind)
	assert.Equal(t, "Pasta al pomodoro", res.Failure.OptionName)
	assert.Equal(t, storage.SlotBreakfast, res.Failure.Slot)
	assert.Equal(t, []storage.SlotType{storage.SlotLunch, storage.SlotDinner}, res.Failure.CompatibleSlots)
	assert.Equal(t, "'Pasta al pomodoro' is not compatible with breakfast. Compatible slots: [lunch, dinner]", res.Failure.Message())
}

func TestValidateMealEntry_WeeklyLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, intPtr(2), storage.SlotLunch)
	repo.addOption(10, 1, "Salmone")
	engine := NewEngine(repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := engine.ValidateMealEntry(ctx, 10, storage.SlotLunch, wednesday)
		require.NoError(t, err)
		require.True(t, res.OK(), "entry %d should pass", i+1)
		repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: monday.AddDate(0, 0, i)})
	}

	res, err := engine.ValidateMealEntry(ctx, 10, storage.SlotLunch, wednesday)
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.Equal(t, FailureWeeklyLimitExceeded, res.Failure.Kind)
	assert.Equal(t, "Salmone", res.Failure.ItemName)
	assert.Equal(t, 2, res.Failure.Limit)
	assert.Equal(t, 2, res.Failure.CurrentUsage)
	assert.Equal(t, "Weekly limit exceeded for 'Salmone': 2/2 uses this week", res.Failure.Error())

	res, err = engine.ValidateMealEntry(ctx, 10, storage.SlotLunch, nextWeek)
	require.NoError(t, err)
	assert.True(t, res.OK(), "a new ISO week starts from zero")
}

func TestValidateMealEntry_NoLimitNeverBlocks(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, nil, storage.SlotDinner)
	repo.addOption(10, 1, "Minestrone")
	for i := 0; i < 20; i++ {
		repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: monday})
	}

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotDinner, wednesday)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
}

func TestValidateMealEntry_SlotCheckedBeforeLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, intPtr(1), storage.SlotLunch)
	repo.addOption(10, 1, "Riso")
	repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: monday})

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotDinner, monday)
	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureIncompatibleSlot, res.Failure.Kind)
}

func TestValidateMealEntry_TagSuggestion(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, nil, storage.SlotLunch, storage.SlotDinner)
	repo.addTag(100, "pasta", "Pasta", intPtr(3))
	repo.addOption(10, 1, "Pasta e fagioli", 100)
	for i := 0; i < 3; i++ {
		repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: monday.AddDate(0, 0, i)})
	}

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotLunch, wednesday)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, WarningTagSuggestion, w.Kind)
	assert.Equal(t, int64(100), w.TagID)
	assert.Equal(t, "Pasta", w.TagName)
	assert.Equal(t, 3, w.Suggestion)
	assert.Equal(t, 3, w.CurrentUsage)
	assert.Equal(t, "Tag 'Pasta' suggestion exceeded: 3/3 uses this week", w.Message)
}

func TestValidateMealEntry_TagSuggestionBelowCap(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, nil, storage.SlotLunch)
	repo.addTag(100, "pasta", "Pasta", intPtr(3))
	repo.addOption(10, 1, "Carbonara", 100)
	repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: monday}, fakeEntry{optionID: 10, date: monday})

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotLunch, wednesday)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

func TestValidateMealEntry_TwoTagsAtCap(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, nil, storage.SlotLunch)
	repo.addTag(100, "pasta", "Pasta", intPtr(2))
	repo.addTag(200, "ricotta", "Ricotta", intPtr(1))
	repo.addTag(300, "vegetarian", "Vegetarian", nil)
	repo.addOption(10, 1, "Ravioli ricotta", 200, 300, 100)
	repo.addOption(11, 1, "Lasagne", 100, 200)
	repo.entries = append(repo.entries, fakeEntry{optionID: 11, date: monday}, fakeEntry{optionID: 11, date: wednesday})

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotLunch, wednesday)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "Pasta", res.Warnings[0].TagName)
	assert.Equal(t, 2, res.Warnings[0].CurrentUsage)
	assert.Equal(t, "Ricotta", res.Warnings[1].TagName)
	assert.Equal(t, 2, res.Warnings[1].CurrentUsage)
}

func TestValidateMealEntry_ZeroSuggestionAlwaysWarns(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, nil, storage.SlotDinner)
	repo.addTag(100, "fried", "Fried", intPtr(0))
	repo.addOption(10, 1, "Fritto misto", 100)

	warnings, err := NewEngine(repo).CheckTagSuggestions(context.Background(), 10, monday)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, 0, warnings[0].CurrentUsage)
}

func TestValidateMealEntry_MissingReferences(t *testing.T) {
	repo := newFakeRepo()
	repo.addOption(10, 99, "Orphan")
	engine := NewEngine(repo)
	ctx := context.Background()

	_, err := engine.ValidateMealEntry(ctx, 42, storage.SlotLunch, monday)
	var missing *MissingReferenceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "meal_option", missing.Entity)
	assert.Equal(t, int64(42), missing.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = engine.ValidateMealEntry(ctx, 10, storage.SlotLunch, monday)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "meal_template", missing.Entity)
	assert.Equal(t, int64(99), missing.ID)

	_, err = engine.CheckWeeklyLimit(ctx, 42, monday)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = engine.CheckTagSuggestions(ctx, 42, monday)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValidateMealEntry_StorageErrorIsNotAFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, intPtr(2), storage.SlotLunch)
	repo.addOption(10, 1, "Salmone")
	boom := errors.New("disk I/O error")
	repo.usageErr = boom

	res, err := NewEngine(repo).ValidateMealEntry(context.Background(), 10, storage.SlotLunch, monday)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res.Failure)
}

func TestCheckWeeklyLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, intPtr(1), storage.SlotLunch)
	repo.addOption(10, 1, "Bistecca")
	engine := NewEngine(repo)
	ctx := context.Background()

	f, err := engine.CheckWeeklyLimit(ctx, 10, monday)
	require.NoError(t, err)
	assert.Nil(t, f)

	repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: wednesday})
	f, err = engine.CheckWeeklyLimit(ctx, 10, monday)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 1, f.CurrentUsage)
}

func TestValidateMove(t *testing.T) {
	repo := newFakeRepo()
	repo.addTemplate(1, intPtr(2), storage.SlotLunch, storage.SlotDinner)
	repo.addTag(100, "fish", "Fish", intPtr(2))
	repo.addOption(10, 1, "Salmone", 100)
	repo.addOption(11, 1, "Orata", 100)
	repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: monday}, fakeEntry{optionID: 10, date: wednesday})
	engine := NewEngine(repo)
	ctx := context.Background()

	existing := storage.MealEntry{ID: 1, MealOptionID: 10, Date: monday, SlotType: storage.SlotLunch}

	// Same option, same week: the entry is not counted against itself.
	res, err := engine.ValidateMove(ctx, existing, 10, storage.SlotDinner, wednesday)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)

	// A brand new entry for the same option is blocked.
	res, err = engine.ValidateMealEntry(ctx, 10, storage.SlotDinner, wednesday)
	require.NoError(t, err)
	assert.False(t, res.OK())

	// Switching option keeps the shared tag discounted.
	res, err = engine.ValidateMove(ctx, existing, 11, storage.SlotLunch, wednesday)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)

	// Moving to another week counts everything there.
	repo.entries = append(repo.entries, fakeEntry{optionID: 10, date: nextWeek}, fakeEntry{optionID: 10, date: nextWeek})
	res, err = engine.ValidateMove(ctx, existing, 10, storage.SlotLunch, nextWeek)
	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.Equal(t, 2, res.Failure.CurrentUsage)
}
