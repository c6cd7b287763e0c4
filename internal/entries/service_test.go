package entries

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/dbmigrate"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/storage/memory"
	"github.com/valerioformato/nutrition-helper/internal/storage/sqlite"
	"github.com/valerioformato/nutrition-helper/internal/validation"
)

func intPtr(v int) *int                            { return &v }
func strPtr(v string) *string                      { return &v }
func floatPtr(v float64) *float64                  { return &v }
func slotPtr(v storage.SlotType) *storage.SlotType { return &v }

type seed struct {
	pasta    storage.MealOption // lunch/dinner, home, limit 2, tagged "pasta"
	salad    storage.MealOption // lunch, any, no limit
	pastaTag storage.Tag        // suggestion 1
}

func seedStore(t *testing.T, store storage.Store) seed {
	t.Helper()
	ctx := context.Background()

	pastaTmpl, err := store.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Pasta dish",
		CompatibleSlots: []storage.SlotType{storage.SlotLunch, storage.SlotDinner},
		LocationType:    storage.LocationHome,
		WeeklyLimit:     intPtr(2),
	})
	require.NoError(t, err)
	saladTmpl, err := store.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            "Salad",
		CompatibleSlots: []storage.SlotType{storage.SlotLunch},
		LocationType:    storage.LocationAny,
	})
	require.NoError(t, err)

	pasta, err := store.CreateMealOption(ctx, storage.MealOptionCreate{TemplateID: pastaTmpl.ID, Name: "Carbonara"})
	require.NoError(t, err)
	salad, err := store.CreateMealOption(ctx, storage.MealOptionCreate{TemplateID: saladTmpl.ID, Name: "Greek salad"})
	require.NoError(t, err)

	tag, err := store.CreateTag(ctx, storage.TagCreate{Name: "pasta", DisplayName: "Pasta", Category: storage.TagIngredient, WeeklySuggestion: intPtr(1)})
	require.NoError(t, err)
	require.NoError(t, store.SetOptionTags(ctx, pasta.ID, []int64{tag.ID}))

	return seed{pasta: pasta, salad: salad, pastaTag: tag}
}

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	dbmigrate.SetLogger(goose.NopLogger())
	ctx := context.Background()

	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "meals.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, dbmigrate.Migrate(ctx, s.DB(), dbmigrate.DialectSQLite, "up"))
	return s
}

func TestCreateDefaultsAndWarnings(t *testing.T) {
	store := memory.New()
	s := seedStore(t, store)
	svc := NewService(store)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-04", SlotType: storage.SlotLunch, Location: storage.LocationHome})
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.Entry.Servings)
	assert.False(t, first.Entry.Completed)
	assert.Equal(t, "2024-45", first.Entry.Week)
	assert.Empty(t, first.Warnings)

	// Second use hits the tag suggestion of 1 and is logged at the office.
	second, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-06", SlotType: storage.SlotDinner, Location: storage.LocationOffice})
	require.NoError(t, err)
	require.Len(t, second.Warnings, 2)
	assert.Equal(t, validation.WarningTagSuggestion, second.Warnings[0].Kind)
	assert.Equal(t, "Tag 'Pasta' suggestion exceeded: 1/1 uses this week", second.Warnings[0].Message)
	assert.Equal(t, validation.WarningLocation, second.Warnings[1].Kind)
}

func TestCreateRejectsRuleViolations(t *testing.T) {
	store := memory.New()
	s := seedStore(t, store)
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-04", SlotType: storage.SlotBreakfast, Location: storage.LocationHome})
	rejected, ok := AsRejected(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, validation.FailureIncompatibleSlot, rejected.Failure.Kind)

	for _, date := range []string{"2024-11-04", "2024-11-05"} {
		_, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: date, SlotType: storage.SlotLunch, Location: storage.LocationHome})
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-10", SlotType: storage.SlotLunch, Location: storage.LocationHome})
	rejected, ok = AsRejected(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Business validation error: Weekly limit exceeded for 'Carbonara': 2/2 uses this week", err.Error())
	assert.Equal(t, 2, rejected.Failure.CurrentUsage)

	// The next ISO week starts from zero.
	_, err = svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-11", SlotType: storage.SlotLunch, Location: storage.LocationHome})
	assert.NoError(t, err)

	// Skipping validation bypasses the limit but not the foreign key.
	_, err = svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-06", SlotType: storage.SlotBreakfast, Location: storage.LocationHome, SkipValidation: true})
	assert.NoError(t, err)
	_, err = svc.Create(ctx, CreateEntryRequest{MealOptionID: 999, Date: "2024-11-06", SlotType: storage.SlotLunch, Location: storage.LocationHome, SkipValidation: true})
	assert.ErrorIs(t, err, storage.ErrForeignKey)
}

func TestCreateInputValidation(t *testing.T) {
	store := memory.New()
	s := seedStore(t, store)
	svc := NewService(store)
	ctx := context.Background()

	base := CreateEntryRequest{MealOptionID: s.salad.ID, Date: "2024-11-04", SlotType: storage.SlotLunch, Location: storage.LocationAny}
	cases := map[string]func(r *CreateEntryRequest){
		"bad date":      func(r *CreateEntryRequest) { r.Date = "04/11/2024" },
		"bad slot":      func(r *CreateEntryRequest) { r.SlotType = "brunch" },
		"bad location":  func(r *CreateEntryRequest) { r.Location = "car" },
		"zero servings": func(r *CreateEntryRequest) { r.Servings = floatPtr(0) },
		"no option":     func(r *CreateEntryRequest) { r.MealOptionID = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := svc.Create(ctx, req)
			_, ok := storage.AsValidationError(err)
			assert.True(t, ok, "got %v", err)
		})
	}

	_, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: 999, Date: "2024-11-04", SlotType: storage.SlotLunch, Location: storage.LocationAny})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateMovesWithoutCountingItself(t *testing.T) {
	store := memory.New()
	s := seedStore(t, store)
	svc := NewService(store)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-04", SlotType: storage.SlotLunch, Location: storage.LocationHome})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-05", SlotType: storage.SlotLunch, Location: storage.LocationHome})
	require.NoError(t, err)

	// At the limit, moving an entry inside the same week is still allowed.
	moved, err := svc.Update(ctx, a.Entry.ID, UpdateEntryRequest{Date: strPtr("2024-11-08"), SlotType: slotPtr(storage.SlotDinner)})
	require.NoError(t, err)
	assert.Equal(t, "2024-11-08", moved.Entry.Date)
	assert.Equal(t, storage.SlotDinner, moved.Entry.SlotType)

	// Moving to an incompatible slot is rejected and leaves the entry alone.
	_, err = svc.Update(ctx, a.Entry.ID, UpdateEntryRequest{SlotType: slotPtr(storage.SlotBreakfast)})
	_, ok := AsRejected(err)
	assert.True(t, ok, "got %v", err)
	got, err := svc.Get(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.SlotDinner, got.SlotType)

	// Notes and servings do not trigger validation.
	updated, err := svc.Update(ctx, a.Entry.ID, UpdateEntryRequest{Notes: storage.Set("extra cheese"), Servings: floatPtr(1.5)})
	require.NoError(t, err)
	assert.Equal(t, "extra cheese", *updated.Entry.Notes)
	assert.Equal(t, 1.5, updated.Entry.Servings)

	done, err := svc.SetCompleted(ctx, a.Entry.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	completed, err := svc.ListByCompleted(ctx, true)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestUpdateSwitchingOptionChecksTargetLimit(t *testing.T) {
	store := memory.New()
	s := seedStore(t, store)
	svc := NewService(store)
	ctx := context.Background()

	for _, date := range []string{"2024-11-04", "2024-11-05"} {
		_, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: date, SlotType: storage.SlotLunch, Location: storage.LocationHome})
		require.NoError(t, err)
	}
	salad, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.salad.ID, Date: "2024-11-06", SlotType: storage.SlotLunch, Location: storage.LocationAny})
	require.NoError(t, err)

	_, err = svc.Update(ctx, salad.Entry.ID, UpdateEntryRequest{MealOptionID: &s.pasta.ID})
	rejected, ok := AsRejected(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, validation.FailureWeeklyLimitExceeded, rejected.Failure.Kind)

	_, err = svc.Update(ctx, 999, UpdateEntryRequest{Completed: new(bool)})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListsAndUsage(t *testing.T) {
	store := memory.New()
	s := seedStore(t, store)
	svc := NewService(store)
	ctx := context.Background()

	for _, req := range []CreateEntryRequest{
		{MealOptionID: s.salad.ID, Date: "2024-12-30", SlotType: storage.SlotLunch, Location: storage.LocationAny},
		{MealOptionID: s.pasta.ID, Date: "2024-12-30", SlotType: storage.SlotDinner, Location: storage.LocationHome},
		{MealOptionID: s.pasta.ID, Date: "2025-01-05", SlotType: storage.SlotLunch, Location: storage.LocationHome, SkipValidation: true},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	day, err := svc.ListByDate(ctx, "2024-12-30")
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, storage.SlotLunch, day[0].SlotType)
	assert.Equal(t, storage.SlotDinner, day[1].SlotType)

	rng, err := svc.ListByDateRange(ctx, "2024-12-30", "2025-01-05")
	require.NoError(t, err)
	assert.Len(t, rng, 3)

	_, err = svc.ListByDateRange(ctx, "2025-01-05", "2024-12-30")
	_, ok := storage.AsValidationError(err)
	assert.True(t, ok)

	dinner, err := svc.ListByDateAndSlot(ctx, "2024-12-30", storage.SlotDinner)
	require.NoError(t, err)
	assert.Len(t, dinner, 1)

	byOption, err := svc.ListByOption(ctx, s.pasta.ID)
	require.NoError(t, err)
	assert.Len(t, byOption, 2)

	usage, err := svc.WeeklyUsage(ctx, s.pasta.ID, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, usage.UsageCount)
	assert.Equal(t, 2, *usage.WeeklyLimit)

	tagUsage, err := svc.WeeklyTagUsage(ctx, s.pastaTag.ID, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, tagUsage.UsageCount)
	assert.Equal(t, "pasta", tagUsage.TagName)

	_, err = svc.WeeklyUsage(ctx, s.pasta.ID, "2025-1")
	_, ok = storage.AsValidationError(err)
	assert.True(t, ok)

	_, err = svc.WeeklyTagUsage(ctx, 999, "2025-01")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	res, err := svc.Validate(ctx, s.pasta.ID, storage.SlotLunch, "2025-01-01")
	require.NoError(t, err)
	assert.False(t, res.OK())
}

func TestConcurrentCreatesRespectLimit(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Store{
		"memory": func(t *testing.T) storage.Store { return memory.New() },
		"sqlite": newSQLiteStore,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			s := seedStore(t, store)
			svc := NewService(store)
			ctx := context.Background()

			const workers = 8
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				ok       int
				rejected int
				other    []error
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Create(ctx, CreateEntryRequest{MealOptionID: s.pasta.ID, Date: "2024-11-06", SlotType: storage.SlotLunch, Location: storage.LocationHome})
					mu.Lock()
					defer mu.Unlock()
					var r *RejectedError
					switch {
					case err == nil:
						ok++
					case errors.As(err, &r):
						rejected++
					default:
						other = append(other, err)
					}
				}()
			}
			wg.Wait()

			require.Empty(t, other)
			assert.Equal(t, 2, ok)
			assert.Equal(t, workers-2, rejected)

			usage, err := svc.WeeklyUsage(ctx, s.pasta.ID, "2024-45")
			require.NoError(t, err)
			assert.Equal(t, 2, usage.UsageCount)
		})
	}
}
