package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// MemoryStorage — in-memory реализация storage.Store.
// Foreign keys and unique names are enforced like in the SQL backends.
type MemoryStorage struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	templates map[int64]*storage.MealTemplate
	options   map[int64]*storage.MealOption
	tags      map[int64]*storage.Tag
	entries   map[int64]*storage.MealEntry
	optTags   map[int64]map[int64]struct{} // option_id -> set of tag_id

	nextID int64
	now    func() time.Time
}

var _ storage.Store = (*MemoryStorage)(nil)

// New создаёт пустой MemoryStorage
func New() *MemoryStorage {
	return &MemoryStorage{
		templates: make(map[int64]*storage.MealTemplate),
		options:   make(map[int64]*storage.MealOption),
		tags:      make(map[int64]*storage.Tag),
		entries:   make(map[int64]*storage.MealEntry),
		optTags:   make(map[int64]map[int64]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InTx serializes fn against every other InTx call. Writes made by fn are not
// rolled back when it fails.
func (m *MemoryStorage) InTx(ctx context.Context, lock storage.EntryLock, fn func(ctx context.Context, tx storage.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, m)
}

func (m *MemoryStorage) Close() error {
	return nil
}

// Helper methods (must be called with lock held)
func (m *MemoryStorage) newIDLocked() int64 {
	m.nextID++
	return m.nextID
}

func containsFold(s *string, q string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), q)
}

func cloneTemplate(t *storage.MealTemplate) storage.MealTemplate {
	out := *t
	out.CompatibleSlots = append([]storage.SlotType(nil), t.CompatibleSlots...)
	return out
}

func sortTemplates(list []storage.MealTemplate) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

func sortOptions(list []storage.MealOption) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

func sortTags(list []storage.Tag) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

// sortEntries orders by date, slot of the day, then id.
func sortEntries(list []storage.MealEntry) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.SlotType.Order() != b.SlotType.Order() {
			return a.SlotType.Order() < b.SlotType.Order()
		}
		return a.ID < b.ID
	})
}
