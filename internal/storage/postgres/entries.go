package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/week"
)

type entriesStorage struct {
	q    querier
	now  func() time.Time
	tags *tagsStorage
}

func newEntriesStorage(q querier, now func() time.Time, tags *tagsStorage) *entriesStorage {
	return &entriesStorage{q: q, now: now, tags: tags}
}

const entryColumns = `id, meal_option_id, date, slot_type, location, servings, notes, completed, created_at, updated_at`

const entryOrder = `
	ORDER BY date,
		array_position(ARRAY['breakfast', 'morning_snack', 'lunch', 'afternoon_snack', 'dinner']::text[], slot_type),
		id`

func scanEntry(row pgx.Row) (storage.MealEntry, error) {
	var (
		e        storage.MealEntry
		slot     string
		location string
	)
	err := row.Scan(
		&e.ID,
		&e.MealOptionID,
		&e.Date,
		&slot,
		&location,
		&e.Servings,
		&e.Notes,
		&e.Completed,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return storage.MealEntry{}, err
	}
	e.Date = week.Truncate(e.Date)
	e.SlotType = storage.SlotType(slot)
	e.Location = storage.LocationType(location)
	return e, nil
}

func (s *entriesStorage) CreateMealEntry(ctx context.Context, in storage.MealEntryCreate) (storage.MealEntry, error) {
	query := `
		INSERT INTO meal_entries (meal_option_id, date, slot_type, location, servings, notes, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + entryColumns

	e, err := scanEntry(s.q.QueryRow(ctx, query,
		in.MealOptionID,
		week.Truncate(in.Date),
		string(in.SlotType),
		string(in.Location),
		in.Servings,
		in.Notes,
		in.Completed,
		s.now(),
	))
	if err != nil {
		return storage.MealEntry{}, classify("create meal entry", "meal_entry", err)
	}
	return e, nil
}

func (s *entriesStorage) GetMealEntry(ctx context.Context, id int64) (storage.MealEntry, error) {
	e, err := scanEntry(s.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM meal_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.MealEntry{}, storage.NotFound("meal_entry", id)
	}
	if err != nil {
		return storage.MealEntry{}, classify("get meal entry", "meal_entry", err)
	}
	return e, nil
}

func (s *entriesStorage) ListMealEntriesByDate(ctx context.Context, date time.Time) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by date",
		`SELECT `+entryColumns+` FROM meal_entries WHERE date = $1`+entryOrder, week.Truncate(date))
}

func (s *entriesStorage) ListMealEntriesByDateRange(ctx context.Context, start, end time.Time) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by date range",
		`SELECT `+entryColumns+` FROM meal_entries WHERE date BETWEEN $1 AND $2`+entryOrder,
		week.Truncate(start), week.Truncate(end))
}

func (s *entriesStorage) ListMealEntriesByDateAndSlot(ctx context.Context, date time.Time, slot storage.SlotType) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by date and slot",
		`SELECT `+entryColumns+` FROM meal_entries WHERE date = $1 AND slot_type = $2`+entryOrder,
		week.Truncate(date), string(slot))
}

func (s *entriesStorage) ListMealEntriesByCompleted(ctx context.Context, completed bool) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by completion",
		`SELECT `+entryColumns+` FROM meal_entries WHERE completed = $1`+entryOrder, completed)
}

func (s *entriesStorage) ListMealEntriesByOption(ctx context.Context, optionID int64) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by option",
		`SELECT `+entryColumns+` FROM meal_entries WHERE meal_option_id = $1`+entryOrder, optionID)
}

func (s *entriesStorage) UpdateMealEntry(ctx context.Context, id int64, upd storage.MealEntryUpdate) (storage.MealEntry, error) {
	var out storage.MealEntry
	err := inTx(ctx, s.q, "update meal entry", func(tx pgx.Tx) error {
		cur, err := scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM meal_entries WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.NotFound("meal_entry", id)
		}
		if err != nil {
			return classify("update meal entry", "meal_entry", err)
		}

		if upd.MealOptionID != nil {
			cur.MealOptionID = *upd.MealOptionID
		}
		if upd.Date != nil {
			cur.Date = week.Truncate(*upd.Date)
		}
		if upd.SlotType != nil {
			cur.SlotType = *upd.SlotType
		}
		if upd.Location != nil {
			cur.Location = *upd.Location
		}
		if upd.Servings != nil {
			cur.Servings = *upd.Servings
		}
		cur.Notes = upd.Notes.Apply(cur.Notes)
		if upd.Completed != nil {
			cur.Completed = *upd.Completed
		}

		query := `
			UPDATE meal_entries
			SET meal_option_id = $2, date = $3, slot_type = $4, location = $5, servings = $6, notes = $7, completed = $8, updated_at = $9
			WHERE id = $1
			RETURNING ` + entryColumns
		out, err = scanEntry(tx.QueryRow(ctx, query,
			id,
			cur.MealOptionID,
			cur.Date,
			string(cur.SlotType),
			string(cur.Location),
			cur.Servings,
			cur.Notes,
			cur.Completed,
			s.now(),
		))
		if err != nil {
			return classify("update meal entry", "meal_entry", err)
		}
		return nil
	})
	return out, err
}

func (s *entriesStorage) DeleteMealEntry(ctx context.Context, id int64) error {
	result, err := s.q.Exec(ctx, `DELETE FROM meal_entries WHERE id = $1`, id)
	if err != nil {
		return classify("delete meal entry", "meal_entry", err)
	}
	if result.RowsAffected() == 0 {
		return storage.NotFound("meal_entry", id)
	}
	return nil
}

func (s *entriesStorage) GetWeeklyUsage(ctx context.Context, optionID int64, weekKey string) (storage.WeeklyUsage, error) {
	usage := storage.WeeklyUsage{MealOptionID: optionID, Week: weekKey}
	err := s.q.QueryRow(ctx,
		`SELECT usage_count FROM weekly_meal_usage WHERE meal_option_id = $1 AND week = $2`,
		optionID, weekKey,
	).Scan(&usage.UsageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return storage.WeeklyUsage{}, classify("get weekly usage", "meal_entry", err)
	}
	return usage, nil
}

func (s *entriesStorage) GetWeeklyTagUsage(ctx context.Context, tagID int64, weekKey string) (storage.WeeklyTagUsage, error) {
	tag, err := s.tags.GetTag(ctx, tagID)
	if err != nil {
		return storage.WeeklyTagUsage{}, err
	}

	usage := storage.WeeklyTagUsage{TagID: tagID, TagName: tag.Name, Week: weekKey}
	err = s.q.QueryRow(ctx,
		`SELECT usage_count FROM weekly_tag_usage WHERE tag_id = $1 AND week = $2`,
		tagID, weekKey,
	).Scan(&usage.UsageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return storage.WeeklyTagUsage{}, classify("get weekly tag usage", "tag", err)
	}
	return usage, nil
}

func (s *entriesStorage) queryEntries(ctx context.Context, op, query string, args ...any) ([]storage.MealEntry, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, "meal_entry", err)
	}
	defer rows.Close()

	entries := []storage.MealEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, classify(op, "meal_entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, "meal_entry", err)
	}
	return entries, nil
}
