package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

const entryColumns = `id, meal_option_id, date, slot_type, location, servings, notes, completed, created_at, updated_at`

// entryOrder sorts by date, then by the natural order of the day's slots.
const entryOrder = `
	ORDER BY date,
		CASE slot_type
			WHEN 'breakfast' THEN 1
			WHEN 'morning_snack' THEN 2
			WHEN 'lunch' THEN 3
			WHEN 'afternoon_snack' THEN 4
			WHEN 'dinner' THEN 5
			ELSE 6
		END,
		id`

func scanEntry(row scanner) (storage.MealEntry, error) {
	var (
		e         storage.MealEntry
		date      string
		slot      string
		location  string
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&e.ID, &e.MealOptionID, &date, &slot, &location, &e.Servings, &notes, &e.Completed, &createdAt, &updatedAt); err != nil {
		return storage.MealEntry{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return storage.MealEntry{}, err
	}
	e.Date = d
	e.SlotType = storage.SlotType(slot)
	e.Location = storage.LocationType(location)
	e.Notes = stringPtr(notes)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (s *SQLiteStorage) CreateMealEntry(ctx context.Context, in storage.MealEntryCreate) (storage.MealEntry, error) {
	query := `
		INSERT INTO meal_entries (meal_option_id, date, slot_type, location, servings, notes, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + entryColumns

	now := formatTime(s.now())
	e, err := scanEntry(s.q.QueryRowContext(ctx, query,
		in.MealOptionID,
		formatDate(in.Date),
		string(in.SlotType),
		string(in.Location),
		in.Servings,
		nullString(in.Notes),
		in.Completed,
		now,
		now,
	))
	if err != nil {
		return storage.MealEntry{}, classify("create meal entry", "meal_entry", err)
	}
	return e, nil
}

func (s *SQLiteStorage) GetMealEntry(ctx context.Context, id int64) (storage.MealEntry, error) {
	e, err := scanEntry(s.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM meal_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MealEntry{}, storage.NotFound("meal_entry", id)
	}
	if err != nil {
		return storage.MealEntry{}, classify("get meal entry", "meal_entry", err)
	}
	return e, nil
}

func (s *SQLiteStorage) ListMealEntriesByDate(ctx context.Context, date time.Time) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by date",
		`SELECT `+entryColumns+` FROM meal_entries WHERE date = ?`+entryOrder, formatDate(date))
}

func (s *SQLiteStorage) ListMealEntriesByDateRange(ctx context.Context, start, end time.Time) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by date range",
		`SELECT `+entryColumns+` FROM meal_entries WHERE date BETWEEN ? AND ?`+entryOrder,
		formatDate(start), formatDate(end))
}

func (s *SQLiteStorage) ListMealEntriesByDateAndSlot(ctx context.Context, date time.Time, slot storage.SlotType) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by date and slot",
		`SELECT `+entryColumns+` FROM meal_entries WHERE date = ? AND slot_type = ?`+entryOrder,
		formatDate(date), string(slot))
}

func (s *SQLiteStorage) ListMealEntriesByCompleted(ctx context.Context, completed bool) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by completion",
		`SELECT `+entryColumns+` FROM meal_entries WHERE completed = ?`+entryOrder, completed)
}

func (s *SQLiteStorage) ListMealEntriesByOption(ctx context.Context, optionID int64) ([]storage.MealEntry, error) {
	return s.queryEntries(ctx, "list meal entries by option",
		`SELECT `+entryColumns+` FROM meal_entries WHERE meal_option_id = ?`+entryOrder, optionID)
}

func (s *SQLiteStorage) UpdateMealEntry(ctx context.Context, id int64, upd storage.MealEntryUpdate) (storage.MealEntry, error) {
	var out storage.MealEntry
	err := s.withTx(ctx, "update meal entry", func(q dbtx) error {
		cur, err := scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM meal_entries WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound("meal_entry", id)
		}
		if err != nil {
			return classify("update meal entry", "meal_entry", err)
		}

		if upd.MealOptionID != nil {
			cur.MealOptionID = *upd.MealOptionID
		}
		if upd.Date != nil {
			cur.Date = *upd.Date
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
			SET meal_option_id = ?, date = ?, slot_type = ?, location = ?, servings = ?, notes = ?, completed = ?, updated_at = ?
			WHERE id = ?
			RETURNING ` + entryColumns
		out, err = scanEntry(q.QueryRowContext(ctx, query,
			cur.MealOptionID,
			formatDate(cur.Date),
			string(cur.SlotType),
			string(cur.Location),
			cur.Servings,
			nullString(cur.Notes),
			cur.Completed,
			formatTime(s.now()),
			id,
		))
		if err != nil {
			return classify("update meal entry", "meal_entry", err)
		}
		return nil
	})
	return out, err
}

func (s *SQLiteStorage) DeleteMealEntry(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM meal_entries WHERE id = ?`, id)
	if err != nil {
		return classify("delete meal entry", "meal_entry", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.NotFound("meal_entry", id)
	}
	return nil
}

func (s *SQLiteStorage) GetWeeklyUsage(ctx context.Context, optionID int64, week string) (storage.WeeklyUsage, error) {
	usage := storage.WeeklyUsage{MealOptionID: optionID, Week: week}
	err := s.q.QueryRowContext(ctx,
		`SELECT usage_count FROM weekly_meal_usage WHERE meal_option_id = ? AND week = ?`,
		optionID, week,
	).Scan(&usage.UsageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return storage.WeeklyUsage{}, classify("get weekly usage", "meal_entry", err)
	}
	return usage, nil
}

func (s *SQLiteStorage) GetWeeklyTagUsage(ctx context.Context, tagID int64, week string) (storage.WeeklyTagUsage, error) {
	tag, err := s.GetTag(ctx, tagID)
	if err != nil {
		return storage.WeeklyTagUsage{}, err
	}

	usage := storage.WeeklyTagUsage{TagID: tagID, TagName: tag.Name, Week: week}
	err = s.q.QueryRowContext(ctx,
		`SELECT usage_count FROM weekly_tag_usage WHERE tag_id = ? AND week = ?`,
		tagID, week,
	).Scan(&usage.UsageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return storage.WeeklyTagUsage{}, classify("get weekly tag usage", "tag", err)
	}
	return usage, nil
}

func (s *SQLiteStorage) queryEntries(ctx context.Context, op, query string, args ...any) ([]storage.MealEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
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
