package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

const templateColumns = `id, name, description, compatible_slots, location_type, weekly_limit, created_at, updated_at`

func scanTemplate(row scanner) (storage.MealTemplate, error) {
	var (
		t           storage.MealTemplate
		description sql.NullString
		slotsJSON   string
		location    string
		weeklyLimit sql.NullInt64
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&t.ID, &t.Name, &description, &slotsJSON, &location, &weeklyLimit, &createdAt, &updatedAt); err != nil {
		return storage.MealTemplate{}, err
	}
	if err := json.Unmarshal([]byte(slotsJSON), &t.CompatibleSlots); err != nil {
		return storage.MealTemplate{}, fmt.Errorf("invalid compatible_slots of meal template %d: %w", t.ID, err)
	}
	t.Description = stringPtr(description)
	t.LocationType = storage.LocationType(location)
	t.WeeklyLimit = intPtr(weeklyLimit)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func encodeSlots(slots []storage.SlotType) (string, error) {
	if slots == nil {
		slots = []storage.SlotType{}
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SQLiteStorage) CreateMealTemplate(ctx context.Context, in storage.MealTemplateCreate) (storage.MealTemplate, error) {
	slots, err := encodeSlots(in.CompatibleSlots)
	if err != nil {
		return storage.MealTemplate{}, fmt.Errorf("failed to encode compatible slots: %w", err)
	}

	query := `
		INSERT INTO meal_templates (name, description, compatible_slots, location_type, weekly_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + templateColumns

	now := formatTime(s.now())
	t, err := scanTemplate(s.q.QueryRowContext(ctx, query,
		in.Name,
		nullString(in.Description),
		slots,
		string(in.LocationType),
		nullInt(in.WeeklyLimit),
		now,
		now,
	))
	if err != nil {
		return storage.MealTemplate{}, classify("create meal template", "meal_template", err)
	}
	return t, nil
}

func (s *SQLiteStorage) GetMealTemplate(ctx context.Context, id int64) (storage.MealTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM meal_templates WHERE id = ?`

	t, err := scanTemplate(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MealTemplate{}, storage.NotFound("meal_template", id)
	}
	if err != nil {
		return storage.MealTemplate{}, classify("get meal template", "meal_template", err)
	}
	return t, nil
}

func (s *SQLiteStorage) ListMealTemplates(ctx context.Context) ([]storage.MealTemplate, error) {
	return s.queryTemplates(ctx, "list meal templates",
		`SELECT `+templateColumns+` FROM meal_templates ORDER BY name, id`)
}

// ListMealTemplatesByLocation returns templates usable at location; "any" on
// either side matches.
func (s *SQLiteStorage) ListMealTemplatesByLocation(ctx context.Context, location storage.LocationType) ([]storage.MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_templates
		WHERE ? = 'any' OR location_type = 'any' OR location_type = ?
		ORDER BY name, id
	`
	return s.queryTemplates(ctx, "list meal templates by location", query, string(location), string(location))
}

func (s *SQLiteStorage) ListMealTemplatesBySlot(ctx context.Context, slot storage.SlotType) ([]storage.MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_templates
		WHERE EXISTS (SELECT 1 FROM json_each(meal_templates.compatible_slots) WHERE json_each.value = ?)
		ORDER BY name, id
	`
	return s.queryTemplates(ctx, "list meal templates by slot", query, string(slot))
}

func (s *SQLiteStorage) SearchMealTemplates(ctx context.Context, q string) ([]storage.MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_templates
		WHERE lower(name) LIKE ? ESCAPE '\' OR lower(coalesce(description, '')) LIKE ? ESCAPE '\'
		ORDER BY name, id
	`
	p := likePattern(q)
	return s.queryTemplates(ctx, "search meal templates", query, p, p)
}

func (s *SQLiteStorage) UpdateMealTemplate(ctx context.Context, id int64, upd storage.MealTemplateUpdate) (storage.MealTemplate, error) {
	var out storage.MealTemplate
	err := s.withTx(ctx, "update meal template", func(q dbtx) error {
		cur, err := scanTemplate(q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM meal_templates WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound("meal_template", id)
		}
		if err != nil {
			return classify("update meal template", "meal_template", err)
		}

		if upd.Name != nil {
			cur.Name = *upd.Name
		}
		cur.Description = upd.Description.Apply(cur.Description)
		if upd.CompatibleSlots != nil {
			cur.CompatibleSlots = upd.CompatibleSlots
		}
		if upd.LocationType != nil {
			cur.LocationType = *upd.LocationType
		}
		cur.WeeklyLimit = upd.WeeklyLimit.Apply(cur.WeeklyLimit)

		slots, err := encodeSlots(cur.CompatibleSlots)
		if err != nil {
			return fmt.Errorf("failed to encode compatible slots: %w", err)
		}

		query := `
			UPDATE meal_templates
			SET name = ?, description = ?, compatible_slots = ?, location_type = ?, weekly_limit = ?, updated_at = ?
			WHERE id = ?
			RETURNING ` + templateColumns
		out, err = scanTemplate(q.QueryRowContext(ctx, query,
			cur.Name,
			nullString(cur.Description),
			slots,
			string(cur.LocationType),
			nullInt(cur.WeeklyLimit),
			formatTime(s.now()),
			id,
		))
		if err != nil {
			return classify("update meal template", "meal_template", err)
		}
		return nil
	})
	return out, err
}

func (s *SQLiteStorage) DeleteMealTemplate(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM meal_templates WHERE id = ?`, id)
	if err != nil {
		return classify("delete meal template", "meal_template", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.NotFound("meal_template", id)
	}
	return nil
}

func (s *SQLiteStorage) queryTemplates(ctx context.Context, op, query string, args ...any) ([]storage.MealTemplate, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, "meal_template", err)
	}
	defer rows.Close()

	templates := []storage.MealTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, classify(op, "meal_template", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, "meal_template", err)
	}
	return templates, nil
}
