package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

type templatesStorage struct {
	q   querier
	now func() time.Time
}

func newTemplatesStorage(q querier, now func() time.Time) *templatesStorage {
	return &templatesStorage{q: q, now: now}
}

const templateColumns = `id, name, description, compatible_slots, location_type, weekly_limit, created_at, updated_at`

func scanTemplate(row pgx.Row) (storage.MealTemplate, error) {
	var (
		t         storage.MealTemplate
		slotsJSON []byte
		location  string
	)
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&slotsJSON,
		&location,
		&t.WeeklyLimit,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return storage.MealTemplate{}, err
	}
	if len(slotsJSON) > 0 {
		if err := json.Unmarshal(slotsJSON, &t.CompatibleSlots); err != nil {
			return storage.MealTemplate{}, fmt.Errorf("invalid compatible_slots of meal template %d: %w", t.ID, err)
		}
	}
	t.LocationType = storage.LocationType(location)
	return t, nil
}

func encodeSlots(slots []storage.SlotType) (string, error) {
	if slots == nil {
		slots = []storage.SlotType{}
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("failed to encode compatible slots: %w", err)
	}
	return string(b), nil
}

func (s *templatesStorage) CreateMealTemplate(ctx context.Context, in storage.MealTemplateCreate) (storage.MealTemplate, error) {
	slots, err := encodeSlots(in.CompatibleSlots)
	if err != nil {
		return storage.MealTemplate{}, err
	}

	query := `
		INSERT INTO meal_templates (name, description, compatible_slots, location_type, weekly_limit, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $6)
		RETURNING ` + templateColumns

	t, err := scanTemplate(s.q.QueryRow(ctx, query,
		in.Name,
		in.Description,
		slots,
		string(in.LocationType),
		in.WeeklyLimit,
		s.now(),
	))
	if err != nil {
		return storage.MealTemplate{}, classify("create meal template", "meal_template", err)
	}
	return t, nil
}

func (s *templatesStorage) GetMealTemplate(ctx context.Context, id int64) (storage.MealTemplate, error) {
	t, err := scanTemplate(s.q.QueryRow(ctx, `SELECT `+templateColumns+` FROM meal_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.MealTemplate{}, storage.NotFound("meal_template", id)
	}
	if err != nil {
		return storage.MealTemplate{}, classify("get meal template", "meal_template", err)
	}
	return t, nil
}

func (s *templatesStorage) ListMealTemplates(ctx context.Context) ([]storage.MealTemplate, error) {
	return s.queryTemplates(ctx, "list meal templates", `SELECT `+templateColumns+` FROM meal_templates ORDER BY name, id`)
}

func (s *templatesStorage) ListMealTemplatesByLocation(ctx context.Context, location storage.LocationType) ([]storage.MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_templates
		WHERE $1 = 'any' OR location_type = 'any' OR location_type = $1
		ORDER BY name, id
	`
	return s.queryTemplates(ctx, "list meal templates by location", query, string(location))
}

func (s *templatesStorage) ListMealTemplatesBySlot(ctx context.Context, slot storage.SlotType) ([]storage.MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_templates
		WHERE compatible_slots ? $1::text
		ORDER BY name, id
	`
	return s.queryTemplates(ctx, "list meal templates by slot", query, string(slot))
}

func (s *templatesStorage) SearchMealTemplates(ctx context.Context, q string) ([]storage.MealTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM meal_templates
		WHERE name ILIKE $1 OR coalesce(description, '') ILIKE $1
		ORDER BY name, id
	`
	return s.queryTemplates(ctx, "search meal templates", query, likePattern(q))
}

func (s *templatesStorage) UpdateMealTemplate(ctx context.Context, id int64, upd storage.MealTemplateUpdate) (storage.MealTemplate, error) {
	var out storage.MealTemplate
	err := inTx(ctx, s.q, "update meal template", func(tx pgx.Tx) error {
		cur, err := scanTemplate(tx.QueryRow(ctx, `SELECT `+templateColumns+` FROM meal_templates WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
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
			return err
		}

		query := `
			UPDATE meal_templates
			SET name = $2, description = $3, compatible_slots = $4::jsonb, location_type = $5, weekly_limit = $6, updated_at = $7
			WHERE id = $1
			RETURNING ` + templateColumns
		out, err = scanTemplate(tx.QueryRow(ctx, query,
			id,
			cur.Name,
			cur.Description,
			slots,
			string(cur.LocationType),
			cur.WeeklyLimit,
			s.now(),
		))
		if err != nil {
			return classify("update meal template", "meal_template", err)
		}
		return nil
	})
	return out, err
}

func (s *templatesStorage) DeleteMealTemplate(ctx context.Context, id int64) error {
	result, err := s.q.Exec(ctx, `DELETE FROM meal_templates WHERE id = $1`, id)
	if err != nil {
		return classify("delete meal template", "meal_template", err)
	}
	if result.RowsAffected() == 0 {
		return storage.NotFound("meal_template", id)
	}
	return nil
}

func (s *templatesStorage) queryTemplates(ctx context.Context, op, query string, args ...any) ([]storage.MealTemplate, error) {
	rows, err := s.q.Query(ctx, query, args...)
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
