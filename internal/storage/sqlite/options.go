package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

const optionColumns = `id, template_id, name, description, nutritional_notes, created_at, updated_at`

func scanOption(row scanner) (storage.MealOption, error) {
	var (
		o                storage.MealOption
		description      sql.NullString
		nutritionalNotes sql.NullString
		createdAt        string
		updatedAt        string
	)
	if err := row.Scan(&o.ID, &o.TemplateID, &o.Name, &description, &nutritionalNotes, &createdAt, &updatedAt); err != nil {
		return storage.MealOption{}, err
	}
	o.Description = stringPtr(description)
	o.NutritionalNotes = stringPtr(nutritionalNotes)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return o, nil
}

func (s *SQLiteStorage) CreateMealOption(ctx context.Context, in storage.MealOptionCreate) (storage.MealOption, error) {
	query := `
		INSERT INTO meal_options (template_id, name, description, nutritional_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + optionColumns

	now := formatTime(s.now())
	o, err := scanOption(s.q.QueryRowContext(ctx, query,
		in.TemplateID,
		in.Name,
		nullString(in.Description),
		nullString(in.NutritionalNotes),
		now,
		now,
	))
	if err != nil {
		return storage.MealOption{}, classify("create meal option", "meal_option", err)
	}
	return o, nil
}

func (s *SQLiteStorage) GetMealOption(ctx context.Context, id int64) (storage.MealOption, error) {
	o, err := scanOption(s.q.QueryRowContext(ctx, `SELECT `+optionColumns+` FROM meal_options WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MealOption{}, storage.NotFound("meal_option", id)
	}
	if err != nil {
		return storage.MealOption{}, classify("get meal option", "meal_option", err)
	}
	return o, nil
}

func (s *SQLiteStorage) GetMealOptionWithTags(ctx context.Context, id int64) (storage.MealOptionWithTags, error) {
	o, err := s.GetMealOption(ctx, id)
	if err != nil {
		return storage.MealOptionWithTags{}, err
	}
	tagIDs, err := s.tagIDs(ctx, id)
	if err != nil {
		return storage.MealOptionWithTags{}, err
	}
	return storage.MealOptionWithTags{MealOption: o, TagIDs: tagIDs}, nil
}

func (s *SQLiteStorage) ListMealOptions(ctx context.Context) ([]storage.MealOption, error) {
	return s.queryOptions(ctx, "list meal options", `SELECT `+optionColumns+` FROM meal_options ORDER BY name, id`)
}

func (s *SQLiteStorage) ListMealOptionsByTemplate(ctx context.Context, templateID int64) ([]storage.MealOption, error) {
	return s.queryOptions(ctx, "list meal options by template",
		`SELECT `+optionColumns+` FROM meal_options WHERE template_id = ? ORDER BY name, id`, templateID)
}

func (s *SQLiteStorage) SearchMealOptions(ctx context.Context, q string) ([]storage.MealOption, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM meal_options
		WHERE lower(name) LIKE ? ESCAPE '\'
		   OR lower(coalesce(description, '')) LIKE ? ESCAPE '\'
		   OR lower(coalesce(nutritional_notes, '')) LIKE ? ESCAPE '\'
		ORDER BY name, id
	`
	p := likePattern(q)
	return s.queryOptions(ctx, "search meal options", query, p, p, p)
}

func (s *SQLiteStorage) UpdateMealOption(ctx context.Context, id int64, upd storage.MealOptionUpdate) (storage.MealOption, error) {
	var out storage.MealOption
	err := s.withTx(ctx, "update meal option", func(q dbtx) error {
		cur, err := scanOption(q.QueryRowContext(ctx, `SELECT `+optionColumns+` FROM meal_options WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound("meal_option", id)
		}
		if err != nil {
			return classify("update meal option", "meal_option", err)
		}

		if upd.Name != nil {
			cur.Name = *upd.Name
		}
		cur.Description = upd.Description.Apply(cur.Description)
		cur.NutritionalNotes = upd.NutritionalNotes.Apply(cur.NutritionalNotes)

		query := `
			UPDATE meal_options
			SET name = ?, description = ?, nutritional_notes = ?, updated_at = ?
			WHERE id = ?
			RETURNING ` + optionColumns
		out, err = scanOption(q.QueryRowContext(ctx, query,
			cur.Name,
			nullString(cur.Description),
			nullString(cur.NutritionalNotes),
			formatTime(s.now()),
			id,
		))
		if err != nil {
			return classify("update meal option", "meal_option", err)
		}
		return nil
	})
	return out, err
}

func (s *SQLiteStorage) DeleteMealOption(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM meal_options WHERE id = ?`, id)
	if err != nil {
		return classify("delete meal option", "meal_option", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.NotFound("meal_option", id)
	}
	return nil
}

func (s *SQLiteStorage) GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error) {
	if _, err := s.GetMealOption(ctx, optionID); err != nil {
		return nil, err
	}
	return s.tagIDs(ctx, optionID)
}

func (s *SQLiteStorage) AddOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	return s.withTx(ctx, "add meal option tags", func(q dbtx) error {
		return insertOptionTags(ctx, q, "add meal option tags", optionID, tagIDs)
	})
}

func (s *SQLiteStorage) RemoveOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(tagIDs)+1)
	args = append(args, optionID)
	for _, id := range tagIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`DELETE FROM meal_option_tags WHERE meal_option_id = ? AND tag_id IN (%s)`, placeholders(len(tagIDs)))
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return classify("remove meal option tags", "meal_option_tag", err)
	}
	return nil
}

func (s *SQLiteStorage) SetOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	return s.withTx(ctx, "set meal option tags", func(q dbtx) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM meal_option_tags WHERE meal_option_id = ?`, optionID); err != nil {
			return classify("set meal option tags", "meal_option_tag", err)
		}
		return insertOptionTags(ctx, q, "set meal option tags", optionID, tagIDs)
	})
}

func insertOptionTags(ctx context.Context, q dbtx, op string, optionID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO meal_option_tags (meal_option_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			optionID, tagID)
		if err != nil {
			return classify(op, "meal_option_tag", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) tagIDs(ctx context.Context, optionID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT tag_id FROM meal_option_tags WHERE meal_option_id = ? ORDER BY tag_id`, optionID)
	if err != nil {
		return nil, classify("get meal option tags", "meal_option_tag", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify("get meal option tags", "meal_option_tag", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("get meal option tags", "meal_option_tag", err)
	}
	return ids, nil
}

func (s *SQLiteStorage) queryOptions(ctx context.Context, op, query string, args ...any) ([]storage.MealOption, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, "meal_option", err)
	}
	defer rows.Close()

	options := []storage.MealOption{}
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, classify(op, "meal_option", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, "meal_option", err)
	}
	return options, nil
}
