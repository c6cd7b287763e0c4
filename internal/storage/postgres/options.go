package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

type optionsStorage struct {
	q   querier
	now func() time.Time
}

func newOptionsStorage(q querier, now func() time.Time) *optionsStorage {
	return &optionsStorage{q: q, now: now}
}

const optionColumns = `id, template_id, name, description, nutritional_notes, created_at, updated_at`

func scanOption(row pgx.Row) (storage.MealOption, error) {
	var o storage.MealOption
	err := row.Scan(
		&o.ID,
		&o.TemplateID,
		&o.Name,
		&o.Description,
		&o.NutritionalNotes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (s *optionsStorage) CreateMealOption(ctx context.Context, in storage.MealOptionCreate) (storage.MealOption, error) {
	query := `
		INSERT INTO meal_options (template_id, name, description, nutritional_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + optionColumns

	o, err := scanOption(s.q.QueryRow(ctx, query, in.TemplateID, in.Name, in.Description, in.NutritionalNotes, s.now()))
	if err != nil {
		return storage.MealOption{}, classify("create meal option", "meal_option", err)
	}
	return o, nil
}

func (s *optionsStorage) GetMealOption(ctx context.Context, id int64) (storage.MealOption, error) {
	o, err := scanOption(s.q.QueryRow(ctx, `SELECT `+optionColumns+` FROM meal_options WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.MealOption{}, storage.NotFound("meal_option", id)
	}
	if err != nil {
		return storage.MealOption{}, classify("get meal option", "meal_option", err)
	}
	return o, nil
}

func (s *optionsStorage) GetMealOptionWithTags(ctx context.Context, id int64) (storage.MealOptionWithTags, error) {
	o, err := s.GetMealOption(ctx, id)
	if err != nil {
		return storage.MealOptionWithTags{}, err
	}
	tagIDs, err := s.optionTagIDs(ctx, id)
	if err != nil {
		return storage.MealOptionWithTags{}, err
	}
	return storage.MealOptionWithTags{MealOption: o, TagIDs: tagIDs}, nil
}

func (s *optionsStorage) ListMealOptions(ctx context.Context) ([]storage.MealOption, error) {
	return s.queryOptions(ctx, "list meal options", `SELECT `+optionColumns+` FROM meal_options ORDER BY name, id`)
}

func (s *optionsStorage) ListMealOptionsByTemplate(ctx context.Context, templateID int64) ([]storage.MealOption, error) {
	return s.queryOptions(ctx, "list meal options by template",
		`SELECT `+optionColumns+` FROM meal_options WHERE template_id = $1 ORDER BY name, id`, templateID)
}

func (s *optionsStorage) SearchMealOptions(ctx context.Context, q string) ([]storage.MealOption, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM meal_options
		WHERE name ILIKE $1
		   OR coalesce(description, '') ILIKE $1
		   OR coalesce(nutritional_notes, '') ILIKE $1
		ORDER BY name, id
	`
	return s.queryOptions(ctx, "search meal options", query, likePattern(q))
}

func (s *optionsStorage) UpdateMealOption(ctx context.Context, id int64, upd storage.MealOptionUpdate) (storage.MealOption, error) {
	var out storage.MealOption
	err := inTx(ctx, s.q, "update meal option", func(tx pgx.Tx) error {
		cur, err := scanOption(tx.QueryRow(ctx, `SELECT `+optionColumns+` FROM meal_options WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
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
			SET name = $2, description = $3, nutritional_notes = $4, updated_at = $5
			WHERE id = $1
			RETURNING ` + optionColumns
		out, err = scanOption(tx.QueryRow(ctx, query, id, cur.Name, cur.Description, cur.NutritionalNotes, s.now()))
		if err != nil {
			return classify("update meal option", "meal_option", err)
		}
		return nil
	})
	return out, err
}

func (s *optionsStorage) DeleteMealOption(ctx context.Context, id int64) error {
	result, err := s.q.Exec(ctx, `DELETE FROM meal_options WHERE id = $1`, id)
	if err != nil {
		return classify("delete meal option", "meal_option", err)
	}
	if result.RowsAffected() == 0 {
		return storage.NotFound("meal_option", id)
	}
	return nil
}

func (s *optionsStorage) GetOptionTagIDs(ctx context.Context, optionID int64) ([]int64, error) {
	if _, err := s.GetMealOption(ctx, optionID); err != nil {
		return nil, err
	}
	return s.optionTagIDs(ctx, optionID)
}

func (s *optionsStorage) AddOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO meal_option_tags (meal_option_id, tag_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`
	if _, err := s.q.Exec(ctx, query, optionID, tagIDs); err != nil {
		return classify("add meal option tags", "meal_option_tag", err)
	}
	return nil
}

func (s *optionsStorage) RemoveOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, `DELETE FROM meal_option_tags WHERE meal_option_id = $1 AND tag_id = ANY($2::bigint[])`, optionID, tagIDs)
	if err != nil {
		return classify("remove meal option tags", "meal_option_tag", err)
	}
	return nil
}

func (s *optionsStorage) SetOptionTags(ctx context.Context, optionID int64, tagIDs []int64) error {
	return inTx(ctx, s.q, "set meal option tags", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM meal_option_tags WHERE meal_option_id = $1`, optionID); err != nil {
			return classify("set meal option tags", "meal_option_tag", err)
		}
		if len(tagIDs) == 0 {
			return nil
		}
		query := `
			INSERT INTO meal_option_tags (meal_option_id, tag_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.Exec(ctx, query, optionID, tagIDs); err != nil {
			return classify("set meal option tags", "meal_option_tag", err)
		}
		return nil
	})
}

func (s *optionsStorage) optionTagIDs(ctx context.Context, optionID int64) ([]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT tag_id FROM meal_option_tags WHERE meal_option_id = $1 ORDER BY tag_id`, optionID)
	if err != nil {
		return nil, classify("get meal option tags", "meal_option_tag", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, classify("get meal option tags", "meal_option_tag", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *optionsStorage) queryOptions(ctx context.Context, op, query string, args ...any) ([]storage.MealOption, error) {
	rows, err := s.q.Query(ctx, query, args...)
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
