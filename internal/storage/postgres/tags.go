package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

type tagsStorage struct {
	q   querier
	now func() time.Time
}

func newTagsStorage(q querier, now func() time.Time) *tagsStorage {
	return &tagsStorage{q: q, now: now}
}

const tagColumns = `id, name, display_name, category, weekly_suggestion, parent_tag_id, created_at`

func scanTag(row pgx.Row) (storage.Tag, error) {
	var (
		t        storage.Tag
		category string
	)
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.DisplayName,
		&category,
		&t.WeeklySuggestion,
		&t.ParentTagID,
		&t.CreatedAt,
	)
	if err != nil {
		return storage.Tag{}, err
	}
	t.Category = storage.TagCategory(category)
	return t, nil
}

func (s *tagsStorage) CreateTag(ctx context.Context, in storage.TagCreate) (storage.Tag, error) {
	query := `
		INSERT INTO tags (name, display_name, category, weekly_suggestion, parent_tag_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + tagColumns

	t, err := scanTag(s.q.QueryRow(ctx, query,
		in.Name,
		in.DisplayName,
		string(in.Category),
		in.WeeklySuggestion,
		in.ParentTagID,
		s.now(),
	))
	if err != nil {
		return storage.Tag{}, classify("create tag", "tag", err)
	}
	return t, nil
}

func (s *tagsStorage) GetTag(ctx context.Context, id int64) (storage.Tag, error) {
	t, err := scanTag(s.q.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Tag{}, storage.NotFound("tag", id)
	}
	if err != nil {
		return storage.Tag{}, classify("get tag", "tag", err)
	}
	return t, nil
}

func (s *tagsStorage) GetTagByName(ctx context.Context, name string) (storage.Tag, error) {
	t, err := scanTag(s.q.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Tag{}, storage.NotFoundName("tag", name)
	}
	if err != nil {
		return storage.Tag{}, classify("get tag by name", "tag", err)
	}
	return t, nil
}

func (s *tagsStorage) ListTags(ctx context.Context) ([]storage.Tag, error) {
	return s.queryTags(ctx, "list tags", `SELECT `+tagColumns+` FROM tags ORDER BY name`)
}

func (s *tagsStorage) ListTagsByCategory(ctx context.Context, category storage.TagCategory) ([]storage.Tag, error) {
	return s.queryTags(ctx, "list tags by category",
		`SELECT `+tagColumns+` FROM tags WHERE category = $1 ORDER BY name`, string(category))
}

func (s *tagsStorage) ListTagChildren(ctx context.Context, parentID int64) ([]storage.Tag, error) {
	return s.queryTags(ctx, "list tag children",
		`SELECT `+tagColumns+` FROM tags WHERE parent_tag_id = $1 ORDER BY name`, parentID)
}

func (s *tagsStorage) UpdateTag(ctx context.Context, id int64, upd storage.TagUpdate) (storage.Tag, error) {
	var out storage.Tag
	err := inTx(ctx, s.q, "update tag", func(tx pgx.Tx) error {
		cur, err := scanTag(tx.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.NotFound("tag", id)
		}
		if err != nil {
			return classify("update tag", "tag", err)
		}

		if upd.DisplayName != nil {
			cur.DisplayName = *upd.DisplayName
		}
		if upd.Category != nil {
			cur.Category = *upd.Category
		}
		cur.WeeklySuggestion = upd.WeeklySuggestion.Apply(cur.WeeklySuggestion)
		cur.ParentTagID = upd.ParentTagID.Apply(cur.ParentTagID)

		query := `
			UPDATE tags
			SET display_name = $2, category = $3, weekly_suggestion = $4, parent_tag_id = $5
			WHERE id = $1
			RETURNING ` + tagColumns
		out, err = scanTag(tx.QueryRow(ctx, query,
			id,
			cur.DisplayName,
			string(cur.Category),
			cur.WeeklySuggestion,
			cur.ParentTagID,
		))
		if err != nil {
			return classify("update tag", "tag", err)
		}
		return nil
	})
	return out, err
}

func (s *tagsStorage) DeleteTag(ctx context.Context, id int64) error {
	result, err := s.q.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return classify("delete tag", "tag", err)
	}
	if result.RowsAffected() == 0 {
		return storage.NotFound("tag", id)
	}
	return nil
}

func (s *tagsStorage) queryTags(ctx context.Context, op, query string, args ...any) ([]storage.Tag, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, "tag", err)
	}
	defer rows.Close()

	tags := []storage.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, classify(op, "tag", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, "tag", err)
	}
	return tags, nil
}
