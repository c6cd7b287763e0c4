package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

const tagColumns = `id, name, display_name, category, weekly_suggestion, parent_tag_id, created_at`

func scanTag(row scanner) (storage.Tag, error) {
	var (
		t          storage.Tag
		category   string
		suggestion sql.NullInt64
		parentID   sql.NullInt64
		createdAt  string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &category, &suggestion, &parentID, &createdAt); err != nil {
		return storage.Tag{}, err
	}
	t.Category = storage.TagCategory(category)
	t.WeeklySuggestion = intPtr(suggestion)
	t.ParentTagID = int64Ptr(parentID)
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func (s *SQLiteStorage) CreateTag(ctx context.Context, in storage.TagCreate) (storage.Tag, error) {
	query := `
		INSERT INTO tags (name, display_name, category, weekly_suggestion, parent_tag_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + tagColumns

	t, err := scanTag(s.q.QueryRowContext(ctx, query,
		in.Name,
		in.DisplayName,
		string(in.Category),
		nullInt(in.WeeklySuggestion),
		nullInt64(in.ParentTagID),
		formatTime(s.now()),
	))
	if err != nil {
		return storage.Tag{}, classify("create tag", "tag", err)
	}
	return t, nil
}

func (s *SQLiteStorage) GetTag(ctx context.Context, id int64) (storage.Tag, error) {
	t, err := scanTag(s.q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Tag{}, storage.NotFound("tag", id)
	}
	if err != nil {
		return storage.Tag{}, classify("get tag", "tag", err)
	}
	return t, nil
}

func (s *SQLiteStorage) GetTagByName(ctx context.Context, name string) (storage.Tag, error) {
	t, err := scanTag(s.q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Tag{}, storage.NotFoundName("tag", name)
	}
	if err != nil {
		return storage.Tag{}, classify("get tag by name", "tag", err)
	}
	return t, nil
}

func (s *SQLiteStorage) ListTags(ctx context.Context) ([]storage.Tag, error) {
	return s.queryTags(ctx, "list tags", `SELECT `+tagColumns+` FROM tags ORDER BY name`)
}

func (s *SQLiteStorage) ListTagsByCategory(ctx context.Context, category storage.TagCategory) ([]storage.Tag, error) {
	return s.queryTags(ctx, "list tags by category",
		`SELECT `+tagColumns+` FROM tags WHERE category = ? ORDER BY name`, string(category))
}

func (s *SQLiteStorage) ListTagChildren(ctx context.Context, parentID int64) ([]storage.Tag, error) {
	return s.queryTags(ctx, "list tag children",
		`SELECT `+tagColumns+` FROM tags WHERE parent_tag_id = ? ORDER BY name`, parentID)
}

func (s *SQLiteStorage) UpdateTag(ctx context.Context, id int64, upd storage.TagUpdate) (storage.Tag, error) {
	var out storage.Tag
	err := s.withTx(ctx, "update tag", func(q dbtx) error {
		cur, err := scanTag(q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
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
			SET display_name = ?, category = ?, weekly_suggestion = ?, parent_tag_id = ?
			WHERE id = ?
			RETURNING ` + tagColumns
		out, err = scanTag(q.QueryRowContext(ctx, query,
			cur.DisplayName,
			string(cur.Category),
			nullInt(cur.WeeklySuggestion),
			nullInt64(cur.ParentTagID),
			id,
		))
		if err != nil {
			return classify("update tag", "tag", err)
		}
		return nil
	})
	return out, err
}

func (s *SQLiteStorage) DeleteTag(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return classify("delete tag", "tag", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.NotFound("tag", id)
	}
	return nil
}

func (s *SQLiteStorage) queryTags(ctx context.Context, op, query string, args ...any) ([]storage.Tag, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
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
