package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, storage.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, storage.ErrForeignKey},
		{"wrapped foreign key", fmt.Errorf("exec: %w", &pgconn.PgError{Code: codeForeignKeyViolation}), storage.ErrForeignKey},
		{"check violation", &pgconn.PgError{Code: "23514"}, storage.ErrStorage},
		{"plain", errors.New("connection reset"), storage.ErrStorage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("create tag", "tag", tc.err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, tc.err, "cause is preserved")
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify("op", "tag", nil))
}

func TestClassifyDoesNotTurnNoRowsIntoNotFound(t *testing.T) {
	err := classify("get tag", "tag", pgx.ErrNoRows)
	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.False(t, errors.Is(err, storage.ErrNotFound))
}

func TestLockKey(t *testing.T) {
	a := lockKey(storage.EntryLock{MealOptionID: 7, Week: "2024-45"})
	b := lockKey(storage.EntryLock{MealOptionID: 7, Week: "2024-46"})
	c := lockKey(storage.EntryLock{MealOptionID: 70, Week: "2024-45"})

	assert.Equal(t, "meal_entry:7:2024-45", a)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%pasta%`, likePattern("pasta"))
	assert.Equal(t, `%100\%\_bran%`, likePattern("100%_bran"))
}
