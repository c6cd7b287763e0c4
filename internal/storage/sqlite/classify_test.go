package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"meals.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)&_txlock=immediate",
		DSN("meals.db", 2*time.Second))

	assert.Contains(t, DSN("file:meals.db?mode=rwc", 0), "mode=rwc&_pragma=foreign_keys(1)")
	assert.Contains(t, DSN("meals.db", 0), "busy_timeout(5000)")
}

func TestClassifyPlainError(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := classify("create tag", "tag", cause)

	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Database error: failed to create tag: disk I/O error", err.Error())
	assert.NoError(t, classify("create tag", "tag", nil))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%pasta%`, likePattern("PASTA"))
	assert.Equal(t, `%100\%\_bran\\%`, likePattern(`100%_bran\`))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
