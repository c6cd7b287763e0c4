package week

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"monday week 45", date(2024, time.November, 4), "2024-45"},
		{"friday week 45", date(2024, time.November, 8), "2024-45"},
		{"next monday", date(2024, time.November, 11), "2024-46"},
		{"late december in week 1", date(2024, time.December, 30), "2025-01"},
		{"early january", date(2025, time.January, 5), "2025-01"},
		{"early january in last week of previous year", date(2021, time.January, 3), "2020-53"},
		{"single digit week is padded", date(2024, time.January, 10), "2024-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.in))
		})
	}
}

func TestKeyStableWithinWeek(t *testing.T) {
	for _, monday := range []time.Time{
		date(2024, time.November, 4),
		date(2024, time.December, 30),
		date(2020, time.December, 28),
	} {
		want := Key(monday)
		for i := 1; i < 7; i++ {
			assert.Equal(t, want, Key(monday.AddDate(0, 0, i)), "day %d after %s", i, FormatDate(monday))
		}
		assert.NotEqual(t, want, Key(monday.AddDate(0, 0, 7)))
		assert.NotEqual(t, want, Key(monday.AddDate(0, 0, -1)))
	}
}

func TestYearBoundary(t *testing.T) {
	key := Key(date(2024, time.December, 30))
	for d := date(2024, time.December, 30); !d.After(date(2025, time.January, 5)); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, key, Key(d), FormatDate(d))
	}
	assert.NotEqual(t, key, Key(date(2025, time.January, 6)))
}

func TestStart(t *testing.T) {
	assert.Equal(t, date(2024, time.November, 4), Start(date(2024, time.November, 6)))
	assert.Equal(t, date(2024, time.November, 4), Start(date(2024, time.November, 10)))
	assert.Equal(t, date(2024, time.November, 4), Start(date(2024, time.November, 4)))
	assert.Equal(t, date(2024, time.December, 30), Start(date(2025, time.January, 1)))

	withClock := time.Date(2024, time.November, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, date(2024, time.November, 4), Start(withClock))
}

func TestStartIsIdempotentMonday(t *testing.T) {
	d := date(2023, time.January, 1)
	for i := 0; i < 800; i++ {
		s := Start(d)
		assert.Equal(t, time.Monday, s.Weekday())
		assert.Equal(t, s, Start(s))
		assert.Equal(t, Key(d), Key(s))
		d = d.AddDate(0, 0, 1)
	}
}

func TestRangeAndDays(t *testing.T) {
	mon, sun := Range(date(2024, time.November, 8))
	assert.Equal(t, date(2024, time.November, 4), mon)
	assert.Equal(t, date(2024, time.November, 10), sun)

	days := Days(date(2024, time.November, 8))
	require.Len(t, days, 7)
	assert.Equal(t, mon, days[0])
	assert.Equal(t, sun, days[6])
}

func TestParseKey(t *testing.T) {
	monday, err := ParseKey("2024-45")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.November, 4), monday)

	monday, err = ParseKey("2025-01")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.December, 30), monday)

	monday, err = ParseKey("2020-53")
	require.NoError(t, err)
	assert.Equal(t, date(2020, time.December, 28), monday)

	for _, bad := range []string{"", "2024-5", "2024-00", "2024-53", "24-01", "2024/01"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	d := date(2019, time.December, 1)
	for i := 0; i < 500; i++ {
		monday, err := ParseKey(Key(d))
		require.NoError(t, err)
		assert.Equal(t, Start(d), monday)
		d = d.AddDate(0, 0, 3)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-11-04")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.November, 4), d)
	assert.Equal(t, "2024-11-04", FormatDate(d))

	_, err = ParseDate("04/11/2024")
	assert.Error(t, err)
}

func TestWeeksInYear(t *testing.T) {
	assert.Equal(t, 53, WeeksInYear(2020))
	assert.Equal(t, 52, WeeksInYear(2024))
	assert.Equal(t, 53, WeeksInYear(2026))
}
