// Package week maps calendar dates to ISO-8601 weeks.
//
// A week key has the form "YYYY-WW": the ISO week-numbering year and the
// two-digit week number. Weeks start on Monday and week 1 is the week that
// contains the year's first Thursday, so late-December dates can belong to
// week 1 of the next year and early-January dates to the last week of the
// previous one.
package week

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var keyPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Key returns the ISO week key of date, e.g. "2024-45".
func Key(date time.Time) string {
	year, wk := date.ISOWeek()
	return fmt.Sprintf("%d-%02d", year, wk)
}

// Start returns the Monday of date's ISO week at midnight UTC.
func Start(date time.Time) time.Time {
	d := Truncate(date)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}

// Range returns the Monday and the Sunday of date's ISO week.
func Range(date time.Time) (time.Time, time.Time) {
	start := Start(date)
	return start, start.AddDate(0, 0, 6)
}

// Days returns the seven dates of date's ISO week, Monday first.
func Days(date time.Time) []time.Time {
	start := Start(date)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// ParseKey returns the Monday that begins the ISO week named by key.
func ParseKey(key string) (time.Time, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid week key %q, expected YYYY-WW", key)
	}
	year, _ := strconv.Atoi(m[1])
	wk, _ := strconv.Atoi(m[2])
	if wk < 1 || wk > WeeksInYear(year) {
		return time.Time{}, fmt.Errorf("invalid week key %q: year %d has %d ISO weeks", key, year, WeeksInYear(year))
	}

	// January 4th is always in week 1.
	week1 := Start(time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC))
	return week1.AddDate(0, 0, (wk-1)*7), nil
}

// WeeksInYear returns 52 or 53.
func WeeksInYear(year int) int {
	_, wk := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return wk
}

// Truncate drops the time of day, keeping the calendar date as seen in
// date's own location, and returns it at midnight UTC.
func Truncate(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
