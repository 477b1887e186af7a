package store

// convert.go turns row values into PostgreSQL parameters.
//
// Dates arrive from the grid as "2006-01-02" but imported spreadsheets
// carry whatever the author typed, so several layouts are accepted.
// Empty values become NULL.

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "06/1/2", "06/01/02",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006-1-2", "2006/01/02", "2006/1/2", "2006.01.02",
		"2006年1月2日", "2006年01月02日",
		"1/2/2006", "01/02/2006",
		"20060102",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseDate parses s with every accepted layout. ok is false for empty or
// unrecognised input.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToPgDate converts a string to pgtype.Date.
// Returns invalid for empty or unparseable input.
func ToPgDate(s string) pgtype.Date {
	t, ok := ParseDate(s)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// NormalizeDate rewrites a parseable date as "2006-01-02". Other input is
// returned trimmed and unchanged.
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(time.DateOnly)
	}
	return strings.TrimSpace(s)
}
