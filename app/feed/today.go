package feed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Layouts carrying an explicit offset. Fractional seconds are accepted by
// time.Parse even when the layout omits them.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z07",
}

// Layouts without an offset; parsed in the reference timezone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// TodayFilter decides whether a timestamp falls on the current calendar
// date of a fixed reference timezone.
type TodayFilter struct {
	loc *time.Location
	now func() time.Time
}

func NewTodayFilter(loc *time.Location, now func() time.Time) *TodayFilter {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &TodayFilter{loc: loc, now: now}
}

func (f *TodayFilter) IsToday(timestamp string) bool {
	t, err := ParseTimestamp(timestamp, f.loc)
	if err != nil {
		slog.Warn("Failed to parse publish timestamp", "timestamp", timestamp, "error", err)
		return false
	}

	y1, m1, d1 := t.In(f.loc).Date()
	y2, m2, d2 := f.now().In(f.loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps without an offset
// are interpreted in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}
