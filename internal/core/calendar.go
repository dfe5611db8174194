package core

import (
	"fmt"
	"math"
	"time"
)

// MonthRange returns the inclusive [from, to] epoch-ms window of a calendar month
// in loc. month is 0-indexed (0 = January); values outside 0..11 roll over into
// neighbouring years the way calendar arithmetic does.
func MonthRange(year, month int, loc *time.Location) (from, to int64) {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	next := time.Date(year, time.Month(month+2), 1, 0, 0, 0, 0, loc)
	return first.UnixMilli(), next.UnixMilli() - 1
}

// InRange reports whether start lies in [from, to].
func InRange(start, from, to int64) bool {
	return start >= from && start <= to
}

// FormatHours renders a duration in hours as "2h 30m", "2h" or "45m".
func FormatHours(hours float64) string {
	if hours < 1 {
		return fmt.Sprintf("%dm", int(math.Round(hours*60)))
	}
	h := math.Floor(hours)
	m := int(math.Round((hours - h) * 60))
	if m == 60 {
		h++
		m = 0
	}
	if m > 0 {
		return fmt.Sprintf("%dh %dm", int(h), m)
	}
	return fmt.Sprintf("%dh", int(h))
}
