package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Granularity is the bucket size of a time series.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

var ErrUnknownGranularity = errors.New("analytics: unknown period granularity")

// ParseGranularity parses day|week|month|year (case-insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week, Month, Year:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// PeriodKey maps t to its bucket key: YYYY-MM-DD, YYYY-Www (ISO 8601),
// YYYY-MM or YYYY. Unknown granularities bucket by month.
func PeriodKey(t time.Time, g Granularity) string {
	t = t.UTC()
	switch g {
	case Day:
		return t.Format("2006-01-02")
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Year:
		return t.Format("2006")
	default:
		return t.Format("2006-01")
	}
}

// PeriodStart returns the first instant of the bucket named by key. Ordering
// between periods must go through PeriodStart: week keys do not sort as
// strings across ISO year boundaries.
func PeriodStart(key string, g Granularity) (time.Time, bool) {
	var (
		t   time.Time
		err error
	)
	switch g {
	case Day:
		t, err = time.Parse("2006-01-02", key)
	case Week:
		return isoWeekStartFromKey(key)
	case Year:
		t, err = time.Parse("2006", key)
	default:
		t, err = time.Parse("2006-01", key)
	}
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isoWeekStartFromKey(key string) (time.Time, bool) {
	yearPart, weekPart, ok := strings.Cut(key, "-W")
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return time.Time{}, false
	}
	week, err := strconv.Atoi(weekPart)
	if err != nil || week < 1 || week > 53 {
		return time.Time{}, false
	}
	return isoWeekStart(year, week), true
}

// isoWeekStart returns the Monday of the given ISO week. Week 1 is the week
// containing January 4th.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -sinceMonday+(week-1)*7)
}

// ComparePeriods orders two keys of the same granularity by PeriodStart.
// Unparseable keys sort first.
func ComparePeriods(a, b string, g Granularity) int {
	ta, okA := PeriodStart(a, g)
	tb, okB := PeriodStart(b, g)
	switch {
	case !okA && !okB:
		return strings.Compare(a, b)
	case !okA:
		return -1
	case !okB:
		return 1
	}
	return ta.Compare(tb)
}

// snapToPeriod returns the start of the bucket containing t.
func snapToPeriod(t time.Time, g Granularity) time.Time {
	start, _ := PeriodStart(PeriodKey(t, g), g)
	return start
}

// sortedPeriods returns the keys of buckets ordered by PeriodStart, with the
// parsed starts alongside.
func sortedPeriods[V any](buckets map[string]V, g Granularity) ([]string, []time.Time) {
	type entry struct {
		key   string
		start time.Time
	}
	entries := make([]entry, 0, len(buckets))
	for k := range buckets {
		start, ok := PeriodStart(k, g)
		if !ok {
			continue
		}
		entries = append(entries, entry{key: k, start: start})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].start.Before(entries[j].start) })

	keys := make([]string, len(entries))
	starts := make([]time.Time, len(entries))
	for i, e := range entries {
		keys[i] = e.key
		starts[i] = e.start
	}
	return keys, starts
}
