package analytics

import (
	"math"
	"sort"
	"strings"
	"time"
)

// SeriesParams narrows BuildSeries. Nil range bounds default to the first and
// last matching event dates.
type SeriesParams struct {
	Granularity Granularity
	RangeStart  *time.Time
	RangeEnd    *time.Time
	Items       Filter[string]
}

// Direction returns -1 for outgoing movements and +1 for incoming ones.
// Explicit direction text wins over numeric sign: a positive looking return
// row can still be an egress.
func Direction(m MovementEvent) int {
	kind := foldAccents(strings.ToLower(m.Kind))
	switch {
	case strings.Contains(kind, "egreso"), strings.Contains(kind, "salida"):
		return -1
	case strings.Contains(kind, "ingreso"), strings.Contains(kind, "entrada"):
		return 1
	}
	if isFinite(m.Qty) && m.Qty != 0 {
		return signOf(m.Qty)
	}
	if isFinite(m.Total) && m.Total != 0 {
		return signOf(m.Total)
	}
	return 1
}

func signOf(f float64) int {
	if f < 0 {
		return -1
	}
	return 1
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// unitDelta is the signed unit effect of m. ok is false when qty is unknown.
func unitDelta(m MovementEvent, sign int) (float64, bool) {
	if !isFinite(m.Qty) {
		return 0, false
	}
	return float64(sign) * math.Abs(m.Qty), true
}

// valueDelta is the signed monetary effect of m: the total when present,
// otherwise unit cost times quantity.
func valueDelta(m MovementEvent, sign int) (float64, bool) {
	if isFinite(m.Total) {
		return float64(sign) * math.Abs(m.Total), true
	}
	v := math.Abs(m.UnitCost) * math.Abs(m.Qty)
	if !isFinite(v) {
		return 0, false
	}
	return float64(sign) * v, true
}

// BuildSeries replays movements chronologically into cumulative unit and
// value series bucketed by period. Events after the range end are excluded
// entirely; events before the range start still feed the opening balance.
// It returns nil when nothing matches or no period falls inside the range.
func BuildSeries(movements []MovementEvent, p SeriesParams) *InventorySeries {
	events := make([]MovementEvent, 0, len(movements))
	for _, m := range movements {
		if p.Items.Includes(m.Item) {
			events = append(events, m)
		}
	}
	if len(events) == 0 {
		return nil
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })

	rangeStart := events[0].Date
	rangeEnd := events[len(events)-1].Date
	if p.RangeStart != nil {
		rangeStart = *p.RangeStart
	}
	if p.RangeEnd != nil {
		rangeEnd = *p.RangeEnd
	}

	type bucket struct {
		units float64
		value float64
	}
	buckets := make(map[string]*bucket)
	for _, e := range events {
		if e.Date.After(rangeEnd) {
			break
		}
		key := PeriodKey(e.Date, p.Granularity)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		sign := Direction(e)
		if d, ok := unitDelta(e, sign); ok {
			b.units += d
		}
		if d, ok := valueDelta(e, sign); ok {
			b.value += d
		}
	}

	keys, starts := sortedPeriods(buckets, p.Granularity)
	windowStart := snapToPeriod(rangeStart, p.Granularity)
	windowEnd := snapToPeriod(rangeEnd, p.Granularity)

	series := &InventorySeries{}
	var units, value float64
	for i, key := range keys {
		b := buckets[key]
		units += b.units
		value += b.value
		if starts[i].Before(windowStart) || starts[i].After(windowEnd) {
			continue
		}
		series.PeriodKeys = append(series.PeriodKeys, key)
		series.PeriodStarts = append(series.PeriodStarts, starts[i])
		series.CumulativeUnits = append(series.CumulativeUnits, units)
		series.CumulativeValue = append(series.CumulativeValue, value)
	}
	if len(series.PeriodKeys) == 0 {
		return nil
	}

	last := len(series.PeriodKeys) - 1
	series.LastUnits = series.CumulativeUnits[last]
	series.LastValue = series.CumulativeValue[last]
	return series
}
