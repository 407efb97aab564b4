package analytics

import (
	"math"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func movement(date, item string, qty float64, kind string) MovementEvent {
	return MovementEvent{
		Date:     day(date),
		Item:     item,
		Qty:      qty,
		Total:    math.NaN(),
		UnitCost: math.NaN(),
		PVPTotal: math.NaN(),
		Kind:     kind,
	}
}

func f64(v float64) *float64 { return &v }
