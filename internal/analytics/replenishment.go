package analytics

import (
	"math"
	"sort"
	"strings"
	"time"
)

// daysPerMonth is the fixed month length used to turn available days into
// months. It is not calendar accurate.
const daysPerMonth = 30.0

const UnknownBrand = "Sin marca"

// ForecastParams configures BuildForecast. Month values other than the
// window may be fractional.
type ForecastParams struct {
	WindowMonths   int
	TargetMonths   float64
	LeadTimeMonths float64
	BufferMonths   float64
	Items          Filter[string]
	Motives        Filter[string]
}

// ReplenishmentCalculator derives per-item purchase recommendations from the
// stock availability reconstructed over a trailing window.
type ReplenishmentCalculator struct {
	params            ForecastParams
	windowStart       time.Time
	windowEnd         time.Time
	startDay          time.Time
	endDay            time.Time
	minCoverageMonths float64
	coverageTarget    float64
}

// NewReplenishmentCalculator creates a calculator for the window ending at windowEnd.
func NewReplenishmentCalculator(params ForecastParams, windowEnd time.Time) *ReplenishmentCalculator {
	windowEnd = windowEnd.UTC()
	windowStart := windowEnd.AddDate(0, -params.WindowMonths, 0)
	minCoverage := params.LeadTimeMonths + params.BufferMonths
	return &ReplenishmentCalculator{
		params:            params,
		windowStart:       windowStart,
		windowEnd:         windowEnd,
		startDay:          truncateDay(windowStart),
		endDay:            truncateDay(windowEnd),
		minCoverageMonths: minCoverage,
		coverageTarget:    math.Max(minCoverage, params.TargetMonths),
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Calculate computes the replenishment row for item from its movements.
func (rc *ReplenishmentCalculator) Calculate(item ItemRecord, movements []MovementEvent) ReplenishmentRow {
	row := ReplenishmentRow{
		Code:         item.Code,
		Desc:         item.Desc,
		Brand:        item.Brand,
		Line:         item.Line,
		CurrentStock: item.StockOnHand,
	}

	// 1. Split movements into the opening balance, per-day deltas inside the
	//    window and consumption for the selected motives
	daily := make(map[time.Time]float64)
	for _, m := range movements {
		sign := Direction(m)
		delta, ok := unitDelta(m, sign)
		if !ok {
			continue
		}
		if m.Date.Before(rc.windowStart) {
			row.BeforeWindowStock += delta
			continue
		}
		if m.Date.After(rc.windowEnd) {
			continue
		}
		daily[truncateDay(m.Date)] += delta
		if sign < 0 && rc.params.Motives.Includes(strings.TrimSpace(m.Motive)) {
			row.ConsumptionUnits += math.Abs(m.Qty)
		}
	}

	// 2. Walk the window day by day; same-day deltas apply before the check
	stock := row.BeforeWindowStock
	for day := rc.startDay; !day.After(rc.endDay); day = day.AddDate(0, 0, 1) {
		stock += daily[day]
		if stock > 0 {
			row.AvailableDays++
		}
	}

	// 3. Monthly consumption over the months the item was actually in stock
	row.AvailableMonths = float64(row.AvailableDays) / daysPerMonth
	if row.AvailableMonths > 0 {
		row.MonthlyConsumption = row.ConsumptionUnits / row.AvailableMonths
	}

	// 4. Months of coverage at the current rate
	switch {
	case row.MonthlyConsumption > 0:
		row.MonthsCoverage = Finite(row.CurrentStock / row.MonthlyConsumption)
	case row.CurrentStock > 0:
		row.MonthsCoverage = Unbounded()
	default:
		row.MonthsCoverage = Finite(0)
	}

	// 5. Buy only with historical demand and coverage at or below the minimum
	row.ShouldBuy = row.MonthlyConsumption > 0 && row.MonthsCoverage.AtMost(rc.minCoverageMonths)
	if row.ShouldBuy {
		row.QtyToBuy = math.Max(0, row.MonthlyConsumption*rc.coverageTarget-row.CurrentStock)
	}

	// 6. Cost estimate at the last cost, falling back to the average cost
	row.UnitCost = item.AverageCost
	if isFinite(item.LastCost) {
		row.UnitCost = item.LastCost
	}
	row.CostEstimate = row.QtyToBuy * row.UnitCost

	return row
}

// BuildForecast recommends purchase quantities for catalog items. The window
// ends at the latest movement date overall. It returns nil when there are no
// movements, and an empty (non-nil) forecast when no catalog item matches.
func BuildForecast(index ItemsIndex, movements []MovementEvent, p ForecastParams) *Forecast {
	if len(movements) == 0 {
		return nil
	}
	windowEnd := movements[0].Date
	for _, m := range movements[1:] {
		if m.Date.After(windowEnd) {
			windowEnd = m.Date
		}
	}
	calc := NewReplenishmentCalculator(p, windowEnd)

	byItem := make(map[string][]MovementEvent)
	for _, m := range movements {
		if p.Items.Includes(m.Item) {
			byItem[m.Item] = append(byItem[m.Item], m)
		}
	}

	forecast := &Forecast{
		Rows:              []ReplenishmentRow{},
		BrandRows:         []BrandRow{},
		WindowStart:       calc.windowStart,
		WindowEnd:         calc.windowEnd,
		MinCoverageMonths: calc.minCoverageMonths,
		CoverageTarget:    calc.coverageTarget,
	}
	for _, item := range index.Items {
		if !item.IsCatalog || !p.Items.Includes(item.Code) {
			continue
		}
		forecast.Rows = append(forecast.Rows, calc.Calculate(item, byItem[item.Code]))
	}

	sortReplenishmentRows(forecast.Rows)
	forecast.BrandRows = rollupBrands(forecast.Rows)
	return forecast
}

// sortReplenishmentRows puts items to buy first, each tier by descending cost.
func sortReplenishmentRows(rows []ReplenishmentRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ShouldBuy != b.ShouldBuy {
			return a.ShouldBuy
		}
		if a.CostEstimate != b.CostEstimate {
			return a.CostEstimate > b.CostEstimate
		}
		return a.Code < b.Code
	})
}

func rollupBrands(rows []ReplenishmentRow) []BrandRow {
	byBrand := make(map[string]*BrandRow)
	for _, r := range rows {
		if r.QtyToBuy <= 0 {
			continue
		}
		brand := r.Brand
		if brand == "" {
			brand = UnknownBrand
		}
		br, ok := byBrand[brand]
		if !ok {
			br = &BrandRow{Brand: brand}
			byBrand[brand] = br
		}
		br.Items++
		br.QtyToBuy += r.QtyToBuy
		br.CostEstimate += r.CostEstimate
	}

	out := make([]BrandRow, 0, len(byBrand))
	for _, br := range byBrand {
		out = append(out, *br)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CostEstimate != out[j].CostEstimate {
			return out[i].CostEstimate > out[j].CostEstimate
		}
		return out[i].Brand < out[j].Brand
	})
	return out
}
