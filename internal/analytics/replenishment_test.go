package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMotive(m MovementEvent, motive string) MovementEvent {
	m.Motive = motive
	return m
}

func forecastFixture() (ItemsIndex, []MovementEvent) {
	index := ItemsIndex{Items: []ItemRecord{
		{Code: "A", Brand: "X", IsCatalog: true, StockOnHand: 30, AverageCost: 1, LastCost: 2},
		{Code: "B", Brand: "Y", IsCatalog: true, StockOnHand: 0, AverageCost: 1, LastCost: math.NaN()},
		{Code: "C", Brand: "Y", IsCatalog: true, StockOnHand: 100, AverageCost: 1, LastCost: math.NaN()},
		{Code: "D", Brand: "Z", IsCatalog: false, StockOnHand: 0, AverageCost: 1, LastCost: math.NaN()},
		{Code: "E", Brand: "", IsCatalog: true, StockOnHand: 0, AverageCost: 4, LastCost: math.NaN()},
	}}
	movements := []MovementEvent{
		movement("2024-05-17", "A", 100, "ingreso"),
		withMotive(movement("2024-06-15", "A", 20, "egreso"), "Venta"),
		movement("2024-01-01", "C", 200, "ingreso"),
		withMotive(movement("2024-06-01", "C", 10, "egreso"), "Venta"),
		withMotive(movement("2024-06-01", "D", 50, "egreso"), "Venta"),
		movement("2024-01-01", "E", 10, "ingreso"),
		withMotive(movement("2024-06-10", "E", 5, "egreso"), "Ajuste"),
	}
	return index, movements
}

func TestBuildForecast(t *testing.T) {
	index, movements := forecastFixture()

	forecast := BuildForecast(index, movements, ForecastParams{
		WindowMonths:   1,
		TargetMonths:   3,
		LeadTimeMonths: 1,
		BufferMonths:   2,
	})
	require.NotNil(t, forecast)
	assert.Equal(t, day("2024-06-15"), forecast.WindowEnd)
	assert.Equal(t, day("2024-05-15"), forecast.WindowStart)
	assert.Equal(t, 3.0, forecast.MinCoverageMonths)
	assert.Equal(t, 3.0, forecast.CoverageTarget)

	codes := make([]string, len(forecast.Rows))
	for i, r := range forecast.Rows {
		codes[i] = r.Code
	}
	assert.Equal(t, []string{"A", "E", "B", "C"}, codes)

	a := forecast.Rows[0]
	assert.Equal(t, 0.0, a.BeforeWindowStock)
	assert.Equal(t, 30, a.AvailableDays)
	assert.InDelta(t, 1, a.AvailableMonths, 1e-9)
	assert.Equal(t, 20.0, a.ConsumptionUnits)
	assert.InDelta(t, 20, a.MonthlyConsumption, 1e-9)
	assert.InDelta(t, 1.5, a.MonthsCoverage.Months(), 1e-9)
	assert.True(t, a.ShouldBuy)
	assert.InDelta(t, 30, a.QtyToBuy, 1e-9)
	assert.Equal(t, 2.0, a.UnitCost)
	assert.InDelta(t, 60, a.CostEstimate, 1e-9)

	e := forecast.Rows[1]
	assert.Equal(t, 10.0, e.BeforeWindowStock)
	assert.Equal(t, 32, e.AvailableDays)
	assert.InDelta(t, 5*30.0/32, e.MonthlyConsumption, 1e-9)
	assert.True(t, e.ShouldBuy)
	assert.Equal(t, 4.0, e.UnitCost)
	assert.InDelta(t, 5*30.0/32*3*4, e.CostEstimate, 1e-9)

	c := forecast.Rows[3]
	assert.False(t, c.ShouldBuy)
	assert.Equal(t, 0.0, c.QtyToBuy)
	assert.InDelta(t, 100/(10*30.0/32), c.MonthsCoverage.Months(), 1e-9)

	require.Len(t, forecast.BrandRows, 2)
	assert.Equal(t, BrandRow{Brand: "X", Items: 1, QtyToBuy: 30, CostEstimate: 60}, roundBrand(forecast.BrandRows[0]))
	assert.Equal(t, UnknownBrand, forecast.BrandRows[1].Brand)
}

func roundBrand(b BrandRow) BrandRow {
	b.QtyToBuy = math.Round(b.QtyToBuy*1e6) / 1e6
	b.CostEstimate = math.Round(b.CostEstimate*1e6) / 1e6
	return b
}

func TestBuildForecastMotiveFilter(t *testing.T) {
	index, movements := forecastFixture()

	forecast := BuildForecast(index, movements, ForecastParams{
		WindowMonths: 1, TargetMonths: 3, LeadTimeMonths: 1, BufferMonths: 2,
		Motives: Subset("Venta"),
	})
	require.NotNil(t, forecast)
	for _, r := range forecast.Rows {
		if r.Code == "E" {
			assert.Equal(t, 0.0, r.ConsumptionUnits)
			assert.False(t, r.ShouldBuy)
		}
	}
}

func TestBuildForecastZeroConsumptionGuard(t *testing.T) {
	index := ItemsIndex{Items: []ItemRecord{
		{Code: "A", IsCatalog: true, StockOnHand: 0, LastCost: math.NaN()},
		{Code: "B", IsCatalog: true, StockOnHand: 50, LastCost: math.NaN()},
	}}
	movements := []MovementEvent{movement("2023-01-01", "Z", 1, "ingreso")}

	for _, target := range []float64{0, 3, 12} {
		forecast := BuildForecast(index, movements, ForecastParams{WindowMonths: 12, TargetMonths: target, LeadTimeMonths: 1})
		require.NotNil(t, forecast)
		require.Len(t, forecast.Rows, 2)
		for _, r := range forecast.Rows {
			assert.Equal(t, 0.0, r.MonthlyConsumption)
			assert.False(t, r.ShouldBuy)
			assert.Equal(t, 0.0, r.QtyToBuy)
		}
		assert.Empty(t, forecast.BrandRows)
	}
}

func TestBuildForecastCoverageSentinel(t *testing.T) {
	index := ItemsIndex{Items: []ItemRecord{
		{Code: "A", IsCatalog: true, StockOnHand: 0, LastCost: math.NaN()},
		{Code: "B", IsCatalog: true, StockOnHand: 50, LastCost: math.NaN()},
	}}
	movements := []MovementEvent{movement("2023-01-01", "Z", 1, "ingreso")}

	forecast := BuildForecast(index, movements, ForecastParams{WindowMonths: 12})
	require.NotNil(t, forecast)
	byCode := map[string]ReplenishmentRow{}
	for _, r := range forecast.Rows {
		byCode[r.Code] = r
	}
	assert.Equal(t, Finite(0), byCode["A"].MonthsCoverage)
	assert.True(t, byCode["B"].MonthsCoverage.IsUnbounded())
}

func TestBuildForecastMonotonicInBuffer(t *testing.T) {
	index, movements := forecastFixture()

	var previous *Forecast
	for _, buffer := range []float64{0, 1, 2, 5, 10, 20} {
		forecast := BuildForecast(index, movements, ForecastParams{
			WindowMonths: 1, TargetMonths: 3, LeadTimeMonths: 1, BufferMonths: buffer,
		})
		require.NotNil(t, forecast)
		if previous != nil {
			assert.GreaterOrEqual(t, forecast.MinCoverageMonths, previous.MinCoverageMonths)
			before := map[string]bool{}
			for _, r := range previous.Rows {
				before[r.Code] = r.ShouldBuy
			}
			for _, r := range forecast.Rows {
				if before[r.Code] {
					assert.True(t, r.ShouldBuy, "buffer %v flipped %s back to no buy", buffer, r.Code)
				}
			}
		}
		previous = forecast
	}
	for _, r := range previous.Rows {
		if r.Code == "C" {
			assert.True(t, r.ShouldBuy)
		}
	}
}

func TestBuildForecastNilVersusEmpty(t *testing.T) {
	index, movements := forecastFixture()

	assert.Nil(t, BuildForecast(index, nil, ForecastParams{WindowMonths: 12}))

	forecast := BuildForecast(index, movements, ForecastParams{WindowMonths: 12, Items: Subset("NOPE")})
	require.NotNil(t, forecast)
	assert.NotNil(t, forecast.Rows)
	assert.Empty(t, forecast.Rows)
	assert.NotNil(t, forecast.BrandRows)
	assert.Empty(t, forecast.BrandRows)
}

func TestReplenishmentSameDayDeltasApplyBeforeCheck(t *testing.T) {
	calc := NewReplenishmentCalculator(ForecastParams{WindowMonths: 1}, day("2024-01-10"))
	item := ItemRecord{Code: "A", LastCost: math.NaN()}

	row := calc.Calculate(item, []MovementEvent{movement("2024-01-10", "A", 5, "ingreso")})
	assert.Equal(t, 1, row.AvailableDays)

	row = calc.Calculate(item, []MovementEvent{
		movement("2024-01-05", "A", 5, "ingreso"),
		movement("2024-01-05", "A", 5, "egreso"),
	})
	assert.Equal(t, 0, row.AvailableDays)

	row = calc.Calculate(item, []MovementEvent{movement("2023-12-09", "A", 5, "ingreso")})
	assert.Equal(t, 5.0, row.BeforeWindowStock)
	assert.Equal(t, 32, row.AvailableDays)
}

func TestReplenishmentOpeningStockUsesExactWindowStart(t *testing.T) {
	end := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	calc := NewReplenishmentCalculator(ForecastParams{WindowMonths: 1}, end)
	item := ItemRecord{Code: "A", LastCost: math.NaN()}

	receipt := movement("2023-12-01", "A", 50, "ingreso")
	early := withMotive(movement("2023-12-10", "A", 10, "egreso"), "Venta")
	early.Date = time.Date(2023, 12, 10, 8, 0, 0, 0, time.UTC)
	late := withMotive(movement("2023-12-10", "A", 5, "egreso"), "Venta")
	late.Date = time.Date(2023, 12, 10, 15, 0, 0, 0, time.UTC)

	row := calc.Calculate(item, []MovementEvent{receipt, early, late})
	assert.Equal(t, 40.0, row.BeforeWindowStock)
	assert.Equal(t, 5.0, row.ConsumptionUnits)
	assert.Equal(t, 32, row.AvailableDays)
}
