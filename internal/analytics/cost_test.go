package analytics

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func purchase(date, item, supplier string, qty, unitCost, total float64) MovementEvent {
	m := movement(date, item, qty, "ingreso")
	m.Counterparty = supplier
	m.UnitCost = unitCost
	m.Total = total
	return m
}

func TestBuildSupplierCostSeriesWeightedAverage(t *testing.T) {
	movements := []MovementEvent{
		purchase("2024-01-03", "A", "ACME", 2, 10, math.NaN()),
		purchase("2024-01-20", "A", "ACME", 3, 0, 60),
		purchase("2024-02-01", "A", "ACME", 1, math.NaN(), math.NaN()),
		purchase("2024-02-05", "A", "Other", 4, 5, math.NaN()),
		movement("2024-02-06", "A", 9, "egreso"),
	}

	series := BuildSupplierCostSeries(movements, CostParams{Granularity: Month})
	require.NotNil(t, series)
	assert.Equal(t, []string{"2024-01", "2024-02"}, series.PeriodKeys)
	require.Len(t, series.Suppliers, 2)

	acme := series.Suppliers[0]
	assert.Equal(t, "ACME", acme.Supplier)
	assert.Equal(t, 5.0, acme.TotalQty)
	assert.Equal(t, []*float64{f64(16), nil}, acme.Points)

	other := series.Suppliers[1]
	assert.Equal(t, "Other", other.Supplier)
	assert.Equal(t, []*float64{nil, f64(5)}, other.Points)
}

func TestBuildSupplierCostSeriesKeepsTopSix(t *testing.T) {
	var movements []MovementEvent
	for i := 1; i <= 7; i++ {
		movements = append(movements, purchase("2024-01-10", "A", fmt.Sprintf("S%d", i), float64(i), 1, math.NaN()))
	}
	movements = append(movements, purchase("2024-02-10", "A", "S1", 0.5, 1, math.NaN()))

	series := BuildSupplierCostSeries(movements, CostParams{Granularity: Month})
	require.NotNil(t, series)
	require.Len(t, series.Suppliers, 6)
	assert.Equal(t, "S7", series.Suppliers[0].Supplier)
	for _, s := range series.Suppliers {
		assert.NotEqual(t, "S1", s.Supplier)
	}
	assert.Equal(t, []string{"2024-01"}, series.PeriodKeys, "period with only dropped suppliers is not emitted")
}

func TestBuildSupplierCostSeriesLabels(t *testing.T) {
	byRef := purchase("2024-01-03", "A", "", 1, 2, math.NaN())
	byRef.Reference = "FAC-1"
	unknown := purchase("2024-01-04", "A", "", 3, 2, math.NaN())

	series := BuildSupplierCostSeries([]MovementEvent{byRef, unknown}, CostParams{Granularity: Month})
	require.NotNil(t, series)
	require.Len(t, series.Suppliers, 2)
	assert.Equal(t, UnknownSupplier, series.Suppliers[0].Supplier)
	assert.Equal(t, "FAC-1", series.Suppliers[1].Supplier)
}

func TestBuildSupplierCostSeriesNil(t *testing.T) {
	assert.Nil(t, BuildSupplierCostSeries(nil, CostParams{Granularity: Month}))
	assert.Nil(t, BuildSupplierCostSeries([]MovementEvent{
		movement("2024-01-01", "A", 5, "egreso"),
	}, CostParams{Granularity: Month}))
	assert.Nil(t, BuildSupplierCostSeries([]MovementEvent{
		purchase("2024-01-01", "A", "ACME", 5, 1, math.NaN()),
	}, CostParams{Granularity: Month, Items: Subset("B")}))
}

func TestBuildSalesPriceSeries(t *testing.T) {
	sales := []SaleEvent{
		{Date: day("2024-01-02"), Item: "A", Units: 2, GrossSale: 200, TotalCost: math.NaN(), TotalDiscount: math.NaN()},
		{Date: day("2024-01-09"), Item: "A", Units: 3, GrossSale: 600, TotalCost: 300, TotalDiscount: 30},
		{Date: day("2024-01-10"), Item: "A", Units: 0, GrossSale: 50, TotalCost: 10, TotalDiscount: 0},
		{Date: day("2024-02-10"), Item: "B", Units: 1, GrossSale: math.NaN(), TotalCost: 4, TotalDiscount: 0},
	}

	series := BuildSalesPriceSeries(sales, CostParams{Granularity: Month})
	require.NotNil(t, series)
	assert.Equal(t, []string{"2024-01", "2024-02"}, series.PeriodKeys)

	require.NotNil(t, series.Price[0])
	assert.InDelta(t, 160, *series.Price[0], 1e-9)
	require.NotNil(t, series.Net[0])
	assert.InDelta(t, 154, *series.Net[0], 1e-9)
	require.NotNil(t, series.Cost[0])
	assert.InDelta(t, 100, *series.Cost[0], 1e-9)

	assert.Nil(t, series.Price[1])
	assert.Nil(t, series.Net[1])
	assert.Equal(t, f64(4), series.Cost[1])
}

func TestBuildSalesPriceSeriesNil(t *testing.T) {
	sales := []SaleEvent{{Date: day("2024-01-02"), Item: "A", Units: 0, GrossSale: 10}}
	assert.Nil(t, BuildSalesPriceSeries(sales, CostParams{Granularity: Month}))
	assert.Nil(t, BuildSalesPriceSeries(nil, CostParams{Granularity: Month}))
}
