package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stockwise/internal/analytics"
	"github.com/andresuchdata/stockwise/internal/cache"
	"github.com/andresuchdata/stockwise/internal/domain"
)

type fakeSource struct {
	mu     sync.Mutex
	tables map[analytics.Table][]analytics.Row
	err    error
	loads  int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) LoadTable(_ context.Context, table analytics.Table) ([]analytics.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[table], nil
}

func sampleTables() map[analytics.Table][]analytics.Row {
	return map[analytics.Table][]analytics.Row{
		analytics.TableItems: {
			{"Código": "A", "Descripción": "Tornillo", "Marca": "Acme", "Línea": "Ferretería", "Stock": 30.0, "Costo Promedio": 1.0, "Último Costo": 2.0},
			{"Código": "B", "Descripción": "Tuerca", "Marca": "Bolt", "Línea": "Ferretería", "Stock": 0.0, "Costo Promedio": 1.0},
			{"Código": "Z", "Descripción": "Suelto", "Marca": "Otra", "Stock": 5.0, "Costo Promedio": 3.0},
		},
		analytics.TableCatalog: {
			{"Código": "A", "Nombre": "Tornillo 3mm"},
			{"Código": "B"},
		},
		analytics.TableMovements: {
			{"Fecha": "2024-05-17", "Código": "A", "Cantidad": 100.0, "Tipo": "Ingreso", "Proveedor": "Acme SA", "Costo Unitario": 2.0},
			{"Fecha": "2024-06-15", "Código": "A", "Cantidad": 20.0, "Tipo": "Egreso", "Motivo": "Venta"},
			{"Fecha": "2024-06-01", "Código": "B", "Cantidad": 5.0, "Tipo": "Egreso", "Motivo": "Ajuste"},
		},
		analytics.TableSales: {
			{"Fecha": "2024-06-15", "Código": "A", "Unidades": 20.0, "Venta Bruta": 100.0, "Costo Total": 40.0, "Cliente": "Juan"},
		},
	}
}

func newTestService(t *testing.T, source RowSource) (*AnalyticsService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewAnalyticsService(source, cache.NewRedisAnalyticsCache(client, 0), ForecastDefaults{
		WindowMonths:   1,
		TargetMonths:   3,
		LeadTimeMonths: 1,
		BufferMonths:   2,
	})
	return svc, mr
}

func TestQueriesBeforeRefresh(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{tables: sampleTables()})

	_, err := svc.Current()
	assert.ErrorIs(t, err, ErrNoDataset)

	_, err = svc.Forecast(context.Background(), domain.ForecastQuery{})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestRefreshBuildsSummary(t *testing.T) {
	source := &fakeSource{tables: sampleTables()}
	svc, _ := newTestService(t, source)

	summary, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Version)
	assert.Equal(t, "fake", summary.Source)
	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 2, summary.Catalog)
	assert.Equal(t, 3, summary.Movements)
	assert.Equal(t, 1, summary.Sales)
	assert.Equal(t, []string{"Ajuste", "Venta"}, summary.Motives)
	assert.Equal(t, map[string]int{"items": 3, "catalog": 2, "movements": 3, "sales": 1}, summary.RawRows)
	require.NotNil(t, summary.FirstDate)
	require.NotNil(t, summary.LastDate)
	assert.Equal(t, "2024-05-17", summary.FirstDate.Format("2006-01-02"))
	assert.Equal(t, "2024-06-15", summary.LastDate.Format("2006-01-02"))
	assert.Equal(t, len(analytics.Tables), source.loads)
}

func TestRefreshFailureKeepsPreviousDataset(t *testing.T) {
	source := &fakeSource{tables: sampleTables()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()

	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	source.err = errors.New("sheet unavailable")
	_, err = svc.Refresh(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet unavailable")

	ds, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.Summary.Version)
}

func TestForecastUsesDefaultsAndCache(t *testing.T) {
	svc, mr := newTestService(t, &fakeSource{tables: sampleTables()})
	ctx := context.Background()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	forecast, err := svc.Forecast(ctx, domain.ForecastQuery{})
	require.NoError(t, err)
	require.NotNil(t, forecast)
	assert.Equal(t, 3.0, forecast.CoverageTarget)
	assert.Equal(t, "2024-05-15", forecast.WindowStart.Format("2006-01-02"))

	codes := make([]string, len(forecast.Rows))
	for i, r := range forecast.Rows {
		codes[i] = r.Code
	}
	assert.ElementsMatch(t, []string{"A", "B"}, codes)
	assert.Equal(t, "Tornillo 3mm", forecast.Rows[0].Desc)

	keys := mr.Keys()
	assert.Contains(t, keys, "stockwise:dataset_version")
	memoKeys := 0
	for _, k := range keys {
		if k != "stockwise:dataset_version" {
			memoKeys++
		}
	}
	assert.Equal(t, 1, memoKeys)

	again, err := svc.Forecast(ctx, domain.ForecastQuery{})
	require.NoError(t, err)
	assert.Equal(t, len(forecast.Rows), len(again.Rows))
	assert.Equal(t, forecast.Rows[0].QtyToBuy, again.Rows[0].QtyToBuy)
	assert.Len(t, mr.Keys(), 2)
}

func TestForecastMotiveDefault(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{tables: sampleTables()})
	svc.defaults.Motives = []string{"Venta"}

	p := svc.forecastParams(domain.ForecastQuery{TargetMonths: domain.Ptr(6.0)})
	assert.Equal(t, 6.0, p.TargetMonths)
	assert.Equal(t, 1, p.WindowMonths)
	assert.True(t, p.Motives.Includes("Venta"))
	assert.False(t, p.Motives.Includes("Ajuste"))

	explicit := svc.forecastParams(domain.ForecastQuery{Motives: domain.Ptr(analytics.Subset("Ajuste"))})
	assert.True(t, explicit.Motives.Includes("Ajuste"))
	assert.False(t, explicit.Motives.Includes("Venta"))

	every := svc.forecastParams(domain.ForecastQuery{Motives: domain.Ptr(analytics.All[string]())})
	assert.True(t, every.Motives.IsAll())
}

func TestForecastKeepsExplicitZeroes(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{tables: sampleTables()})
	ctx := context.Background()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	defaults, err := svc.Forecast(ctx, domain.ForecastQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3.0, defaults.MinCoverageMonths)

	noBuffer, err := svc.Forecast(ctx, domain.ForecastQuery{BufferMonths: domain.Ptr(0.0)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, noBuffer.MinCoverageMonths)

	halfBuffer, err := svc.Forecast(ctx, domain.ForecastQuery{BufferMonths: domain.Ptr(0.5)})
	require.NoError(t, err)
	assert.Equal(t, 1.5, halfBuffer.MinCoverageMonths)

	noLead, err := svc.Forecast(ctx, domain.ForecastQuery{
		LeadTimeMonths: domain.Ptr(0.0),
		BufferMonths:   domain.Ptr(0.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, noLead.MinCoverageMonths)
	assert.Equal(t, 3.0, noLead.CoverageTarget)
}

func TestRefreshInvalidatesByVersion(t *testing.T) {
	svc, mr := newTestService(t, &fakeSource{tables: sampleTables()})
	ctx := context.Background()

	_, err := svc.Refresh(ctx)
	require.NoError(t, err)
	first, err := svc.TopCustomers(ctx, domain.RankingQuery{})
	require.NoError(t, err)
	assert.Equal(t, []analytics.Share{{Label: "Juan", Value: 100}}, first)

	assert.Len(t, mr.Keys(), 2)

	summary, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Version)
	assert.Equal(t, []string{"stockwise:dataset_version"}, mr.Keys())
}

func TestDistributionFiltersItems(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{tables: sampleTables()})
	ctx := context.Background()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	all, err := svc.Distribution(ctx, domain.RankingQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Catalog.CatalogItems)
	assert.Equal(t, 1, all.Catalog.NonCatalogItems)
	assert.InDelta(t, 15.0, all.Catalog.NonCatalogValue, 1e-9)

	onlyA, err := svc.Distribution(ctx, domain.RankingQuery{Items: analytics.Subset("A")})
	require.NoError(t, err)
	assert.Equal(t, 1, onlyA.Catalog.CatalogItems)
	assert.Equal(t, 0, onlyA.Catalog.NonCatalogItems)
	assert.Equal(t, []analytics.Share{{Label: "Acme", Value: 30}}, onlyA.Brands)
}

func TestSeriesAndCosts(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{tables: sampleTables()})
	ctx := context.Background()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	series, err := svc.InventorySeries(ctx, domain.SeriesQuery{Granularity: analytics.Month, Items: analytics.Subset("A")})
	require.NoError(t, err)
	require.NotNil(t, series)
	assert.Equal(t, []string{"2024-05", "2024-06"}, series.PeriodKeys)
	assert.Equal(t, 80.0, series.LastUnits)

	costs, err := svc.SupplierCosts(ctx, domain.CostQuery{Granularity: analytics.Month})
	require.NoError(t, err)
	require.NotNil(t, costs)
	require.Len(t, costs.Suppliers, 1)
	assert.Equal(t, "Acme SA", costs.Suppliers[0].Supplier)

	none, err := svc.InventorySeries(ctx, domain.SeriesQuery{Granularity: analytics.Month, Items: analytics.Subset("missing")})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestValidateForecastQuery(t *testing.T) {
	assert.NoError(t, ValidateForecastQuery(domain.ForecastQuery{}))
	assert.NoError(t, ValidateForecastQuery(domain.ForecastQuery{TargetMonths: domain.Ptr(3.0)}))
	assert.NoError(t, ValidateForecastQuery(domain.ForecastQuery{BufferMonths: domain.Ptr(0.0), WindowMonths: domain.Ptr(maxWindowMonths)}))

	assert.Error(t, ValidateForecastQuery(domain.ForecastQuery{WindowMonths: domain.Ptr(-1)}))
	assert.Error(t, ValidateForecastQuery(domain.ForecastQuery{WindowMonths: domain.Ptr(0)}))
	assert.ErrorContains(t, ValidateForecastQuery(domain.ForecastQuery{WindowMonths: domain.Ptr(200000)}), "window_months")
	assert.Error(t, ValidateForecastQuery(domain.ForecastQuery{BufferMonths: domain.Ptr(-0.5)}))
	assert.Error(t, ValidateForecastQuery(domain.ForecastQuery{LeadTimeMonths: domain.Ptr(math.NaN())}))
}
