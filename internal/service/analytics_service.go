package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/stockwise/internal/analytics"
	"github.com/andresuchdata/stockwise/internal/cache"
	"github.com/andresuchdata/stockwise/internal/domain"
)

// ErrNoDataset is returned by queries made before the first successful refresh.
var ErrNoDataset = errors.New("no dataset loaded")

const (
	defaultRankingLimit = 8
	maxForecastMonths   = 1200

	// The forecaster walks every day of the window for each catalog item.
	maxWindowMonths = 120
)

// RowSource supplies the raw rows of one dataset table.
type RowSource interface {
	Name() string
	LoadTable(ctx context.Context, table analytics.Table) ([]analytics.Row, error)
}

// ForecastDefaults fill in forecast parameters a query leaves unset.
type ForecastDefaults struct {
	WindowMonths   int
	TargetMonths   float64
	LeadTimeMonths float64
	BufferMonths   float64
	Motives        []string
}

// Dataset is an immutable, normalized snapshot. A refresh replaces it whole.
type Dataset struct {
	Summary   domain.DatasetSummary
	Index     analytics.ItemsIndex
	Movements []analytics.MovementEvent
	Sales     []analytics.SaleEvent
}

// AnalyticsService loads datasets and serves engine results through the
// memo cache.
type AnalyticsService struct {
	source   RowSource
	cache    cache.AnalyticsCache
	defaults ForecastDefaults
	now      func() time.Time

	refreshMu sync.Mutex
	mu        sync.RWMutex
	current   *Dataset
}

func NewAnalyticsService(source RowSource, cacheImpl cache.AnalyticsCache, defaults ForecastDefaults) *AnalyticsService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalyticsCache()
	}
	return &AnalyticsService{
		source:   source,
		cache:    cacheImpl,
		defaults: defaults,
		now:      time.Now,
	}
}

// Refresh reloads every table from the source, normalizes it and swaps it in
// under a new version. On failure the previous dataset stays current.
func (s *AnalyticsService) Refresh(ctx context.Context) (domain.DatasetSummary, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := s.now()
	raw, counts, err := s.load(ctx)
	if err != nil {
		return domain.DatasetSummary{}, err
	}

	version, err := s.cache.NextVersion(ctx)
	shared := err == nil
	if !shared {
		log.Warn().Err(err).Msg("analytics: cache version bump failed, using local version")
		version = s.localVersion() + 1
	}

	ds := buildDataset(raw)
	ds.Summary.Version = version
	ds.Summary.Source = s.source.Name()
	ds.Summary.LoadedAt = s.now().UTC()
	ds.Summary.Duration = s.now().Sub(start).Round(time.Millisecond).String()
	ds.Summary.RawRows = counts

	s.mu.Lock()
	s.current = ds
	s.mu.Unlock()

	if shared {
		if err := s.cache.PurgeStale(ctx, version); err != nil {
			log.Warn().Err(err).Int64("version", version).Msg("analytics: purging stale cache entries failed")
		}
	}

	log.Info().
		Int64("version", version).
		Str("source", ds.Summary.Source).
		Int("items", ds.Summary.Items).
		Int("movements", ds.Summary.Movements).
		Int("sales", ds.Summary.Sales).
		Str("duration", ds.Summary.Duration).
		Msg("dataset refreshed")
	return ds.Summary, nil
}

func (s *AnalyticsService) localVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return s.current.Summary.Version
}

// load fetches all tables concurrently.
func (s *AnalyticsService) load(ctx context.Context) (analytics.RawDataset, map[string]int, error) {
	results := make([][]analytics.Row, len(analytics.Tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, table := range analytics.Tables {
		i, table := i, table
		g.Go(func() error {
			rows, err := s.source.LoadTable(gctx, table)
			if err != nil {
				return fmt.Errorf("load %s: %w", table, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return analytics.RawDataset{}, nil, err
	}

	var raw analytics.RawDataset
	counts := make(map[string]int, len(analytics.Tables))
	for i, table := range analytics.Tables {
		raw.Set(table, results[i])
		counts[string(table)] = len(results[i])
	}
	return raw, counts, nil
}

func buildDataset(raw analytics.RawDataset) *Dataset {
	ds := &Dataset{
		Index:     analytics.BuildItemsIndex(raw.Items, raw.Catalog),
		Movements: analytics.NormalizeMovements(raw.Movements),
		Sales:     analytics.NormalizeSales(raw.Sales),
	}

	catalog := 0
	for _, item := range ds.Index.Items {
		if item.IsCatalog {
			catalog++
		}
	}

	motives := make(map[string]struct{})
	var first, last time.Time
	for i, m := range ds.Movements {
		if motive := strings.TrimSpace(m.Motive); motive != "" {
			motives[motive] = struct{}{}
		}
		if i == 0 || m.Date.Before(first) {
			first = m.Date
		}
		if i == 0 || m.Date.After(last) {
			last = m.Date
		}
	}
	motiveList := make([]string, 0, len(motives))
	for motive := range motives {
		motiveList = append(motiveList, motive)
	}
	sort.Strings(motiveList)

	ds.Summary = domain.DatasetSummary{
		Items:     len(ds.Index.Items),
		Catalog:   catalog,
		Movements: len(ds.Movements),
		Sales:     len(ds.Sales),
		Motives:   motiveList,
	}
	if len(ds.Movements) > 0 {
		ds.Summary.FirstDate = &first
		ds.Summary.LastDate = &last
	}
	return ds
}

// Current returns the loaded dataset.
func (s *AnalyticsService) Current() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDataset
	}
	return s.current, nil
}

// memoize serves kind/params from the cache for the dataset's version, or
// computes and stores it. Cache failures are logged and bypassed.
func memoize[T any](ctx context.Context, s *AnalyticsService, ds *Dataset, kind string, params any, compute func() T) T {
	var out T
	found, err := s.cache.Get(ctx, ds.Summary.Version, kind, params, &out)
	if err == nil && found {
		return out
	} else if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("analytics: cache get failed")
	}

	out = compute()

	if err := s.cache.Set(ctx, ds.Summary.Version, kind, params, out); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("analytics: cache set failed")
	}
	return out
}

// InventorySeries returns nil when no movement matches the query.
func (s *AnalyticsService) InventorySeries(ctx context.Context, q domain.SeriesQuery) (*analytics.InventorySeries, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return memoize(ctx, s, ds, "inventory_series", q, func() *analytics.InventorySeries {
		return analytics.BuildSeries(ds.Movements, analytics.SeriesParams{
			Granularity: q.Granularity,
			RangeStart:  q.RangeStart,
			RangeEnd:    q.RangeEnd,
			Items:       q.Items,
		})
	}), nil
}

func (s *AnalyticsService) SupplierCosts(ctx context.Context, q domain.CostQuery) (*analytics.SupplierCostSeries, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return memoize(ctx, s, ds, "supplier_costs", q, func() *analytics.SupplierCostSeries {
		return analytics.BuildSupplierCostSeries(ds.Movements, analytics.CostParams{Granularity: q.Granularity, Items: q.Items})
	}), nil
}

func (s *AnalyticsService) SalesPrices(ctx context.Context, q domain.CostQuery) (*analytics.PriceSeries, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return memoize(ctx, s, ds, "sales_prices", q, func() *analytics.PriceSeries {
		return analytics.BuildSalesPriceSeries(ds.Sales, analytics.CostParams{Granularity: q.Granularity, Items: q.Items})
	}), nil
}

func (s *AnalyticsService) TopCustomers(ctx context.Context, q domain.RankingQuery) ([]analytics.Share, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	q.Limit = rankingLimit(q.Limit)
	return memoize(ctx, s, ds, "top_customers", q, func() []analytics.Share {
		return analytics.TopCustomers(ds.Sales, q.Limit, q.Items)
	}), nil
}

func (s *AnalyticsService) Distribution(ctx context.Context, q domain.RankingQuery) (domain.Distribution, error) {
	ds, err := s.Current()
	if err != nil {
		return domain.Distribution{}, err
	}
	q.Limit = rankingLimit(q.Limit)
	return memoize(ctx, s, ds, "distribution", q, func() domain.Distribution {
		index := ds.Index
		if !q.Items.IsAll() {
			index = filterIndex(ds.Index, q.Items)
		}
		return domain.Distribution{
			Catalog: analytics.SplitCatalog(index),
			Lines:   analytics.LineDistribution(index, q.Limit),
			Brands:  analytics.BrandDistribution(index, q.Limit),
		}
	}), nil
}

func filterIndex(index analytics.ItemsIndex, items analytics.Filter[string]) analytics.ItemsIndex {
	out := analytics.ItemsIndex{CostByCode: index.CostByCode}
	for _, item := range index.Items {
		if items.Includes(item.Code) {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

func rankingLimit(n int) int {
	if n <= 0 {
		return defaultRankingLimit
	}
	return n
}

// Forecast returns nil when the dataset has no movements.
func (s *AnalyticsService) Forecast(ctx context.Context, q domain.ForecastQuery) (*analytics.Forecast, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	params := s.forecastParams(q)
	return memoize(ctx, s, ds, "forecast", params, func() *analytics.Forecast {
		return analytics.BuildForecast(ds.Index, ds.Movements, params)
	}), nil
}

// forecastParams resolves unset query fields against the configured defaults.
func (s *AnalyticsService) forecastParams(q domain.ForecastQuery) analytics.ForecastParams {
	p := analytics.ForecastParams{
		WindowMonths:   s.defaults.WindowMonths,
		TargetMonths:   s.defaults.TargetMonths,
		LeadTimeMonths: s.defaults.LeadTimeMonths,
		BufferMonths:   s.defaults.BufferMonths,
		Items:          q.Items,
		Motives:        analytics.All[string](),
	}
	if len(s.defaults.Motives) > 0 {
		p.Motives = analytics.Subset(s.defaults.Motives...)
	}
	if q.WindowMonths != nil {
		p.WindowMonths = *q.WindowMonths
	}
	if q.TargetMonths != nil {
		p.TargetMonths = *q.TargetMonths
	}
	if q.LeadTimeMonths != nil {
		p.LeadTimeMonths = *q.LeadTimeMonths
	}
	if q.BufferMonths != nil {
		p.BufferMonths = *q.BufferMonths
	}
	if q.Motives != nil {
		p.Motives = *q.Motives
	}
	return p
}

// ValidateForecastQuery rejects out of range or non-finite values among the
// fields the query sets.
func ValidateForecastQuery(q domain.ForecastQuery) error {
	if q.WindowMonths != nil && (*q.WindowMonths < 1 || *q.WindowMonths > maxWindowMonths) {
		return fmt.Errorf("window_months must be between 1 and %d", maxWindowMonths)
	}
	months := []struct {
		name  string
		value *float64
	}{
		{"target_months", q.TargetMonths},
		{"lead_time_months", q.LeadTimeMonths},
		{"buffer_months", q.BufferMonths},
	}
	for _, m := range months {
		if m.value == nil {
			continue
		}
		if v := *m.value; v < 0 || math.IsNaN(v) || v > maxForecastMonths {
			return fmt.Errorf("%s must be between 0 and %d", m.name, maxForecastMonths)
		}
	}
	return nil
}
