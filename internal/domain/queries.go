// internal/domain/queries.go
package domain

import (
	"time"

	"github.com/andresuchdata/stockwise/internal/analytics"
)

// SeriesQuery selects an inventory series.
type SeriesQuery struct {
	Granularity analytics.Granularity    `json:"granularity"`
	RangeStart  *time.Time               `json:"range_start,omitempty"`
	RangeEnd    *time.Time               `json:"range_end,omitempty"`
	Items       analytics.Filter[string] `json:"items"`
}

// CostQuery selects a supplier cost or sales price series.
type CostQuery struct {
	Granularity analytics.Granularity    `json:"granularity"`
	Items       analytics.Filter[string] `json:"items"`
}

// ForecastQuery holds replenishment parameters. A nil field falls back to
// the configured default; an explicit zero is kept. Motives set to All counts
// every outgoing motive even when default motives are configured.
type ForecastQuery struct {
	WindowMonths   *int                      `json:"window_months,omitempty"`
	TargetMonths   *float64                  `json:"target_months,omitempty"`
	LeadTimeMonths *float64                  `json:"lead_time_months,omitempty"`
	BufferMonths   *float64                  `json:"buffer_months,omitempty"`
	Items          analytics.Filter[string]  `json:"items"`
	Motives        *analytics.Filter[string] `json:"motives,omitempty"`
}

// Ptr returns a pointer to v for filling optional query fields.
func Ptr[T any](v T) *T {
	return &v
}

// RankingQuery limits a distribution or customer ranking to Limit entries
// plus an Otros bucket.
type RankingQuery struct {
	Limit int                      `json:"limit"`
	Items analytics.Filter[string] `json:"items"`
}

// Distribution is the stock value breakdown of the current dataset.
type Distribution struct {
	Catalog analytics.CatalogSplit `json:"catalog"`
	Lines   []analytics.Share      `json:"lines"`
	Brands  []analytics.Share      `json:"brands"`
}

// DatasetSummary describes the loaded dataset.
type DatasetSummary struct {
	Version   int64          `json:"version"`
	Source    string         `json:"source"`
	LoadedAt  time.Time      `json:"loaded_at"`
	Duration  string         `json:"duration"`
	RawRows   map[string]int `json:"raw_rows"`
	Items     int            `json:"items"`
	Catalog   int            `json:"catalog_items"`
	Movements int            `json:"movements"`
	Sales     int            `json:"sales"`
	Motives   []string       `json:"motives"`
	FirstDate *time.Time     `json:"first_date,omitempty"`
	LastDate  *time.Time     `json:"last_date,omitempty"`
}
