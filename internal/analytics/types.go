package analytics

import (
	"time"
)

// Row is a loosely typed record as delivered by a spreadsheet or database
// source. Blank cells are nil.
type Row map[string]any

// Table names one of the row sets a dataset is assembled from.
type Table string

const (
	TableItems     Table = "items"
	TableCatalog   Table = "catalog"
	TableMovements Table = "movements"
	TableSales     Table = "sales"
)

// Tables lists every table in load order.
var Tables = []Table{TableItems, TableCatalog, TableMovements, TableSales}

// Optional reports whether a missing table still yields a usable dataset.
func (t Table) Optional() bool {
	return t == TableCatalog || t == TableSales
}

// RawDataset groups the four row sets a data refresh works from.
type RawDataset struct {
	Items     []Row
	Catalog   []Row
	Movements []Row
	Sales     []Row
}

// Set stores rows under table. Unknown tables are ignored.
func (d *RawDataset) Set(table Table, rows []Row) {
	switch table {
	case TableItems:
		d.Items = rows
	case TableCatalog:
		d.Catalog = rows
	case TableMovements:
		d.Movements = rows
	case TableSales:
		d.Sales = rows
	}
}

// MovementEvent is a single inventory transaction.
// Direction is derived from Kind/Qty/Total, never stored.
type MovementEvent struct {
	Date         time.Time
	Item         string
	Qty          float64 // NaN when unparseable
	Total        float64 // NaN when unparseable
	UnitCost     float64 // NaN when unparseable
	PVPTotal     float64 // NaN when unparseable
	Reference    string
	Counterparty string
	Motive       string
	Kind         string
}

// SaleEvent is a single sales line.
type SaleEvent struct {
	Date          time.Time
	Item          string
	Units         float64
	GrossSale     float64
	TotalCost     float64
	TotalDiscount float64
	Customer      string
}

// CatalogEntry is an authoritative catalog listing.
type CatalogEntry struct {
	Code  string
	Name  string
	Brand string
}

// ItemRecord holds the per-item attributes every builder joins against.
type ItemRecord struct {
	Code        string  `json:"code"`
	Desc        string  `json:"desc"`
	Brand       string  `json:"brand"`
	IsCatalog   bool    `json:"is_catalog"`
	Line        string  `json:"line"`
	ListPrice   float64 `json:"-"` // NaN when unknown
	StockOnHand float64 `json:"stock_on_hand"`
	AverageCost float64 `json:"average_cost"`
	LastCost    float64 `json:"-"` // NaN when unknown
}

// ItemsIndex is the join target for all analytics. Builders only read it.
type ItemsIndex struct {
	Items      []ItemRecord
	CostByCode map[string]float64
}

// InventorySeries is the cumulative stock series over a date range.
type InventorySeries struct {
	PeriodKeys      []string    `json:"period_keys"`
	PeriodStarts    []time.Time `json:"period_starts"`
	CumulativeUnits []float64   `json:"cumulative_units"`
	CumulativeValue []float64   `json:"cumulative_value"`
	LastUnits       float64     `json:"last_units"`
	LastValue       float64     `json:"last_value"`
}

// SupplierSeries is one supplier's weighted average unit cost per period.
// Points is aligned with SupplierCostSeries.PeriodKeys; nil means no purchases.
type SupplierSeries struct {
	Supplier string     `json:"supplier"`
	TotalQty float64    `json:"total_qty"`
	Points   []*float64 `json:"points"`
}

// SupplierCostSeries holds the retained suppliers' cost series.
type SupplierCostSeries struct {
	PeriodKeys   []string         `json:"period_keys"`
	PeriodStarts []time.Time      `json:"period_starts"`
	Suppliers    []SupplierSeries `json:"suppliers"`
}

// PriceSeries holds quantity weighted per-unit sale averages per period.
// Each slice is aligned with PeriodKeys; nil entries mean no data in that bucket.
type PriceSeries struct {
	PeriodKeys   []string    `json:"period_keys"`
	PeriodStarts []time.Time `json:"period_starts"`
	Price        []*float64  `json:"price"`
	Cost         []*float64  `json:"cost"`
	Net          []*float64  `json:"net"`
}

// ReplenishmentRow is the recommendation for one catalog item.
type ReplenishmentRow struct {
	Code               string   `json:"code"`
	Desc               string   `json:"desc"`
	Brand              string   `json:"brand"`
	Line               string   `json:"line"`
	CurrentStock       float64  `json:"current_stock"`
	BeforeWindowStock  float64  `json:"before_window_stock"`
	AvailableDays      int      `json:"available_days"`
	AvailableMonths    float64  `json:"available_months"`
	ConsumptionUnits   float64  `json:"consumption_units"`
	MonthlyConsumption float64  `json:"monthly_consumption"`
	MonthsCoverage     Coverage `json:"months_coverage"`
	ShouldBuy          bool     `json:"should_buy"`
	QtyToBuy           float64  `json:"qty_to_buy"`
	UnitCost           float64  `json:"unit_cost"`
	CostEstimate       float64  `json:"cost_estimate"`
}

// BrandRow rolls up items that need purchasing by brand.
type BrandRow struct {
	Brand        string  `json:"brand"`
	Items        int     `json:"items"`
	QtyToBuy     float64 `json:"qty_to_buy"`
	CostEstimate float64 `json:"cost_estimate"`
}

// Forecast is the replenishment result for a trailing window.
type Forecast struct {
	Rows              []ReplenishmentRow `json:"rows"`
	BrandRows         []BrandRow         `json:"brand_rows"`
	WindowStart       time.Time          `json:"window_start"`
	WindowEnd         time.Time          `json:"window_end"`
	MinCoverageMonths float64            `json:"min_coverage_months"`
	CoverageTarget    float64            `json:"coverage_target"`
}

// Share is a labelled value used by distribution charts.
type Share struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}
