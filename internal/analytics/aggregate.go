package analytics

import (
	"sort"
	"strings"
)

const (
	OthersLabel     = "Otros"
	UnknownLine     = "Sin línea"
	UnknownCustomer = "Sin cliente"
)

// TopN sorts shares by descending value (ties by label), keeps the first n
// and folds the remainder into a single trailing share labelled othersLabel.
// Input shares already labelled othersLabel join that share instead of being
// ranked. Non-finite values are skipped. A non-positive n keeps everything.
func TopN(shares []Share, n int, othersLabel string) []Share {
	others := Share{Label: othersLabel}
	hasOthers := false
	sorted := make([]Share, 0, len(shares))
	for _, s := range shares {
		if !isFinite(s.Value) {
			continue
		}
		if s.Label == othersLabel {
			others.Value += s.Value
			hasOthers = true
			continue
		}
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].Label < sorted[j].Label
	})
	if n > 0 && len(sorted) > n {
		for _, s := range sorted[n:] {
			others.Value += s.Value
		}
		sorted = sorted[:n:n]
		hasOthers = true
	}
	if hasOthers {
		sorted = append(sorted, others)
	}
	return sorted
}

// CatalogSplit compares catalog and non-catalog items.
type CatalogSplit struct {
	CatalogItems    int     `json:"catalog_items"`
	CatalogUnits    float64 `json:"catalog_units"`
	CatalogValue    float64 `json:"catalog_value"`
	NonCatalogItems int     `json:"non_catalog_items"`
	NonCatalogUnits float64 `json:"non_catalog_units"`
	NonCatalogValue float64 `json:"non_catalog_value"`
}

func stockValue(item ItemRecord) (float64, bool) {
	v := item.StockOnHand * item.AverageCost
	return v, isFinite(v)
}

// SplitCatalog totals item count, units and stock value on each side of the
// catalog boundary.
func SplitCatalog(index ItemsIndex) CatalogSplit {
	var split CatalogSplit
	for _, item := range index.Items {
		units := item.StockOnHand
		if !isFinite(units) {
			units = 0
		}
		value, ok := stockValue(item)
		if !ok {
			value = 0
		}
		if item.IsCatalog {
			split.CatalogItems++
			split.CatalogUnits += units
			split.CatalogValue += value
		} else {
			split.NonCatalogItems++
			split.NonCatalogUnits += units
			split.NonCatalogValue += value
		}
	}
	return split
}

func groupStockValue(index ItemsIndex, n int, label func(ItemRecord) string) []Share {
	totals := make(map[string]float64)
	for _, item := range index.Items {
		value, ok := stockValue(item)
		if !ok || value <= 0 {
			continue
		}
		totals[label(item)] += value
	}
	return TopN(sharesOf(totals), n, OthersLabel)
}

func sharesOf(totals map[string]float64) []Share {
	shares := make([]Share, 0, len(totals))
	for label, v := range totals {
		shares = append(shares, Share{Label: label, Value: v})
	}
	return shares
}

func labelOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

// LineDistribution is the stock value per product line, top n plus Otros.
func LineDistribution(index ItemsIndex, n int) []Share {
	return groupStockValue(index, n, func(item ItemRecord) string {
		return labelOr(item.Line, UnknownLine)
	})
}

// BrandDistribution is the stock value per brand, top n plus Otros.
func BrandDistribution(index ItemsIndex, n int) []Share {
	return groupStockValue(index, n, func(item ItemRecord) string {
		return labelOr(item.Brand, UnknownBrand)
	})
}

// TopCustomers ranks customers by gross sales, top n plus Otros.
func TopCustomers(sales []SaleEvent, n int, items Filter[string]) []Share {
	totals := make(map[string]float64)
	for _, s := range sales {
		if !items.Includes(s.Item) || !isFinite(s.GrossSale) {
			continue
		}
		totals[labelOr(s.Customer, UnknownCustomer)] += s.GrossSale
	}
	return TopN(sharesOf(totals), n, OthersLabel)
}
