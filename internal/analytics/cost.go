package analytics

import (
	"math"
	"sort"
)

const (
	supplierSeriesLimit = 6
	UnknownSupplier     = "Sin proveedor"
)

// CostParams narrows the cost and price series builders.
type CostParams struct {
	Granularity Granularity
	Items       Filter[string]
}

type weightedSum struct {
	sum    float64
	weight float64
}

func (w *weightedSum) add(v, weight float64) {
	w.sum += v * weight
	w.weight += weight
}

func (w weightedSum) average() *float64 {
	if w.weight <= 0 {
		return nil
	}
	avg := w.sum / w.weight
	if !isFinite(avg) {
		return nil
	}
	return &avg
}

func supplierLabel(m MovementEvent) string {
	switch {
	case m.Counterparty != "":
		return m.Counterparty
	case m.Reference != "":
		return m.Reference
	default:
		return UnknownSupplier
	}
}

// purchaseUnitCost returns the per-unit cost of an incoming movement: the
// unit cost when non-zero, otherwise total over quantity.
func purchaseUnitCost(m MovementEvent, qty float64) (float64, bool) {
	unit := math.Abs(m.UnitCost)
	if !isFinite(unit) || unit == 0 {
		unit = math.Abs(m.Total) / qty
	}
	if !isFinite(unit) || unit <= 0 {
		return 0, false
	}
	return unit, true
}

// BuildSupplierCostSeries computes the quantity weighted average unit cost
// per supplier per period from incoming movements. Only the six suppliers with
// the largest historical quantity are kept; the rest are dropped, not folded
// into an "others" series. It returns nil when no purchase qualifies.
func BuildSupplierCostSeries(movements []MovementEvent, p CostParams) *SupplierCostSeries {
	buckets := make(map[string]map[string]*weightedSum)
	totals := make(map[string]float64)

	for _, m := range movements {
		if !p.Items.Includes(m.Item) || Direction(m) <= 0 {
			continue
		}
		qty := math.Abs(m.Qty)
		if !isFinite(qty) || qty == 0 {
			continue
		}
		unit, ok := purchaseUnitCost(m, qty)
		if !ok {
			continue
		}

		key := PeriodKey(m.Date, p.Granularity)
		bySupplier, ok := buckets[key]
		if !ok {
			bySupplier = make(map[string]*weightedSum)
			buckets[key] = bySupplier
		}
		supplier := supplierLabel(m)
		acc, ok := bySupplier[supplier]
		if !ok {
			acc = &weightedSum{}
			bySupplier[supplier] = acc
		}
		acc.add(unit, qty)
		totals[supplier] += qty
	}
	if len(totals) == 0 {
		return nil
	}

	suppliers := make([]string, 0, len(totals))
	for s := range totals {
		suppliers = append(suppliers, s)
	}
	sort.Slice(suppliers, func(i, j int) bool {
		if totals[suppliers[i]] != totals[suppliers[j]] {
			return totals[suppliers[i]] > totals[suppliers[j]]
		}
		return suppliers[i] < suppliers[j]
	})
	if len(suppliers) > supplierSeriesLimit {
		suppliers = suppliers[:supplierSeriesLimit]
	}

	// Periods where only dropped suppliers bought are not emitted.
	retained := make(map[string]map[string]*weightedSum, len(buckets))
	for key, bySupplier := range buckets {
		for _, s := range suppliers {
			if _, ok := bySupplier[s]; ok {
				retained[key] = bySupplier
				break
			}
		}
	}
	keys, starts := sortedPeriods(retained, p.Granularity)

	out := &SupplierCostSeries{
		PeriodKeys:   keys,
		PeriodStarts: starts,
		Suppliers:    make([]SupplierSeries, 0, len(suppliers)),
	}
	for _, s := range suppliers {
		points := make([]*float64, len(keys))
		for i, key := range keys {
			if acc, ok := retained[key][s]; ok {
				points[i] = acc.average()
			}
		}
		out.Suppliers = append(out.Suppliers, SupplierSeries{
			Supplier: s,
			TotalQty: totals[s],
			Points:   points,
		})
	}
	return out
}

// BuildSalesPriceSeries computes quantity weighted per-unit gross price, cost
// and net-of-discount price per period. Each measure is averaged on its own,
// so a bucket can have a price but no cost. It returns nil when no sale has
// positive units.
func BuildSalesPriceSeries(sales []SaleEvent, p CostParams) *PriceSeries {
	type bucket struct {
		price weightedSum
		cost  weightedSum
		net   weightedSum
	}
	buckets := make(map[string]*bucket)

	for _, s := range sales {
		if !p.Items.Includes(s.Item) {
			continue
		}
		units := s.Units
		if !isFinite(units) || units <= 0 {
			continue
		}
		key := PeriodKey(s.Date, p.Granularity)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}

		price := s.GrossSale / units
		if isFinite(price) {
			b.price.add(price, units)
			discount := s.TotalDiscount / units
			if !isFinite(discount) {
				discount = 0
			}
			b.net.add(price-discount, units)
		}
		if cost := s.TotalCost / units; isFinite(cost) {
			b.cost.add(cost, units)
		}
	}
	if len(buckets) == 0 {
		return nil
	}

	keys, starts := sortedPeriods(buckets, p.Granularity)
	out := &PriceSeries{
		PeriodKeys:   keys,
		PeriodStarts: starts,
		Price:        make([]*float64, len(keys)),
		Cost:         make([]*float64, len(keys)),
		Net:          make([]*float64, len(keys)),
	}
	for i, key := range keys {
		b := buckets[key]
		out.Price[i] = b.price.average()
		out.Cost[i] = b.cost.average()
		out.Net[i] = b.net.average()
	}
	return out
}
