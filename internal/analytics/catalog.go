package analytics

import "math"

var (
	itemDescAliases        = aliases("descripcion", "desc", "nombre", "detalle")
	itemBrandAliases       = aliases("marca", "brand")
	itemLineAliases        = aliases("linea", "rubro", "familia", "line")
	itemListPriceAliases   = aliases("precio lista", "precio de lista", "pvp", "precio")
	itemStockAliases       = aliases("stock", "stock actual", "existencia", "saldo")
	itemAvgCostAliases     = aliases("costo promedio", "costo prom", "ppp")
	itemLastCostAliases    = aliases("ultimo costo", "costo ultima compra", "costo ultimo")
	itemReplCostAliases    = aliases("costo reposicion", "costo de reposicion")
	catalogNameAliases     = aliases("nombre", "descripcion", "desc")
	catalogBrandAliases    = aliases("marca", "brand")
	defaultStockWhenAbsent = 0.0
)

// NormalizeCatalog converts raw catalog rows into entries. Rows without a
// code are dropped.
func NormalizeCatalog(rows []Row) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(rows))
	for _, row := range rows {
		r := newFieldReader(row, nil)
		code := r.code(itemCodeAliases)
		if code == "" {
			continue
		}
		entries = append(entries, CatalogEntry{
			Code:  code,
			Name:  r.str(catalogNameAliases),
			Brand: r.str(catalogBrandAliases),
		})
	}
	return entries
}

// firstCost returns the first finite, non-zero candidate, or 0.
func firstCost(candidates ...float64) float64 {
	for _, c := range candidates {
		if isFinite(c) && c != 0 {
			return c
		}
	}
	return 0
}

// BuildItemsIndex merges the items master list with the optional catalog.
// A catalog entry marks its item as catalog-listed and overrides its name and
// brand. Catalog entries missing from the items list are appended with zero
// stock. Duplicate codes keep their first occurrence.
func BuildItemsIndex(items, catalog []Row) ItemsIndex {
	entries := NormalizeCatalog(catalog)
	byCode := make(map[string]CatalogEntry, len(entries))
	for _, e := range entries {
		if _, dup := byCode[e.Code]; !dup {
			byCode[e.Code] = e
		}
	}

	index := ItemsIndex{
		Items:      make([]ItemRecord, 0, len(items)),
		CostByCode: make(map[string]float64, len(items)),
	}
	for _, row := range items {
		r := newFieldReader(row, nil)
		code := r.code(itemCodeAliases)
		if code == "" {
			continue
		}
		if _, dup := index.CostByCode[code]; dup {
			continue
		}

		stock := r.num(itemStockAliases)
		if !isFinite(stock) {
			stock = defaultStockWhenAbsent
		}
		lastCost := r.num(itemLastCostAliases)
		rec := ItemRecord{
			Code:        code,
			Desc:        r.str(itemDescAliases),
			Brand:       r.str(itemBrandAliases),
			Line:        r.str(itemLineAliases),
			ListPrice:   r.num(itemListPriceAliases),
			StockOnHand: stock,
			AverageCost: firstCost(r.num(itemAvgCostAliases), lastCost, r.num(itemReplCostAliases)),
			LastCost:    lastCost,
		}
		if e, ok := byCode[code]; ok {
			rec.IsCatalog = true
			if e.Name != "" {
				rec.Desc = e.Name
			}
			if e.Brand != "" {
				rec.Brand = e.Brand
			}
		}
		index.Items = append(index.Items, rec)
		index.CostByCode[code] = rec.AverageCost
	}

	for _, e := range entries {
		if _, ok := index.CostByCode[e.Code]; ok {
			continue
		}
		index.Items = append(index.Items, ItemRecord{
			Code:      e.Code,
			Desc:      e.Name,
			Brand:     e.Brand,
			IsCatalog: true,
			ListPrice: math.NaN(),
			LastCost:  math.NaN(),
		})
		index.CostByCode[e.Code] = 0
	}
	return index
}
