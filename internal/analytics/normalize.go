package analytics

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Header aliases, tried in order. Matching ignores accents, case and spacing.
var (
	movementDateAliases   = aliases("fecha", "fecha movimiento", "fecha mov", "date")
	itemCodeAliases       = aliases("codigo", "codigo articulo", "cod articulo", "articulo", "item", "sku")
	movementQtyAliases    = aliases("cantidad", "cant", "unidades", "qty")
	movementTotalAliases  = aliases("total", "importe", "costo total", "importe total")
	unitCostAliases       = aliases("costo unitario", "precio unitario", "costo unit", "costo", "unit cost")
	pvpTotalAliases       = aliases("total pvp", "pvp total", "importe pvp", "pvp")
	referenceAliases      = aliases("referencia", "comprobante", "documento", "nro comprobante", "reference")
	counterpartyAliases   = aliases("proveedor", "tercero", "contraparte", "cliente proveedor", "razon social")
	motiveAliases         = aliases("motivo", "concepto", "motivo movimiento")
	kindAliases           = aliases("tipo", "tipo movimiento", "tipo mov", "kind")
	saleDateAliases       = aliases("fecha", "fecha venta", "fecha comprobante", "date")
	saleUnitsAliases      = aliases("unidades", "cantidad", "cant", "units")
	saleGrossAliases      = aliases("venta bruta", "total venta", "venta", "importe bruto", "importe")
	saleCostAliases       = aliases("costo total", "costo venta", "costo")
	saleDiscountAliases   = aliases("descuento total", "total descuento", "descuento", "bonificacion")
	saleCustomerAliases   = aliases("cliente", "razon social", "nombre cliente", "customer")
	minFuzzyKeyLength     = 3
	columnNameSanitizer   = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "\u00a0", "")
	excelEpoch            = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	excelMillisecondsADay = 86_400_000.0
	dateLayouts           = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
	}
)

func aliases(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = normalizeColumnName(n)
	}
	return out
}

// normalizeColumnName folds accents and case and drops separators so that
// "Código Artículo", "codigo_articulo" and "CODIGO ARTICULO" compare equal.
func normalizeColumnName(name string) string {
	name = foldAccents(strings.TrimSpace(strings.ToLower(name)))
	return columnNameSanitizer.Replace(name)
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var (
	movementColumns = columnSet(movementDateAliases, itemCodeAliases, movementQtyAliases,
		movementTotalAliases, unitCostAliases, pvpTotalAliases, referenceAliases,
		counterpartyAliases, motiveAliases, kindAliases)
	saleColumns = columnSet(saleDateAliases, itemCodeAliases, saleUnitsAliases,
		saleGrossAliases, saleCostAliases, saleDiscountAliases, saleCustomerAliases)
)

// columnSet collects every alias of a table so fuzzy matching can leave
// columns that belong to another field alone.
func columnSet(groups ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, g := range groups {
		for _, alias := range g {
			set[alias] = struct{}{}
		}
	}
	return set
}

// fieldReader resolves aliased columns of a single row.
type fieldReader struct {
	row     Row
	keys    []string            // normalized keys, sorted
	orig    map[string]string   // normalized key -> original key
	claimed map[string]struct{} // exact aliases of the table's fields
}

func newFieldReader(row Row, claimed map[string]struct{}) fieldReader {
	r := fieldReader{row: row, orig: make(map[string]string, len(row)), claimed: claimed}
	for k := range row {
		nk := normalizeColumnName(k)
		if prev, dup := r.orig[nk]; dup && prev < k {
			continue
		}
		r.orig[nk] = k
	}
	r.keys = make([]string, 0, len(r.orig))
	for nk := range r.orig {
		r.keys = append(r.keys, nk)
	}
	sort.Strings(r.keys)
	return r
}

// value tries every alias exactly, then falls back to a fuzzy containment
// match. Blank cells do not satisfy a match, and the fuzzy pass skips columns
// that are an exact alias of another field.
func (r fieldReader) value(names []string) (any, bool) {
	for _, alias := range names {
		if k, ok := r.orig[alias]; ok && !isBlank(r.row[k]) {
			return r.row[k], true
		}
	}
	for _, alias := range names {
		for _, nk := range r.keys {
			if len(nk) < minFuzzyKeyLength {
				continue
			}
			if _, taken := r.claimed[nk]; taken && !slices.Contains(names, nk) {
				continue
			}
			if !strings.Contains(nk, alias) && !strings.Contains(alias, nk) {
				continue
			}
			if v := r.row[r.orig[nk]]; !isBlank(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func (r fieldReader) str(names []string) string {
	v, ok := r.value(names)
	if !ok {
		return ""
	}
	return cellString(v)
}

// code reads an item code. Codes that arrive as "123.0" lose the fraction.
func (r fieldReader) code(names []string) string {
	s := r.str(names)
	if head, ok := strings.CutSuffix(s, ".0"); ok {
		if _, err := strconv.ParseInt(head, 10, 64); err == nil {
			return head
		}
	}
	return s
}

func (r fieldReader) num(names []string) float64 {
	v, ok := r.value(names)
	if !ok {
		return math.NaN()
	}
	return ParseNumber(v)
}

func (r fieldReader) date(names []string) (time.Time, bool) {
	v, ok := r.value(names)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(v)
}

// Field extracts the first non-blank value among aliases from row.
func Field(row Row, names ...string) (any, bool) {
	return newFieldReader(row, nil).value(aliases(names...))
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ParseNumber converts a cell to float64. It tolerates thousands separators
// and both decimal conventions; anything unparseable yields NaN.
func ParseNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return finiteOrNaN(t)
	case float32:
		return finiteOrNaN(float64(t))
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case string:
		return parseNumericString(t)
	case []byte:
		return parseNumericString(string(t))
	case fmt.Stringer:
		return parseNumericString(t.String())
	default:
		return math.NaN()
	}
}

func finiteOrNaN(f float64) float64 {
	if math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

var numericNoise = strings.NewReplacer(" ", "", "\u00a0", "", "$", "", "€", "")

func parseNumericString(s string) float64 {
	s = numericNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return math.NaN()
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The right-most separator is the decimal point.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		digitsAfter := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && digitsAfter <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return finiteOrNaN(f)
}

// ParseDate converts a cell to a UTC instant. It accepts time values, Excel
// serial day numbers (epoch 1899-12-30) and common date strings.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		return parseDateString(t)
	case []byte:
		return parseDateString(string(t))
	}

	f := ParseNumber(v)
	if math.IsNaN(f) {
		return time.Time{}, false
	}
	return excelSerialToTime(f), true
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return excelSerialToTime(f), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func excelSerialToTime(serial float64) time.Time {
	ms := math.Round(serial * excelMillisecondsADay)
	return excelEpoch.Add(time.Duration(ms) * time.Millisecond)
}

// NormalizeMovements converts raw rows into movement events. Rows without a
// parseable date or an item code are dropped.
func NormalizeMovements(rows []Row) []MovementEvent {
	events := make([]MovementEvent, 0, len(rows))
	for _, row := range rows {
		r := newFieldReader(row, movementColumns)
		date, ok := r.date(movementDateAliases)
		if !ok {
			continue
		}
		item := r.code(itemCodeAliases)
		if item == "" {
			continue
		}
		events = append(events, MovementEvent{
			Date:         date,
			Item:         item,
			Qty:          r.num(movementQtyAliases),
			Total:        r.num(movementTotalAliases),
			UnitCost:     r.num(unitCostAliases),
			PVPTotal:     r.num(pvpTotalAliases),
			Reference:    r.str(referenceAliases),
			Counterparty: r.str(counterpartyAliases),
			Motive:       r.str(motiveAliases),
			Kind:         r.str(kindAliases),
		})
	}
	return events
}

// NormalizeSales converts raw rows into sale events. Rows without a parseable
// date or an item code are dropped.
func NormalizeSales(rows []Row) []SaleEvent {
	events := make([]SaleEvent, 0, len(rows))
	for _, row := range rows {
		r := newFieldReader(row, saleColumns)
		date, ok := r.date(saleDateAliases)
		if !ok {
			continue
		}
		item := r.code(itemCodeAliases)
		if item == "" {
			continue
		}
		events = append(events, SaleEvent{
			Date:          date,
			Item:          item,
			Units:         r.num(saleUnitsAliases),
			GrossSale:     r.num(saleGrossAliases),
			TotalCost:     r.num(saleCostAliases),
			TotalDiscount: r.num(saleDiscountAliases),
			Customer:      r.str(saleCustomerAliases),
		})
	}
	return events
}
