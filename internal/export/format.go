package export

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/stockwise/internal/analytics"
)

const (
	unboundedSymbol = "∞"
	moneyDecimals   = 2
	qtyDecimals     = 2
	monthDecimals   = 1
)

// FormatNumber renders v with dot thousands and comma decimals, rounded half
// away from zero. A zero fractional part is omitted: 1234.5 with 2 decimals
// is "1.234,50" and 1000 is "1.000". Non-finite values render empty.
func FormatNumber(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	if decimals < 0 {
		decimals = 0
	}

	d := decimal.NewFromFloat(v).Round(int32(decimals))
	neg := d.IsNegative()
	d = d.Abs()

	fixed := d.StringFixed(int32(decimals))
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if fracPart != "" && strings.Trim(fracPart, "0") != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatMoney rounds to cents.
func FormatMoney(v float64) string {
	return FormatNumber(v, moneyDecimals)
}

// FormatCoverage renders unbounded coverage as ∞.
func FormatCoverage(c analytics.Coverage) string {
	if c.IsUnbounded() {
		return unboundedSymbol
	}
	return FormatNumber(c.Months(), monthDecimals)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatMoney(*v)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
