package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/andresuchdata/stockwise/internal/analytics"
)

// utf8BOM makes spreadsheet apps pick the right encoding for accents and ∞.
const utf8BOM = "\ufeff"

var replenishmentHeader = []string{
	"Código", "Descripción", "Marca", "Línea",
	"Stock actual", "Stock inicial ventana", "Días con stock", "Meses con stock",
	"Consumo ventana", "Consumo mensual", "Meses de cobertura",
	"Comprar", "Cantidad a comprar", "Costo unitario", "Costo estimado",
}

var brandHeader = []string{"Marca", "Artículos", "Cantidad a comprar", "Costo estimado"}

func newWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw, nil
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteReplenishmentCSV writes one line per forecast row in forecast order.
// A nil forecast writes the header only.
func WriteReplenishmentCSV(w io.Writer, f *analytics.Forecast) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(replenishmentHeader); err != nil {
		return err
	}
	if f != nil {
		for _, r := range f.Rows {
			record := []string{
				r.Code, r.Desc, r.Brand, r.Line,
				FormatNumber(r.CurrentStock, qtyDecimals),
				FormatNumber(r.BeforeWindowStock, qtyDecimals),
				FormatNumber(float64(r.AvailableDays), 0),
				FormatNumber(r.AvailableMonths, monthDecimals),
				FormatNumber(r.ConsumptionUnits, qtyDecimals),
				FormatNumber(r.MonthlyConsumption, qtyDecimals),
				FormatCoverage(r.MonthsCoverage),
				yesNo(r.ShouldBuy),
				FormatNumber(r.QtyToBuy, qtyDecimals),
				FormatMoney(r.UnitCost),
				FormatMoney(r.CostEstimate),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	return flush(cw)
}

// WriteBrandCSV writes the per-brand purchase rollup.
func WriteBrandCSV(w io.Writer, f *analytics.Forecast) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(brandHeader); err != nil {
		return err
	}
	if f != nil {
		for _, b := range f.BrandRows {
			record := []string{
				b.Brand,
				FormatNumber(float64(b.Items), 0),
				FormatNumber(b.QtyToBuy, qtyDecimals),
				FormatMoney(b.CostEstimate),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	return flush(cw)
}

// WriteSeriesCSV writes one line per period of an inventory series.
func WriteSeriesCSV(w io.Writer, s *analytics.InventorySeries) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write([]string{"Período", "Inicio", "Unidades", "Valor"}); err != nil {
		return err
	}
	if s != nil {
		for i, key := range s.PeriodKeys {
			record := []string{
				key,
				s.PeriodStarts[i].Format("2006-01-02"),
				FormatNumber(s.CumulativeUnits[i], qtyDecimals),
				FormatMoney(s.CumulativeValue[i]),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	return flush(cw)
}

// WriteSupplierCostCSV writes one column per retained supplier. Periods in
// which a supplier made no purchase are left blank.
func WriteSupplierCostCSV(w io.Writer, s *analytics.SupplierCostSeries) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	header := []string{"Período"}
	if s != nil {
		for _, sup := range s.Suppliers {
			header = append(header, sup.Supplier)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if s != nil {
		for i, key := range s.PeriodKeys {
			record := make([]string, 0, len(header))
			record = append(record, key)
			for _, sup := range s.Suppliers {
				record = append(record, formatOptional(sup.Points[i]))
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	return flush(cw)
}
