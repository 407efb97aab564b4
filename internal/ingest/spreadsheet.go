package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stockwise/internal/analytics"
)

var ErrUnsupportedFormat = errors.New("ingest: unsupported file format")

// ReadRows decodes a spreadsheet or CSV file into rows keyed by the header
// row. The format is chosen from the file name extension.
func ReadRows(name string, data []byte) ([]analytics.Row, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadWorkbook(bytes.NewReader(data))
	case ".csv", ".txt":
		return ReadCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ReadWorkbook reads the first sheet of an XLSX workbook. Cell values are
// read raw, so dates arrive as Excel serial numbers.
func ReadWorkbook(r io.Reader) ([]analytics.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	sheet := sheets[0]

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	return recordsToRows(records), nil
}

// ReadCSV reads a delimited file, sniffing ';', ',' or tab from the header
// line. A UTF-8 byte order mark is skipped.
func ReadCSV(r io.Reader) ([]analytics.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return recordsToRows(records), nil
}

func sniffDelimiter(data []byte) rune {
	header, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestCount := ',', 0
	for _, candidate := range []rune{';', ',', '\t'} {
		if n := bytes.Count(header, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

// recordsToRows maps records onto the header row. Blank cells become nil,
// blank headers are skipped and fully blank rows are dropped.
func recordsToRows(records [][]string) []analytics.Row {
	if len(records) == 0 {
		return []analytics.Row{}
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]analytics.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(analytics.Row, len(header))
		blank := true
		for i, key := range header {
			if key == "" {
				continue
			}
			var value any
			if i < len(record) {
				if cell := strings.TrimSpace(record[i]); cell != "" {
					value = cell
					blank = false
				}
			}
			row[key] = value
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}
