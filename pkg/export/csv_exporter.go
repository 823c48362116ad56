package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset is one tabular report. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders datasets as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes data. Cells that a spreadsheet would evaluate as a formula
// are prefixed with a quote, since citizen-supplied text ends up in exports.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = neutralize(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func neutralize(cell string) string {
	if cell == "" {
		return cell
	}
	if strings.ContainsRune("=+@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	// Negative numbers stay numeric; anything else led by '-' is treated as a formula.
	if cell[0] == '-' && !isNumeric(cell[1:]) {
		return "'" + cell
	}
	return cell
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
