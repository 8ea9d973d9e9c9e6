package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

var errNoHeaders = errors.New("dataset has no headers")

// utf8BOM makes spreadsheet applications detect UTF-8 in Cyrillic exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset is a table: Headers fix the column order and every row is keyed
// by header. Missing cells render empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		out[i] = row[h]
	}
	return out
}

// CSVExporter writes datasets as comma separated text.
type CSVExporter struct {
	// Comma overrides the separator, ';' suits spreadsheets in ru locales.
	Comma rune
	// BOM prefixes the output with a UTF-8 byte order mark.
	BOM bool
}

// NewCSVExporter returns an exporter with the default separator and no BOM.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ','}
}

// Render encodes the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv: %w", errNoHeaders)
	}
	buf := &bytes.Buffer{}
	if e.BOM {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(buf)
	if e.Comma != 0 {
		w.Comma = e.Comma
	}
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("csv headers: %w", err)
	}
	for i, row := range data.Rows {
		if err := w.Write(data.record(row)); err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}
