// Package tabular reads and writes patient tables as CSV or Excel workbooks.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maternal-risk/platform/pkg/common/models"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Read parses r according to the extension of name.
func Read(name string, r io.Reader) (models.Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return models.Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReadCSV parses a CSV document whose first record is the header.
func ReadCSV(r io.Reader) (models.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to parse csv: %w", err)
	}
	return fromStrings(records)
}

// WriteCSV writes the table with its columns as header. Missing cells are empty.
func WriteCSV(w io.Writer, t models.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			line[i] = formatCell(row[col])
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// fromStrings builds a table from a header row and data rows. Cells stay
// text so that tokens such as "5.6" reach the normalizer as written; empty
// cells are missing and fully blank rows are skipped.
func fromStrings(records [][]string) (models.Table, error) {
	if len(records) == 0 {
		return models.Table{}, errors.New("file has no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := models.Table{Columns: header, Rows: make([]models.Record, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(models.Record, len(header))
		for i, col := range header {
			if cell := cellAt(rec, i); cell != "" {
				row[col] = cell
			} else {
				row[col] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func cellAt(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprint(val)
	}
}
