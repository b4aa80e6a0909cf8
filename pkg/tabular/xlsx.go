package tabular

import (
	"fmt"
	"io"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/xuri/excelize/v2"
)

// TemplateSheet is the sheet name of the downloadable upload template.
const TemplateSheet = "Data Pasien"

// ReadXLSX parses the first sheet of a workbook. The first row is the header.
func ReadXLSX(r io.Reader) (models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Table{}, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return fromStrings(rows)
}

// WriteTemplate writes an empty workbook carrying the upload header.
func WriteTemplate(w io.Writer) error {
	return WriteXLSX(w, models.Table{Columns: models.TemplateColumns}, TemplateSheet)
}

// WriteXLSX writes the table to a single-sheet workbook with a bold header.
func WriteXLSX(w io.Writer, t models.Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if len(t.Columns) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, row := range t.Rows {
		values := make([]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			values[j] = row[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
