// Package normalizer turns raw patient rows from the entry form, uploaded
// spreadsheets or historical CSV files into the canonical feature columns the
// risk classifier is fit on. Training and both inference paths call Normalize;
// it never fails and never mutates its input.
package normalizer

import (
	"sort"

	"github.com/maternal-risk/platform/pkg/common/models"
)

// Normalize returns a cleaned copy of raw. Steps run in a fixed order:
//
//  1. gravida and umur_kehamilan become the first digit run as an int (0 if none)
//  2. tinggi_badan "feet.inches" tokens become centimeters; numeric text becomes float64
//  3. kategori_tekanan_darah is derived from tekanan_darah, or else from the
//     split systolic/diastolic columns; with neither present it is not created
//  4. penyakit_anemia: missing -> Negatif, Minimal/Medium -> Positif
//  5. hasil_tes_VDRL, hasil_tes_HbsAg: English synonyms -> Indonesian
//
// Values that are not recognised are passed through unchanged.
func Normalize(raw models.Table) models.Table {
	t := raw.Clone()

	for _, col := range []string{models.ColGravida, models.ColUmurKehamilan} {
		if !t.HasColumn(col) {
			continue
		}
		for _, row := range t.Rows {
			row[col] = ExtractCount(row[col])
		}
	}

	if t.HasColumn(models.ColTinggiBadan) {
		for _, row := range t.Rows {
			row[models.ColTinggiBadan] = normalizeHeight(row[models.ColTinggiBadan])
		}
	}

	switch {
	case t.HasColumn(models.ColTekananDarah):
		t = t.WithColumn(models.ColKategoriTekanan)
		for _, row := range t.Rows {
			row[models.ColKategoriTekanan] = ParseBloodPressure(row[models.ColTekananDarah]).Category()
		}
	case t.HasColumn(models.ColTekananSistolik) && t.HasColumn(models.ColTekananDiastolik):
		t = t.WithColumn(models.ColKategoriTekanan)
		for _, row := range t.Rows {
			row[models.ColKategoriTekanan] = ClassifyBloodPressure(row[models.ColTekananSistolik], row[models.ColTekananDiastolik])
		}
	}

	if t.HasColumn(models.ColPenyakitAnemia) {
		for _, row := range t.Rows {
			row[models.ColPenyakitAnemia] = NormalizeAnemia(row[models.ColPenyakitAnemia])
		}
	}

	for _, col := range []string{models.ColHasilTesVDRL, models.ColHasilTesHbsAg} {
		if !t.HasColumn(col) {
			continue
		}
		for _, row := range t.Rows {
			row[col] = NormalizeTestResult(row[col])
		}
	}

	return t
}

// NormalizeRecord normalizes a single row. The keys present in the record,
// including keys holding nil, are treated as its columns.
func NormalizeRecord(rec models.Record) models.Record {
	columns := make([]string, 0, len(rec))
	for k := range rec {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	out := Normalize(models.Table{Columns: columns, Rows: []models.Record{rec}})
	return out.Rows[0]
}

// NormalizeAnemia applies the anemia vocabulary rules.
func NormalizeAnemia(v interface{}) interface{} {
	if isMissing(v) {
		return models.Negatif
	}
	if s, ok := v.(string); ok && (s == "Minimal" || s == "Medium") {
		return models.Positif
	}
	return v
}

// NormalizeTestResult maps English lab results to their Indonesian form.
// Applying it twice gives the same result as applying it once.
func NormalizeTestResult(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		switch s {
		case "Negative":
			return models.Negatif
		case "Positive":
			return models.Positif
		}
	}
	return v
}

// normalizeHeight converts feet.inches text to centimeters. Other values are
// kept, coerced to float64 when they are numeric.
func normalizeHeight(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		if cm, ok := FeetInchesToCentimeters(s); ok {
			return cm
		}
	}
	if isMissing(v) {
		return v
	}
	if f, ok := ToNumber(v); ok {
		return f
	}
	return v
}
