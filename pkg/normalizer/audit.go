package normalizer

import (
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/terminology"
)

// Finding is a categorical value outside the catalog vocabulary.
type Finding struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Audit lists categorical cells of a normalized table that the classifier has
// never seen. Missing cells are skipped. It reports only; values are not changed.
func Audit(t models.Table, cat terminology.Catalog) []Finding {
	var findings []Finding
	for _, col := range cat.Columns() {
		if !t.HasColumn(col) {
			continue
		}
		for i, row := range t.Rows {
			v := row[col]
			if isMissing(v) {
				continue
			}
			value := stringify(v)
			if _, isString := v.(string); isString && cat.Known(col, value) {
				continue
			}
			findings = append(findings, Finding{Row: i, Column: col, Value: value})
		}
	}
	return findings
}
