package terminology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/maternal-risk/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Catalog lists the categorical values the classifier was trained on, per column.
type Catalog struct {
	Vocabularies map[string][]string `yaml:"vocabularies" json:"vocabularies"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Vocabularies) == 0 {
		return Catalog{}, fmt.Errorf("vocabulary catalog empty")
	}
	return cat, nil
}

// Known reports whether value belongs to the column's vocabulary. Columns the
// catalog does not describe accept anything.
func (c Catalog) Known(column, value string) bool {
	vocab, ok := c.Vocabularies[column]
	if !ok {
		return true
	}
	for _, v := range vocab {
		if v == value {
			return true
		}
	}
	return false
}

// Columns returns the described columns in a stable order.
func (c Catalog) Columns() []string {
	cols := make([]string, 0, len(c.Vocabularies))
	for k := range c.Vocabularies {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func DefaultCatalog() Catalog {
	binary := []string{models.Negatif, models.Positif}
	return Catalog{Vocabularies: map[string][]string{
		models.ColPenyakitAnemia: binary,
		models.ColHasilTesVDRL:   binary,
		models.ColHasilTesHbsAg:  binary,
		models.ColPosisiJanin:    {models.Normal, models.Abnormal},
	}}
}
