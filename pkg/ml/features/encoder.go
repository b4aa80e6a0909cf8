// Package features is the model-facing adapter: it turns canonical records
// into the numeric vectors the classifier consumes. Numeric columns are
// standardised, categorical columns one-hot encoded. Columns the encoder was
// not fit on are ignored.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/normalizer"
)

// Encoder is serialised into the model artifact so inference applies exactly
// the transformation used at training time.
type Encoder struct {
	Numeric     []string            `json:"numeric"`
	Means       []float64           `json:"means"`
	Scales      []float64           `json:"scales"`
	Categorical []string            `json:"categorical"`
	Categories  map[string][]string `json:"categories"`
	// Dropped holds the category removed from binary columns.
	Dropped map[string]string `json:"dropped,omitempty"`
}

// MissingColumnError means a record lacks a column the encoder was fit on.
type MissingColumnError struct {
	Column string
}

func (e MissingColumnError) Error() string {
	return fmt.Sprintf("missing feature column %s", e.Column)
}

// Fit learns scaling and category sets from canonical rows.
func Fit(rows []models.Record, numeric, categorical []string) (*Encoder, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit encoder on empty data")
	}
	enc := &Encoder{
		Numeric:     append([]string(nil), numeric...),
		Means:       make([]float64, len(numeric)),
		Scales:      make([]float64, len(numeric)),
		Categorical: append([]string(nil), categorical...),
		Categories:  make(map[string][]string, len(categorical)),
		Dropped:     make(map[string]string),
	}

	for i, col := range numeric {
		var sum, sumSq float64
		for _, row := range rows {
			v, ok := row[col]
			if !ok {
				return nil, MissingColumnError{Column: col}
			}
			f := numericValue(v)
			sum += f
			sumSq += f * f
		}
		n := float64(len(rows))
		mean := sum / n
		variance := sumSq/n - mean*mean
		scale := math.Sqrt(math.Max(variance, 0))
		if scale < 1e-12 {
			scale = 1
		}
		enc.Means[i] = mean
		enc.Scales[i] = scale
	}

	for _, col := range categorical {
		seen := map[string]struct{}{}
		for _, row := range rows {
			v, ok := row[col]
			if !ok {
				return nil, MissingColumnError{Column: col}
			}
			seen[categoryValue(v)] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		if len(values) == 2 {
			enc.Dropped[col] = values[0]
			values = values[1:]
		}
		enc.Categories[col] = values
	}
	return enc, nil
}

// Width is the length of an encoded vector.
func (e *Encoder) Width() int {
	width := len(e.Numeric)
	for _, col := range e.Categorical {
		width += len(e.Categories[col])
	}
	return width
}

// FeatureNames names every position of the encoded vector.
func (e *Encoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for _, col := range e.Numeric {
		names = append(names, "num__"+col)
	}
	for _, col := range e.Categorical {
		for _, v := range e.Categories[col] {
			names = append(names, fmt.Sprintf("cat__%s_%s", col, v))
		}
	}
	return names
}

// Transform encodes one canonical record. Unparseable numbers count as 0 and
// unseen categories encode as all zeros.
func (e *Encoder) Transform(rec models.Record) ([]float64, error) {
	out := make([]float64, 0, e.Width())
	for i, col := range e.Numeric {
		v, ok := rec[col]
		if !ok {
			return nil, MissingColumnError{Column: col}
		}
		out = append(out, (numericValue(v)-e.Means[i])/e.Scales[i])
	}
	for _, col := range e.Categorical {
		v, ok := rec[col]
		if !ok {
			return nil, MissingColumnError{Column: col}
		}
		value := categoryValue(v)
		for _, c := range e.Categories[col] {
			if c == value {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

// TransformAll encodes rows in order, failing on the first bad row.
func (e *Encoder) TransformAll(rows []models.Record) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		vec, err := e.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func numericValue(v interface{}) float64 {
	f, ok := normalizer.ToNumber(v)
	if !ok {
		return 0
	}
	return f
}

func categoryValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
