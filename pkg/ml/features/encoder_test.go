package features

import (
	"errors"
	"reflect"
	"testing"

	"github.com/maternal-risk/platform/pkg/common/models"
)

func trainingRows() []models.Record {
	return []models.Record{
		{"age": 20.0, "anemia": "Negatif", "position": "Normal", "extra": "ignored"},
		{"age": 30.0, "anemia": "Positif", "position": "Abnormal"},
		{"age": 40.0, "anemia": "Negatif", "position": "Sungsang"},
	}
}

func TestFitAndFeatureNames(t *testing.T) {
	enc, err := Fit(trainingRows(), []string{"age"}, []string{"anemia", "position"})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	want := []string{
		"num__age",
		"cat__anemia_Positif",
		"cat__position_Abnormal", "cat__position_Normal", "cat__position_Sungsang",
	}
	if got := enc.FeatureNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("feature names = %v, want %v", got, want)
	}
	if enc.Width() != len(want) {
		t.Fatalf("width = %d, want %d", enc.Width(), len(want))
	}
	if enc.Dropped["anemia"] != "Negatif" {
		t.Fatalf("expected Negatif dropped from binary column, got %q", enc.Dropped["anemia"])
	}
}

func TestTransformStandardisesAndEncodes(t *testing.T) {
	enc, err := Fit(trainingRows(), []string{"age"}, []string{"anemia", "position"})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	vec, err := enc.Transform(models.Record{"age": 30.0, "anemia": "Positif", "position": "Normal", "name": "x"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	want := []float64{0, 1, 0, 1, 0}
	if !reflect.DeepEqual(vec, want) {
		t.Fatalf("vector = %v, want %v", vec, want)
	}
}

func TestTransformUnknownCategoryIsAllZero(t *testing.T) {
	enc, _ := Fit(trainingRows(), []string{"age"}, []string{"position"})
	vec, err := enc.Transform(models.Record{"age": "not a number", "position": "Lintang"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i, v := range vec[1:] {
		if v != 0 {
			t.Fatalf("position %d should be zero, got %v", i+1, v)
		}
	}
	// unparseable numbers count as 0 before scaling
	if want := (0 - enc.Means[0]) / enc.Scales[0]; vec[0] != want {
		t.Fatalf("numeric = %v, want %v", vec[0], want)
	}
}

func TestTransformMissingColumn(t *testing.T) {
	enc, _ := Fit(trainingRows(), []string{"age"}, []string{"anemia"})
	_, err := enc.TransformAll([]models.Record{{"age": 20.0}})
	var missing MissingColumnError
	if !errors.As(err, &missing) || missing.Column != "anemia" {
		t.Fatalf("expected missing anemia column, got %v", err)
	}
}

func TestFitConstantColumnKeepsUnitScale(t *testing.T) {
	rows := []models.Record{{"h": 150.0}, {"h": 150.0}}
	enc, err := Fit(rows, []string{"h"}, nil)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if enc.Scales[0] != 1 {
		t.Fatalf("scale = %v, want 1", enc.Scales[0])
	}
}

func TestFitEmpty(t *testing.T) {
	if _, err := Fit(nil, []string{"a"}, nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}
