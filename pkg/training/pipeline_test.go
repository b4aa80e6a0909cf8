package training

import (
	"errors"
	"reflect"
	"testing"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/labeler"
	"github.com/maternal-risk/platform/pkg/ml/features"
)

var historicalColumns = []string{
	models.ColUmurIbu, models.ColGravida, models.ColUmurKehamilan, models.ColTinggiBadan,
	models.ColTekananSistolik, models.ColTekananDiastolik, models.ColPenyakitAnemia,
	models.ColPosisiJanin, models.ColHasilTesVDRL, models.ColHasilTesHbsAg,
}

// historicalTable cycles through low, high and very high risk profiles.
func historicalTable(n int) models.Table {
	profiles := []models.Record{
		{
			models.ColUmurIbu: 27.0, models.ColGravida: "1st", models.ColUmurKehamilan: "20 week",
			models.ColTinggiBadan: 158.0, models.ColTekananSistolik: 115.0, models.ColTekananDiastolik: 75.0,
			models.ColPenyakitAnemia: nil, models.ColPosisiJanin: models.Normal,
			models.ColHasilTesVDRL: "Negative", models.ColHasilTesHbsAg: "Negative",
		},
		{
			models.ColUmurIbu: 38.0, models.ColGravida: "2nd", models.ColUmurKehamilan: "30 week",
			models.ColTinggiBadan: 160.0, models.ColTekananSistolik: 125.0, models.ColTekananDiastolik: 82.0,
			models.ColPenyakitAnemia: nil, models.ColPosisiJanin: models.Normal,
			models.ColHasilTesVDRL: "Negative", models.ColHasilTesHbsAg: "Negative",
		},
		{
			models.ColUmurIbu: 41.0, models.ColGravida: "5th", models.ColUmurKehamilan: "43 week",
			models.ColTinggiBadan: "4.8", models.ColTekananSistolik: 170.0, models.ColTekananDiastolik: 110.0,
			models.ColPenyakitAnemia: "Medium", models.ColPosisiJanin: models.Abnormal,
			models.ColHasilTesVDRL: "Positive", models.ColHasilTesHbsAg: "Positive",
		},
	}
	t := models.Table{Columns: historicalColumns}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, profiles[i%len(profiles)].Clone())
	}
	return t
}

func TestBuildTrainingSetDropsLabelAndSplitColumns(t *testing.T) {
	table, labels := BuildTrainingSet(historicalTable(3), labeler.FixedJitter(0))
	if !reflect.DeepEqual(labels, []string{models.RiskLow, models.RiskHigh, models.RiskVeryHigh}) {
		t.Fatalf("labels = %v", labels)
	}
	for _, col := range []string{models.ColLabelRisiko, models.ColSkorRisiko, models.ColTekananSistolik, models.ColTekananDiastolik} {
		if table.HasColumn(col) {
			t.Errorf("column %s should be dropped", col)
		}
		if _, ok := table.Rows[0][col]; ok {
			t.Errorf("row still carries %s", col)
		}
	}
	if !table.HasColumn(models.ColKategoriTekanan) {
		t.Fatal("expected derived blood pressure category")
	}
	if table.Rows[2][models.ColTinggiBadan] != 142.24 {
		t.Fatalf("height = %v", table.Rows[2][models.ColTinggiBadan])
	}
}

func TestStratifiedSplitKeepsEveryLabelInTraining(t *testing.T) {
	labels := []string{"a", "a", "a", "a", "a", "b", "b", "b", "b", "b", "c"}
	train, test := stratifiedSplit(labels, 0.2, 42)
	if len(train)+len(test) != len(labels) {
		t.Fatalf("split lost rows: %d + %d", len(train), len(test))
	}
	counts := map[string]int{}
	for _, i := range test {
		counts[labels[i]]++
	}
	if counts["a"] != 1 || counts["b"] != 1 || counts["c"] != 0 {
		t.Fatalf("unexpected test composition %v", counts)
	}
	again, _ := stratifiedSplit(labels, 0.2, 42)
	if !reflect.DeepEqual(train, again) {
		t.Fatal("split should be reproducible for a seed")
	}
}

func TestTrainProducesUsableArtifact(t *testing.T) {
	artifact, report, err := Train(historicalTable(60), Options{Seed: 42, Epochs: 300, LearningRate: 0.5})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.TrainSamples+report.TestSamples != 60 {
		t.Fatalf("samples = %d + %d", report.TrainSamples, report.TestSamples)
	}
	if report.Accuracy < 0 || report.Accuracy > 1 || report.MacroF1 < 0 || report.MacroF1 > 1 {
		t.Fatalf("metrics out of range: %+v", report)
	}
	var total int
	for _, n := range report.Distribution {
		total += n
	}
	if total != 60 {
		t.Fatalf("distribution covers %d rows", total)
	}
	if len(artifact.FeatureNames) != artifact.Encoder.Width() {
		t.Fatalf("feature names do not match encoder width")
	}
	if artifact.Metrics["accuracy"] != report.Accuracy {
		t.Fatal("artifact should carry the report metrics")
	}

	canonical, _ := BuildTrainingSet(historicalTable(3), labeler.FixedJitter(0))
	labels, err := artifact.PredictRecords(canonical.Rows)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, l := range labels {
		if l != models.RiskLow && l != models.RiskHigh && l != models.RiskVeryHigh {
			t.Fatalf("unexpected label %q", l)
		}
	}
}

func TestTrainRequiresFeatureColumns(t *testing.T) {
	raw := historicalTable(10).Without(models.ColPosisiJanin)
	_, _, err := Train(raw, Options{Seed: 1, Epochs: 10})
	var missing features.MissingColumnError
	if !errors.As(err, &missing) || missing.Column != models.ColPosisiJanin {
		t.Fatalf("expected missing posisi_janin, got %v", err)
	}
}

func TestTrainWithoutBloodPressureFails(t *testing.T) {
	raw := historicalTable(10).Without(models.ColTekananSistolik, models.ColTekananDiastolik)
	_, _, err := Train(raw, Options{Seed: 1, Epochs: 10})
	var missing features.MissingColumnError
	if !errors.As(err, &missing) || missing.Column != models.ColKategoriTekanan {
		t.Fatalf("expected missing kategori_tekanan_darah, got %v", err)
	}
}

func TestTrainEmptyDataset(t *testing.T) {
	if _, _, err := Train(models.Table{Columns: historicalColumns}, Options{}); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}

func TestEvaluation(t *testing.T) {
	truth := []string{"a", "a", "b", "b"}
	pred := []string{"a", "b", "b", "b"}
	if got := Accuracy(truth, pred); got != 0.75 {
		t.Fatalf("accuracy = %v", got)
	}
	// a: tp1 fp0 fn1 -> 2/3; b: tp2 fp1 fn0 -> 4/5
	want := (2.0/3.0 + 4.0/5.0) / 2
	if got := MacroF1(truth, pred); got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("macro f1 = %v, want %v", got, want)
	}
	if d := Distribution(truth); d["a"] != 2 || d["b"] != 2 {
		t.Fatalf("distribution = %v", d)
	}
}
