package labeler

import (
	"testing"

	"github.com/maternal-risk/platform/pkg/common/models"
)

func minimalRisk() models.Record {
	return models.Record{
		models.ColUmurIbu:         28.0,
		models.ColGravida:         1,
		models.ColUmurKehamilan:   20,
		models.ColTinggiBadan:     158.0,
		models.ColPenyakitAnemia:  models.Negatif,
		models.ColPosisiJanin:     models.Normal,
		models.ColHasilTesVDRL:    models.Negatif,
		models.ColHasilTesHbsAg:   models.Negatif,
		models.ColKategoriTekanan: models.BPNormal,
	}
}

func allRisk() models.Record {
	return models.Record{
		models.ColUmurIbu:         40.0,
		models.ColGravida:         5,
		models.ColUmurKehamilan:   43,
		models.ColTinggiBadan:     140.0,
		models.ColPenyakitAnemia:  models.Positif,
		models.ColPosisiJanin:     models.Abnormal,
		models.ColHasilTesVDRL:    models.Positif,
		models.ColHasilTesHbsAg:   models.Positif,
		models.ColKategoriTekanan: models.BPHipertensi2,
	}
}

func TestAllRiskFactors(t *testing.T) {
	res := Label(allRisk(), FixedJitter(0))
	if res.Score != 46 {
		t.Fatalf("expected score 46, got %d", res.Score)
	}
	if res.Label != models.RiskVeryHigh {
		t.Fatalf("expected KRST, got %s", res.Label)
	}
}

func TestMinimalRisk(t *testing.T) {
	res := Label(minimalRisk(), FixedJitter(0))
	if res.Score != 2 || res.Label != models.RiskLow {
		t.Fatalf("expected score 2 / KRR, got %+v", res)
	}
}

func TestScoreIsClampedAtTwo(t *testing.T) {
	res := Label(minimalRisk(), FixedJitter(-1))
	if res.Score != 2 {
		t.Fatalf("expected clamp to 2, got %d", res.Score)
	}
}

func TestIndividualRules(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value interface{}
		want  int
	}{
		{"young mother", models.ColUmurIbu, 17.0, 6},
		{"age 35 is not a risk", models.ColUmurIbu, 35.0, 2},
		{"age as text", models.ColUmurIbu, "36", 6},
		{"unreadable age", models.ColUmurIbu, "unknown", 2},
		{"gravida 4", models.ColGravida, 4, 6},
		{"gestation 42 is not a risk", models.ColUmurKehamilan, 42, 2},
		{"short stature", models.ColTinggiBadan, 144.9, 6},
		{"stage 1 hypertension", models.ColKategoriTekanan, models.BPHipertensi1, 8},
		{"prehypertension scores nothing", models.ColKategoriTekanan, models.BPPrehipertensi, 2},
		{"abnormal position", models.ColPosisiJanin, models.Abnormal, 10},
		{"unnormalized anemia scores nothing", models.ColPenyakitAnemia, "Minimal", 2},
	}
	for _, tc := range cases {
		rec := minimalRisk()
		rec[tc.field] = tc.value
		if got := Score(rec); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestLabelBoundaries(t *testing.T) {
	cases := map[int]string{
		2: models.RiskLow, 5: models.RiskLow,
		6: models.RiskHigh, 10: models.RiskHigh,
		11: models.RiskVeryHigh, 46: models.RiskVeryHigh,
	}
	for score, want := range cases {
		if got := LabelFor(score); got != want {
			t.Errorf("LabelFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestJitterShiftsAcrossBoundary(t *testing.T) {
	rec := minimalRisk()
	rec[models.ColGravida] = 4 // score 6
	if got := Label(rec, FixedJitter(-1)); got.Label != models.RiskLow || got.Score != 5 {
		t.Fatalf("expected 5/KRR, got %+v", got)
	}
	if got := Label(rec, FixedJitter(1)); got.Label != models.RiskHigh || got.Score != 7 {
		t.Fatalf("expected 7/KRT, got %+v", got)
	}
}

func TestSeededJitterIsReproducible(t *testing.T) {
	a, b := NewSeededJitter(42), NewSeededJitter(42)
	for i := 0; i < 1000; i++ {
		if x, y := a.Draw(), b.Draw(); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestSeededJitterDistribution(t *testing.T) {
	j := NewSeededJitter(7)
	const n = 20000
	counts := map[int]int{}
	for i := 0; i < n; i++ {
		counts[j.Draw()]++
	}
	if len(counts) != 3 {
		t.Fatalf("expected three outcomes, got %v", counts)
	}
	check := func(v int, want float64) {
		got := float64(counts[v]) / n
		if got < want-0.02 || got > want+0.02 {
			t.Errorf("frequency of %d = %.3f, want about %.2f", v, got, want)
		}
	}
	check(-1, 0.15)
	check(0, 0.70)
	check(1, 0.15)
}

func TestLabelTableConsumesOneDrawPerRow(t *testing.T) {
	table := models.Table{
		Columns: []string{models.ColUmurIbu},
		Rows:    []models.Record{minimalRisk(), allRisk(), minimalRisk()},
	}
	out, results := LabelTable(table, NewSeededJitter(42))

	ref := NewSeededJitter(42)
	for i, row := range table.Rows {
		want := Label(row, ref)
		if results[i] != want {
			t.Fatalf("row %d: expected %+v, got %+v", i, want, results[i])
		}
		if out.Rows[i][models.ColLabelRisiko] != want.Label || out.Rows[i][models.ColSkorRisiko] != want.Score {
			t.Fatalf("row %d: table columns not populated", i)
		}
	}
	if !out.HasColumn(models.ColLabelRisiko) || !out.HasColumn(models.ColSkorRisiko) {
		t.Fatalf("expected label columns, got %v", out.Columns)
	}
	if _, ok := table.Rows[0][models.ColLabelRisiko]; ok {
		t.Fatal("input rows must not be mutated")
	}
}
