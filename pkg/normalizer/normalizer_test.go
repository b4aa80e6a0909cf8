package normalizer

import (
	"math"
	"reflect"
	"testing"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/terminology"
)

func TestExtractCount(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
	}{
		{"3rd", 3},
		{"twin 2nd", 2},
		{"25 week", 25},
		{"abc", 0},
		{"", 0},
		{nil, 0},
		{math.NaN(), 0},
		{4.0, 4},
		{2.5, 2},
		{7, 7},
		{"-3", 3},
		{"99999999999999999999999", 0},
	}
	for _, tc := range cases {
		if got := ExtractCount(tc.in); got != tc.want {
			t.Errorf("ExtractCount(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFeetInchesToCentimeters(t *testing.T) {
	cm, ok := FeetInchesToCentimeters("5.6")
	if !ok {
		t.Fatal("expected 5.6 to parse")
	}
	if cm != 167.64 {
		t.Fatalf("expected 167.64, got %v", cm)
	}
	if cm, ok := FeetInchesToCentimeters(`5'.11"`); !ok || cm != 180.34 {
		t.Fatalf("expected quoted token to convert to 180.34, got %v %v", cm, ok)
	}
	for _, bad := range []string{"165", "5.6.1", "five.six", "", "."} {
		if _, ok := FeetInchesToCentimeters(bad); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestNormalizeHeight(t *testing.T) {
	table := models.Table{
		Columns: []string{models.ColTinggiBadan},
		Rows: []models.Record{
			{models.ColTinggiBadan: "5.6"},
			{models.ColTinggiBadan: "165"},
			{models.ColTinggiBadan: 155.0},
			{models.ColTinggiBadan: 160},
			{models.ColTinggiBadan: "tall"},
			{models.ColTinggiBadan: nil},
			{models.ColTinggiBadan: 5.6},
		},
	}
	out := Normalize(table)
	want := []interface{}{167.64, 165.0, 155.0, 160.0, "tall", nil, 5.6}
	for i, w := range want {
		if got := out.Rows[i][models.ColTinggiBadan]; got != w {
			t.Errorf("row %d: expected %v (%T), got %v (%T)", i, w, w, got, got)
		}
	}
}

func TestClassifyBloodPressure(t *testing.T) {
	cases := []struct {
		s, d interface{}
		want string
	}{
		{85, 55, models.BPHipotensi},
		{110, 70, models.BPNormal},
		{130, 85, models.BPPrehipertensi},
		{150, 95, models.BPHipertensi1},
		{165, 105, models.BPHipertensi2},
		{nil, 80, models.BPTidakDiketahui},
		{120, "n/a", models.BPTidakDiketahui},
		{math.NaN(), 70, models.BPTidakDiketahui},
		{100, 105, models.BPHipertensi2},
		{85, 105, models.BPHipotensi},
		{170, 70, models.BPHipertensi2},
		{"118", "79", models.BPNormal},
		{110, 85, models.BPPrehipertensi},
	}
	for _, tc := range cases {
		if got := ClassifyBloodPressure(tc.s, tc.d); got != tc.want {
			t.Errorf("ClassifyBloodPressure(%v, %v) = %q, want %q", tc.s, tc.d, got, tc.want)
		}
	}
}

func TestParseBloodPressure(t *testing.T) {
	bp := ParseBloodPressure(" 120 / 80 ")
	if bp.Systolic == nil || *bp.Systolic != 120 || bp.Diastolic == nil || *bp.Diastolic != 80 {
		t.Fatalf("unexpected reading %+v", bp)
	}
	if bp := ParseBloodPressure("120"); bp.Systolic == nil || bp.Diastolic != nil {
		t.Fatalf("expected missing diastolic, got %+v", bp)
	}
	if got := ParseBloodPressure(nil).Category(); got != models.BPTidakDiketahui {
		t.Fatalf("expected unknown for missing value, got %s", got)
	}
	if got := ParseBloodPressure("120/80/70").Category(); got != models.BPPrehipertensi {
		t.Fatalf("expected extra parts to be ignored, got %s", got)
	}
}

func TestCombinedAndSplitBloodPressureAgree(t *testing.T) {
	readings := [][2]float64{{140, 95}, {85, 55}, {110, 70}, {130, 85}, {165, 105}, {100, 105}}
	for _, r := range readings {
		combined := Normalize(models.Table{
			Columns: []string{models.ColTekananDarah},
			Rows:    []models.Record{{models.ColTekananDarah: stringify(r[0]) + "/" + stringify(r[1])}},
		})
		split := Normalize(models.Table{
			Columns: []string{models.ColTekananSistolik, models.ColTekananDiastolik},
			Rows:    []models.Record{{models.ColTekananSistolik: r[0], models.ColTekananDiastolik: r[1]}},
		})
		a := combined.Rows[0][models.ColKategoriTekanan]
		b := split.Rows[0][models.ColKategoriTekanan]
		if a != b {
			t.Fatalf("reading %v: combined %v != split %v", r, a, b)
		}
	}
	out := Normalize(models.Table{
		Columns: []string{models.ColTekananDarah},
		Rows:    []models.Record{{models.ColTekananDarah: "140/95"}},
	})
	if got := out.Rows[0][models.ColKategoriTekanan]; got != models.BPHipertensi1 {
		t.Fatalf("expected 140/95 to be stage 1, got %v", got)
	}
}

func TestCombinedBloodPressureTakesPrecedence(t *testing.T) {
	out := Normalize(models.Table{
		Columns: []string{models.ColTekananDarah, models.ColTekananSistolik, models.ColTekananDiastolik},
		Rows: []models.Record{{
			models.ColTekananDarah:     "85/55",
			models.ColTekananSistolik:  170,
			models.ColTekananDiastolik: 110,
		}},
	})
	if got := out.Rows[0][models.ColKategoriTekanan]; got != models.BPHipotensi {
		t.Fatalf("expected combined field to win, got %v", got)
	}
}

func TestBloodPressureCategoryOmittedWithoutInputs(t *testing.T) {
	out := Normalize(models.Table{
		Columns: []string{models.ColTekananSistolik},
		Rows:    []models.Record{{models.ColTekananSistolik: 120}},
	})
	if out.HasColumn(models.ColKategoriTekanan) {
		t.Fatal("category column must not be created without both inputs")
	}
	if _, ok := out.Rows[0][models.ColKategoriTekanan]; ok {
		t.Fatal("row must not carry a category")
	}
}

func TestNormalizeAnemia(t *testing.T) {
	cases := []struct {
		in, want interface{}
	}{
		{nil, models.Negatif},
		{"Minimal", models.Positif},
		{"Medium", models.Positif},
		{"Positif", models.Positif},
		{"Negatif", models.Negatif},
		{"Severe", "Severe"},
		{"minimal", "minimal"},
	}
	for _, tc := range cases {
		if got := NormalizeAnemia(tc.in); got != tc.want {
			t.Errorf("NormalizeAnemia(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTestResultIsIdempotent(t *testing.T) {
	cases := []struct {
		in, want interface{}
	}{
		{"Negative", models.Negatif},
		{"Positive", models.Positif},
		{"Negatif", models.Negatif},
		{"Positif", models.Positif},
		{"Reactive", "Reactive"},
		{nil, nil},
	}
	for _, tc := range cases {
		once := NormalizeTestResult(tc.in)
		if once != tc.want {
			t.Errorf("NormalizeTestResult(%v) = %v, want %v", tc.in, once, tc.want)
		}
		if twice := NormalizeTestResult(once); twice != once {
			t.Errorf("NormalizeTestResult not idempotent for %v: %v then %v", tc.in, once, twice)
		}
	}
}

func TestNormalizeUploadRow(t *testing.T) {
	raw := models.Table{
		Columns: append([]string(nil), models.TemplateColumns...),
		Rows: []models.Record{{
			models.ColNamaPasien:     "Siti",
			models.ColUmurIbu:        "29",
			models.ColGravida:        "3rd",
			models.ColUmurKehamilan:  "25 week",
			models.ColTinggiBadan:    "5.6",
			models.ColTekananDarah:   "150/95",
			models.ColPenyakitAnemia: "Minimal",
			models.ColPosisiJanin:    "Normal",
			models.ColHasilTesVDRL:   "Negative",
			models.ColHasilTesHbsAg:  "Positive",
		}},
	}
	out := Normalize(raw)
	want := models.Record{
		models.ColNamaPasien:      "Siti",
		models.ColUmurIbu:         "29",
		models.ColGravida:         3,
		models.ColUmurKehamilan:   25,
		models.ColTinggiBadan:     167.64,
		models.ColTekananDarah:    "150/95",
		models.ColPenyakitAnemia:  models.Positif,
		models.ColPosisiJanin:     "Normal",
		models.ColHasilTesVDRL:    models.Negatif,
		models.ColHasilTesHbsAg:   models.Positif,
		models.ColKategoriTekanan: models.BPHipertensi1,
	}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("unexpected canonical row:\n got %#v\nwant %#v", out.Rows[0], want)
	}
	if out.Columns[len(out.Columns)-1] != models.ColKategoriTekanan {
		t.Fatalf("expected category column appended, got %v", out.Columns)
	}
	if raw.Rows[0][models.ColGravida] != "3rd" {
		t.Fatal("input table must not be mutated")
	}
	if raw.HasColumn(models.ColKategoriTekanan) {
		t.Fatal("input columns must not be mutated")
	}
}

func TestNormalizeRecordFromForm(t *testing.T) {
	in := models.IndividualInput{
		UmurIbu: 30, Gravida: 1, UmurKehamilan: 20, TinggiBadan: 155,
		TekananSistolik: 120, TekananDiastolik: 80,
		PenyakitAnemia: "Negatif", PosisiJanin: "Normal", HasilTesVDRL: "Negatif", HasilTesHbsAg: "Negatif",
	}
	out := NormalizeRecord(in.Record())
	if out[models.ColKategoriTekanan] != models.BPPrehipertensi {
		t.Fatalf("expected Prehipertensi, got %v", out[models.ColKategoriTekanan])
	}
	if out[models.ColGravida] != 1 || out[models.ColUmurKehamilan] != 20 {
		t.Fatalf("unexpected counts %v %v", out[models.ColGravida], out[models.ColUmurKehamilan])
	}
	if out[models.ColTinggiBadan] != 155.0 {
		t.Fatalf("expected height 155, got %v", out[models.ColTinggiBadan])
	}
}

func TestNormalizeMissingAnemiaColumnValue(t *testing.T) {
	out := NormalizeRecord(models.Record{models.ColPenyakitAnemia: nil, models.ColHasilTesVDRL: nil})
	if out[models.ColPenyakitAnemia] != models.Negatif {
		t.Fatalf("expected Negatif, got %v", out[models.ColPenyakitAnemia])
	}
	if out[models.ColHasilTesVDRL] != nil {
		t.Fatalf("missing VDRL must stay missing, got %v", out[models.ColHasilTesVDRL])
	}
}

func TestAuditReportsUnknownValues(t *testing.T) {
	out := Normalize(models.Table{
		Columns: []string{models.ColPenyakitAnemia, models.ColHasilTesVDRL, models.ColPosisiJanin},
		Rows: []models.Record{
			{models.ColPenyakitAnemia: "Severe", models.ColHasilTesVDRL: "Negative", models.ColPosisiJanin: "Normal"},
			{models.ColPenyakitAnemia: nil, models.ColHasilTesVDRL: nil, models.ColPosisiJanin: 1},
		},
	})
	findings := Audit(out, terminology.DefaultCatalog())
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %+v", findings)
	}
	seen := map[string]Finding{}
	for _, f := range findings {
		seen[f.Column] = f
	}
	if f := seen[models.ColPenyakitAnemia]; f.Row != 0 || f.Value != "Severe" {
		t.Fatalf("unexpected anemia finding %+v", f)
	}
	if f := seen[models.ColPosisiJanin]; f.Row != 1 || f.Value != "1" {
		t.Fatalf("unexpected position finding %+v", f)
	}
	if out.Rows[0][models.ColPenyakitAnemia] != "Severe" {
		t.Fatal("audit must not change values")
	}
}
