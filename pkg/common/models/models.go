package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is one row of patient data keyed by column name. A missing cell is
// either an absent key or a nil value.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of rows sharing one column set. Column presence is a
// property of the table, not of individual rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone copies the column list and every row so the result can be modified
// without touching the receiver.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// WithColumn returns the table with name appended to the column list when absent.
func (t Table) WithColumn(name string) Table {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	return t
}

// Without returns a copy of the table with the named columns removed.
func (t Table) Without(names ...string) Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := Table{Rows: make([]Record, len(t.Rows))}
	for _, c := range t.Columns {
		if _, ok := drop[c]; !ok {
			out.Columns = append(out.Columns, c)
		}
	}
	for i, row := range t.Rows {
		clone := row.Clone()
		for n := range drop {
			delete(clone, n)
		}
		out.Rows[i] = clone
	}
	return out
}

// Patient record columns.
const (
	ColNamaPasien       = "nama_pasien"
	ColUmurIbu          = "umur_ibu"
	ColGravida          = "gravida"
	ColUmurKehamilan    = "umur_kehamilan"
	ColTinggiBadan      = "tinggi_badan"
	ColTekananDarah     = "tekanan_darah"
	ColTekananSistolik  = "tekanan_sistolik"
	ColTekananDiastolik = "tekanan_diastolik"
	ColPenyakitAnemia   = "penyakit_anemia"
	ColPosisiJanin      = "posisi_janin"
	ColHasilTesVDRL     = "hasil_tes_VDRL"
	ColHasilTesHbsAg    = "hasil_tes_HbsAg"
	ColKategoriTekanan  = "kategori_tekanan_darah"
	ColHasilPrediksi    = "hasil_prediksi"
	ColSkorRisiko       = "skor_risiko"
	ColLabelRisiko      = "label_risiko"
)

// TemplateColumns is the header of the batch upload template.
var TemplateColumns = []string{
	ColNamaPasien,
	ColUmurIbu, ColGravida, ColUmurKehamilan, ColTinggiBadan,
	ColTekananDarah, ColPenyakitAnemia, ColPosisiJanin,
	ColHasilTesVDRL, ColHasilTesHbsAg,
}

// NumericFeatures and CategoricalFeatures are the columns the classifier is fit on.
var (
	NumericFeatures     = []string{ColUmurIbu, ColGravida, ColUmurKehamilan, ColTinggiBadan}
	CategoricalFeatures = []string{ColPenyakitAnemia, ColPosisiJanin, ColHasilTesVDRL, ColHasilTesHbsAg, ColKategoriTekanan}
)

// Canonical categorical values.
const (
	Negatif  = "Negatif"
	Positif  = "Positif"
	Normal   = "Normal"
	Abnormal = "Abnormal"
)

// Blood-pressure categories.
const (
	BPHipotensi      = "Hipotensi"
	BPNormal         = "Normal"
	BPPrehipertensi  = "Prehipertensi"
	BPHipertensi1    = "Hipertensi Stage 1"
	BPHipertensi2    = "Hipertensi Stage 2"
	BPTidakDiketahui = "Tidak diketahui"
)

// Risk labels.
const (
	RiskLow      = "KRR"
	RiskHigh     = "KRT"
	RiskVeryHigh = "KRST"
)

// RiskLabels lists the labels in increasing severity.
var RiskLabels = []string{RiskLow, RiskHigh, RiskVeryHigh}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // risk-predicted
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// IndividualInput is the single-record entry form. Blood pressure always
// arrives as split systolic/diastolic values on this path.
type IndividualInput struct {
	NamaPasien       string  `json:"nama_pasien"`
	UmurIbu          float64 `json:"umur_ibu"`
	Gravida          int     `json:"gravida"`
	UmurKehamilan    int     `json:"umur_kehamilan"`
	TinggiBadan      float64 `json:"tinggi_badan"`
	TekananSistolik  float64 `json:"tekanan_sistolik"`
	TekananDiastolik float64 `json:"tekanan_diastolik"`
	PenyakitAnemia   string  `json:"penyakit_anemia"`
	PosisiJanin      string  `json:"posisi_janin"`
	HasilTesVDRL     string  `json:"hasil_tes_VDRL"`
	HasilTesHbsAg    string  `json:"hasil_tes_HbsAg"`
}

// Record converts the form into a raw record without the patient name.
func (in IndividualInput) Record() Record {
	return Record{
		ColUmurIbu:          in.UmurIbu,
		ColGravida:          in.Gravida,
		ColUmurKehamilan:    in.UmurKehamilan,
		ColTinggiBadan:      in.TinggiBadan,
		ColPenyakitAnemia:   in.PenyakitAnemia,
		ColPosisiJanin:      in.PosisiJanin,
		ColHasilTesVDRL:     in.HasilTesVDRL,
		ColHasilTesHbsAg:    in.HasilTesHbsAg,
		ColTekananSistolik:  in.TekananSistolik,
		ColTekananDiastolik: in.TekananDiastolik,
	}
}

// Model Serving
type PredictionResponse struct {
	HasilPrediksi string    `json:"hasil_prediksi"`
	Saved         bool      `json:"saved"`
	Message       string    `json:"message"`
	ModelVersion  string    `json:"model_version"`
	Timestamp     time.Time `json:"timestamp"`
}

type BatchSaveResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Model Training
type TrainingJob struct {
	ID           uuid.UUID              `json:"id"`
	ModelName    string                 `json:"model_name"`
	DatasetPath  string                 `json:"dataset_path"`
	Config       map[string]interface{} `json:"config"`
	Status       string                 `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Professions offered at signup. ProfesiLainnya asks for a free-text value.
const (
	ProfesiBidan         = "Bidan"
	ProfesiDokter        = "Dokter"
	ProfesiPegawaiRS     = "Pegawai Rumah Sakit"
	ProfesiPegawaiDinkes = "Pegawai Dinas Kesehatan"
	ProfesiIbuHamil      = "Ibu Hamil"
	ProfesiLainnya       = "Lainnya..."
)

// Identity
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	NamaLengkap string    `json:"nama_lengkap"`
	Profesi     string    `json:"profesi"`
	CreatedAt   time.Time `json:"created_at"`
}
