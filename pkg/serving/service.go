package serving

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maternal-risk/platform/pkg/common/kafka"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/normalizer"
	"github.com/maternal-risk/platform/pkg/observability/metrics"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
	"github.com/maternal-risk/platform/pkg/terminology"
	"gorm.io/datatypes"
)

const (
	historyLimit = 10

	EventRiskPredicted       = "risk-predicted"
	EventRiskPredictedFailed = "risk-predicted.failed"

	msgSaved      = "Data berhasil disimpan ke riwayat."
	msgSaveFailed = "Gagal menyimpan: Terjadi error pada database."
)

// Predictor is satisfied by *predictor.Predictor.
type Predictor interface {
	Predict(model string, t models.Table) ([]string, predictor.Artifact, error)
}

// Owner is the signed-in account a prediction is saved for.
type Owner struct {
	ID          uuid.UUID
	NamaLengkap string
	Profesi     string
}

// HistoryEntry is a saved record as shown in the history table.
type HistoryEntry = PatientRecord

type Service struct {
	predictor Predictor
	records   RecordStore
	events    kafka.Publisher
	dlq       kafka.Publisher
	catalog   terminology.Catalog
	modelName string
	source    string
}

// NewService wires the prediction service. events and dlq may be nil, in
// which case saved predictions are not announced.
func NewService(p Predictor, records RecordStore, events, dlq kafka.Publisher, catalog terminology.Catalog, modelName string) *Service {
	return &Service{
		predictor: p,
		records:   records,
		events:    events,
		dlq:       dlq,
		catalog:   catalog,
		modelName: modelName,
		source:    "risk-service",
	}
}

// PredictIndividual classifies one entry form and saves it to the owner's
// history. A failed save is reported in the response, not as an error.
func (s *Service) PredictIndividual(ctx context.Context, owner Owner, in models.IndividualInput) (models.PredictionResponse, error) {
	in, err := ValidateIndividual(in, owner)
	if err != nil {
		return models.PredictionResponse{}, err
	}

	raw := in.Record()
	labels, artifact, err := s.predict(models.Table{Columns: columnsOf(raw), Rows: []models.Record{raw}})
	if err != nil {
		return models.PredictionResponse{}, err
	}

	toSave := raw.Clone()
	toSave[models.ColNamaPasien] = in.NamaPasien
	toSave[models.ColHasilPrediksi] = labels[0]

	resp := models.PredictionResponse{
		HasilPrediksi: labels[0],
		ModelVersion:  artifact.Version,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.Save(ctx, owner, toSave); err != nil {
		resp.Message = msgSaveFailed
		return resp, nil
	}
	resp.Saved = true
	resp.Message = msgSaved
	return resp, nil
}

// PredictBatch classifies every row of an uploaded table. The result keeps
// the uploaded columns and values and appends hasil_prediksi.
func (s *Service) PredictBatch(ctx context.Context, raw models.Table) (models.Table, error) {
	if len(raw.Rows) == 0 {
		return models.Table{}, ValidationError{reason: errEmptyUpload}
	}
	labels, _, err := s.predict(raw)
	if err != nil {
		return models.Table{}, err
	}
	out := raw.Clone().WithColumn(models.ColHasilPrediksi)
	for i, row := range out.Rows {
		row[models.ColHasilPrediksi] = labels[i]
	}
	return out, nil
}

// Save stores one predicted record for owner and announces it.
func (s *Service) Save(ctx context.Context, owner Owner, rec models.Record) error {
	if owner.ID == uuid.Nil {
		return ValidationError{reason: errors.New("user is not signed in")}
	}
	row, err := toPatientRecord(owner.ID, rec)
	if err != nil {
		metrics.ObserveSave(false)
		return err
	}
	if err := s.records.Create(ctx, row); err != nil {
		metrics.ObserveSave(false)
		logger.Log.WithError(err).WithField("owner", owner.ID).Error("failed to save patient record")
		return fmt.Errorf("save patient record: %w", err)
	}
	metrics.ObserveSave(true)
	s.announce(ctx, row)
	return nil
}

// SaveBatch saves the rows of a predicted table and counts the outcomes. The
// rows are classified again so the stored label is always the model's, not
// whatever hasil_prediksi the client sent back.
func (s *Service) SaveBatch(ctx context.Context, owner Owner, t models.Table) (models.BatchSaveResult, error) {
	if len(t.Rows) == 0 {
		return models.BatchSaveResult{}, ValidationError{reason: errEmptyUpload}
	}
	labels, _, err := s.predict(t.Without(models.ColHasilPrediksi))
	if err != nil {
		return models.BatchSaveResult{}, err
	}
	var result models.BatchSaveResult
	for i, row := range t.Rows {
		row = row.Clone()
		row[models.ColHasilPrediksi] = labels[i]
		if err := s.Save(ctx, owner, row); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// History returns the owner's ten most recent saved records, newest first.
func (s *Service) History(ctx context.Context, owner Owner) ([]HistoryEntry, error) {
	return s.records.RecentByOwner(ctx, owner.ID, historyLimit)
}

func (s *Service) predict(raw models.Table) ([]string, predictor.Artifact, error) {
	canonical := normalizer.Normalize(raw)
	if findings := normalizer.Audit(canonical, s.catalog); len(findings) > 0 {
		metrics.ObserveAuditFindings(len(findings))
		for _, f := range findings {
			logger.Log.WithFields(map[string]interface{}{
				"row":    f.Row,
				"column": f.Column,
				"value":  f.Value,
			}).Warn("unknown categorical value")
		}
	}
	labels, artifact, err := s.predictor.Predict(s.modelName, canonical)
	if err != nil {
		metrics.ObservePredictionError()
		return nil, artifact, err
	}
	for _, l := range labels {
		metrics.ObservePrediction(l)
	}
	return labels, artifact, nil
}

func (s *Service) announce(ctx context.Context, rec *PatientRecord) {
	if s.events == nil {
		return
	}
	data := map[string]interface{}{
		"record_id":      rec.ID.String(),
		"created_by":     rec.CreatedBy.String(),
		"hasil_prediksi": rec.HasilPrediksi,
		"gravida":        rec.Gravida,
	}
	if rec.UmurIbu != nil {
		data["umur_ibu"] = *rec.UmurIbu
	}
	err := s.events.PublishEvent(ctx, EventRiskPredicted, s.source, data)
	if err == nil {
		metrics.ObserveEvent(true)
		return
	}
	metrics.ObserveEvent(false)
	logger.Log.WithError(err).WithField("record_id", rec.ID).Warn("prediction event not published, routing to DLQ")
	if s.dlq == nil {
		return
	}
	data["error"] = err.Error()
	if dlqErr := s.dlq.PublishEvent(ctx, EventRiskPredictedFailed, s.source, data); dlqErr != nil {
		logger.Log.WithError(dlqErr).WithField("record_id", rec.ID).Error("failed to publish to DLQ")
	}
}

// toPatientRecord maps a predicted row onto the history schema. A combined
// tekanan_darah string is split into systolic and diastolic; count fields use
// their first digit run and height is converted to centimeters.
func toPatientRecord(owner uuid.UUID, rec models.Record) (*PatientRecord, error) {
	label, _ := rec[models.ColHasilPrediksi].(string)
	if label == "" {
		return nil, ValidationError{reason: errNoPrediction}
	}
	if !knownLabel(label) {
		return nil, ValidationError{reason: fmt.Errorf("%w: %q", errUnknownLabel, label)}
	}
	row := &PatientRecord{
		ID:             uuid.New(),
		NamaPasien:     textOf(rec[models.ColNamaPasien]),
		UmurIbu:        numberOf(rec[models.ColUmurIbu]),
		Gravida:        normalizer.ExtractCount(rec[models.ColGravida]),
		UmurKehamilan:  normalizer.ExtractCount(rec[models.ColUmurKehamilan]),
		PenyakitAnemia: textOf(rec[models.ColPenyakitAnemia]),
		PosisiJanin:    textOf(rec[models.ColPosisiJanin]),
		HasilTesVDRL:   textOf(rec[models.ColHasilTesVDRL]),
		HasilTesHbsAg:  textOf(rec[models.ColHasilTesHbsAg]),
		HasilPrediksi:  label,
		Raw:            datatypes.JSONMap(rec.Clone()),
		CreatedBy:      owner,
		CreatedAt:      time.Now().UTC(),
	}

	height := normalizer.NormalizeRecord(models.Record{models.ColTinggiBadan: rec[models.ColTinggiBadan]})
	row.TinggiBadan = numberOf(height[models.ColTinggiBadan])

	if combined, ok := rec[models.ColTekananDarah].(string); ok {
		bp := normalizer.ParseBloodPressure(combined)
		row.TekananSistolik, row.TekananDiastolik = bp.Systolic, bp.Diastolic
	} else {
		row.TekananSistolik = numberOf(rec[models.ColTekananSistolik])
		row.TekananDiastolik = numberOf(rec[models.ColTekananDiastolik])
	}
	return row, nil
}

func knownLabel(label string) bool {
	for _, l := range models.RiskLabels {
		if l == label {
			return true
		}
	}
	return false
}

func numberOf(v interface{}) *float64 {
	f, ok := normalizer.ToNumber(v)
	if !ok {
		return nil
	}
	return &f
}

func textOf(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func columnsOf(rec models.Record) []string {
	columns := make([]string, 0, len(rec))
	for k := range rec {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}
