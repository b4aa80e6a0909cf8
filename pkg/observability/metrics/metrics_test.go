package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maternal-risk/platform/pkg/common/models"
)

func TestWritePrometheus(t *testing.T) {
	Reset()
	ObservePrediction(models.RiskHigh)
	ObservePrediction(models.RiskHigh)
	ObservePrediction("unknown")
	ObserveSave(true)
	ObserveSave(false)
	ObserveEvent(false)
	ObserveTrainingJob(true)

	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`maternal_risk_predictions_total{label="KRT"} 2`,
		`maternal_risk_predictions_total{label="KRR"} 0`,
		"maternal_risk_records_saved_total 1",
		"maternal_risk_records_failed_total 1",
		"maternal_risk_events_failed_total 1",
		`maternal_risk_training_jobs_total{status="completed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}
