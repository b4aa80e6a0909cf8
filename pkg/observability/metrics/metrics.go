package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/maternal-risk/platform/pkg/common/models"
)

var (
	predictionsLow      atomic.Int64
	predictionsHigh     atomic.Int64
	predictionsVeryHigh atomic.Int64
	predictionErrors    atomic.Int64
	auditFindings       atomic.Int64
	recordsSaved        atomic.Int64
	recordsFailed       atomic.Int64
	eventsPublished     atomic.Int64
	eventsFailed        atomic.Int64
	trainingCompleted   atomic.Int64
	trainingFailed      atomic.Int64
)

// Reset zeroes every counter.
func Reset() {
	for _, c := range []*atomic.Int64{
		&predictionsLow, &predictionsHigh, &predictionsVeryHigh, &predictionErrors, &auditFindings,
		&recordsSaved, &recordsFailed, &eventsPublished, &eventsFailed, &trainingCompleted, &trainingFailed,
	} {
		c.Store(0)
	}
}

func ObservePrediction(label string) {
	switch label {
	case models.RiskLow:
		predictionsLow.Add(1)
	case models.RiskHigh:
		predictionsHigh.Add(1)
	case models.RiskVeryHigh:
		predictionsVeryHigh.Add(1)
	}
}

func ObservePredictionError() {
	predictionErrors.Add(1)
}

func ObserveAuditFindings(n int) {
	auditFindings.Add(int64(n))
}

func ObserveSave(ok bool) {
	if ok {
		recordsSaved.Add(1)
		return
	}
	recordsFailed.Add(1)
}

func ObserveEvent(ok bool) {
	if ok {
		eventsPublished.Add(1)
		return
	}
	eventsFailed.Add(1)
}

func ObserveTrainingJob(ok bool) {
	if ok {
		trainingCompleted.Add(1)
		return
	}
	trainingFailed.Add(1)
}

// Handler serves the counters in Prometheus text format.
func Handler(w http.ResponseWriter, _ *http.Request) {
	WritePrometheus(w)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP maternal_risk_predictions_total Predictions served by risk label.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_predictions_total counter\n")
	fmt.Fprintf(w, "maternal_risk_predictions_total{label=%q} %d\n", models.RiskLow, predictionsLow.Load())
	fmt.Fprintf(w, "maternal_risk_predictions_total{label=%q} %d\n", models.RiskHigh, predictionsHigh.Load())
	fmt.Fprintf(w, "maternal_risk_predictions_total{label=%q} %d\n", models.RiskVeryHigh, predictionsVeryHigh.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_prediction_errors_total Prediction requests that failed.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_prediction_errors_total counter\n")
	fmt.Fprintf(w, "maternal_risk_prediction_errors_total %d\n", predictionErrors.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_unknown_categories_total Categorical values outside the known vocabulary.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_unknown_categories_total counter\n")
	fmt.Fprintf(w, "maternal_risk_unknown_categories_total %d\n", auditFindings.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_records_saved_total Patient records written to history.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_records_saved_total counter\n")
	fmt.Fprintf(w, "maternal_risk_records_saved_total %d\n", recordsSaved.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_records_failed_total Patient records that could not be saved.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_records_failed_total counter\n")
	fmt.Fprintf(w, "maternal_risk_records_failed_total %d\n", recordsFailed.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_events_published_total Prediction events published.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_events_published_total counter\n")
	fmt.Fprintf(w, "maternal_risk_events_published_total %d\n", eventsPublished.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_events_failed_total Prediction events routed to the dead letter topic.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_events_failed_total counter\n")
	fmt.Fprintf(w, "maternal_risk_events_failed_total %d\n", eventsFailed.Load())

	fmt.Fprintf(w, "# HELP maternal_risk_training_jobs_total Finished training jobs by outcome.\n")
	fmt.Fprintf(w, "# TYPE maternal_risk_training_jobs_total counter\n")
	fmt.Fprintf(w, "maternal_risk_training_jobs_total{status=\"completed\"} %d\n", trainingCompleted.Load())
	fmt.Fprintf(w, "maternal_risk_training_jobs_total{status=\"failed\"} %d\n", trainingFailed.Load())
}
