package serving

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
	"github.com/maternal-risk/platform/pkg/ml/features"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
	"github.com/maternal-risk/platform/pkg/tabular"
)

const (
	resultFileName   = "hasil_prediksi_kolektif.csv"
	templateFileName = "template_prediksi_kolektif.xlsx"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{service: service, maxUpload: maxUpload}
}

// Register mounts the prediction routes. They expect Authenticate to run first.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/predictions", h.handlePredictIndividual).Methods(http.MethodPost)
	r.HandleFunc("/predictions/batch", h.handlePredictBatch).Methods(http.MethodPost)
	r.HandleFunc("/predictions/template", h.handleTemplate).Methods(http.MethodGet)
	r.HandleFunc("/records/batch", h.handleSaveBatch).Methods(http.MethodPost)
	r.HandleFunc("/records/history", h.handleHistory).Methods(http.MethodGet)
}

func (h *Handler) handlePredictIndividual(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req models.IndividualInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	resp, err := h.service.PredictIndividual(r.Context(), owner, req)
	if err != nil {
		h.writePredictionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	raw, err := tabular.Read(header.Filename, file)
	if err != nil {
		logger.Log.WithError(err).WithField("filename", header.Filename).Warn("unreadable upload")
		http.Error(w, "Pastikan format file dan nama kolom sudah sesuai dengan template.", http.StatusBadRequest)
		return
	}
	result, err := h.service.PredictBatch(r.Context(), raw)
	if err != nil {
		h.writePredictionError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		var buf bytes.Buffer
		if err := tabular.WriteCSV(&buf, result); err != nil {
			logger.Log.WithError(err).Error("failed to render csv")
			http.Error(w, "failed to render result", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+resultFileName+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := tabular.WriteTemplate(&buf); err != nil {
		logger.Log.WithError(err).Error("failed to build template")
		http.Error(w, "failed to build template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+templateFileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleSaveBatch(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var table models.Table
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	result, err := h.service.SaveBatch(r.Context(), owner, table)
	if err != nil {
		h.writePredictionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	items, err := h.service.History(r.Context(), owner)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) writePredictionError(w http.ResponseWriter, err error) {
	var missing features.MissingColumnError
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &missing):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, predictor.ErrModelNotFound):
		logger.Log.WithError(err).Error("model artifact unavailable")
		http.Error(w, "model is not available", http.StatusServiceUnavailable)
	default:
		logger.Log.WithError(err).Error("prediction failed")
		http.Error(w, "prediction failed", http.StatusInternalServerError)
	}
}

func ownerFrom(r *http.Request) (Owner, bool) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return Owner{}, false
	}
	return Owner{ID: claims.UserID, NamaLengkap: claims.NamaLengkap, Profesi: claims.Profesi}, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
