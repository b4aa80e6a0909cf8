package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
	"github.com/maternal-risk/platform/pkg/tabular"
)

const defaultImportanceLimit = 10

// ArtifactLoader is satisfied by *predictor.Predictor.
type ArtifactLoader interface {
	Load(model string) (predictor.Artifact, error)
}

type Handler struct {
	counter   *RiskCounter
	artifacts ArtifactLoader
	modelName string
	maxUpload int64
}

func NewHandler(counter *RiskCounter, artifacts ArtifactLoader, modelName string, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{counter: counter, artifacts: artifacts, modelName: modelName, maxUpload: maxUpload}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/analytics/distribution", h.handleDistribution).Methods(http.MethodGet)
	r.HandleFunc("/analytics/distribution/me", h.handleOwnDistribution).Methods(http.MethodGet)
	r.HandleFunc("/analytics/importance", h.handleImportance).Methods(http.MethodGet)
	r.HandleFunc("/analytics/summary", h.handleSummary).Methods(http.MethodPost)
}

func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	summary, err := h.counter.Snapshot(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to read risk counters")
		http.Error(w, "failed to read distribution", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleOwnDistribution(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	dist, err := h.counter.OwnerDistribution(r.Context(), claims.UserID.String())
	if err != nil {
		logger.Log.WithError(err).Error("failed to read owner counters")
		http.Error(w, "failed to read distribution", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"distribution": dist})
}

func (h *Handler) handleImportance(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" {
		model = h.modelName
	}
	limit := defaultImportanceLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	if !predictor.ValidModelName(model) {
		http.Error(w, "invalid model name", http.StatusBadRequest)
		return
	}

	artifact, err := h.artifacts.Load(model)
	if err != nil {
		if errors.Is(err, predictor.ErrModelNotFound) {
			http.Error(w, "model is not available", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).WithField("model", model).Error("failed to load artifact")
		http.Error(w, "failed to load model", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":    artifact.ModelName,
		"version":  artifact.Version,
		"features": TopImportance(artifact.Importance(), limit),
	})
}

// handleSummary breaks down an exported prediction result (csv or xlsx with a
// hasil_prediksi column) without touching the counters.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
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

	table, err := tabular.Read(header.Filename, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, Summarize(table))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
