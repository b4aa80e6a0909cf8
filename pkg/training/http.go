package training

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/training/jobs", h.handleCreateJob).Methods(http.MethodPost)
	r.HandleFunc("/training/jobs", h.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/training/jobs/latest", h.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/training/jobs/{id}", h.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/training/jobs/{id}/status", h.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/training/jobs/{id}/artifact", h.handleArtifact).Methods(http.MethodGet)
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	job, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidJob) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to create training job")
		http.Error(w, "failed to create training job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"job": job})
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context(), r.URL.Query().Get("model"), parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list training jobs")
		http.Error(w, "failed to list training jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": jobs})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Latest(r.Context(), r.URL.Query().Get("model"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	artifact, err := h.service.GetArtifact(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"artifact": artifact})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrJobNotFound) {
		http.Error(w, "training job not found", http.StatusNotFound)
		return
	}
	logger.Log.WithError(err).Error("failed to load training job")
	http.Error(w, "failed to load training job", http.StatusInternalServerError)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
