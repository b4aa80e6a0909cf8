package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the public signup and login routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/professions", h.handleProfessions).Methods(http.MethodGet)
}

// RegisterProtected mounts routes that need an authenticated user.
func (h *Handler) RegisterProtected(r *mux.Router) {
	r.HandleFunc("/auth/me", h.handleProfile).Methods(http.MethodGet)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	user, err := h.service.Signup(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"user":    user,
			"message": "Akun berhasil dibuat! Silakan masuk sekarang.",
		})
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUserExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error("failed to create user")
		http.Error(w, "failed to create user", http.StatusInternalServerError)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)
			return
		}
		logger.Log.WithError(err).Error("login failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleProfessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": Professions})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.service.Profile(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to load profile")
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
