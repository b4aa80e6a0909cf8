package normalizer

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/tabular"
	"github.com/maternal-risk/platform/pkg/terminology"
)

// Result is a normalized table with the vocabulary findings for it.
type Result struct {
	Table    models.Table `json:"table"`
	Findings []Finding    `json:"findings"`
}

// Service exposes Normalize and Audit over HTTP for data preparation.
type Service struct {
	catalog   terminology.Catalog
	maxUpload int64
}

func NewService(catalog terminology.Catalog, maxUpload int64) *Service {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Service{catalog: catalog, maxUpload: maxUpload}
}

// Process normalizes raw and audits the result.
func (s *Service) Process(raw models.Table) Result {
	normalized := Normalize(raw)
	findings := Audit(normalized, s.catalog)
	if len(findings) > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"rows":     len(normalized.Rows),
			"findings": len(findings),
		}).Warn("normalized table has values outside the vocabulary")
	}
	if findings == nil {
		findings = []Finding{}
	}
	return Result{Table: normalized, Findings: findings}
}

func (s *Service) Register(r *mux.Router) {
	r.HandleFunc("/normalize", s.handleNormalize).Methods(http.MethodPost)
	r.HandleFunc("/normalize/upload", s.handleUpload).Methods(http.MethodPost)
}

func (s *Service) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req models.Table
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.Process(req))
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
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
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.Process(raw))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
