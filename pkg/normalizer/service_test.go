package normalizer

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/terminology"
)

func newTestRouter() *mux.Router {
	logger.Silence()
	r := mux.NewRouter()
	NewService(terminology.DefaultCatalog(), 0).Register(r)
	return r
}

func TestProcessReportsUnknownValues(t *testing.T) {
	svc := NewService(terminology.DefaultCatalog(), 0)
	res := svc.Process(models.Table{
		Columns: []string{models.ColPenyakitAnemia, models.ColHasilTesVDRL},
		Rows: []models.Record{
			{models.ColPenyakitAnemia: "Minimal", models.ColHasilTesVDRL: "Negative"},
			{models.ColPenyakitAnemia: "Severe", models.ColHasilTesVDRL: "Positive"},
		},
	})
	if res.Table.Rows[0][models.ColPenyakitAnemia] != models.Positif {
		t.Fatalf("expected Minimal to normalize, got %v", res.Table.Rows[0][models.ColPenyakitAnemia])
	}
	if len(res.Findings) != 1 || res.Findings[0].Value != "Severe" || res.Findings[0].Row != 1 {
		t.Fatalf("unexpected findings %+v", res.Findings)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	body, _ := json.Marshal(models.Table{
		Columns: []string{models.ColGravida, models.ColTekananDarah},
		Rows:    []models.Record{{models.ColGravida: "2nd", models.ColTekananDarah: "145/95"}},
	})
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/normalize", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	row := res.Table.Rows[0]
	if row[models.ColGravida] != float64(2) {
		t.Fatalf("expected gravida 2, got %v", row[models.ColGravida])
	}
	if row[models.ColKategoriTekanan] != models.BPHipertensi1 {
		t.Fatalf("expected stage 1 hypertension, got %v", row[models.ColKategoriTekanan])
	}
	if res.Findings == nil {
		t.Fatal("findings should encode as an empty list")
	}
}

func TestUploadEndpointRejectsUnknownFormat(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "data.txt")
	_, _ = part.Write([]byte("umur_ibu\n30\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/normalize/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
