package terminology

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogKnownValues(t *testing.T) {
	cat := DefaultCatalog()
	if !cat.Known("penyakit_anemia", "Positif") {
		t.Fatal("expected Positif to be known")
	}
	if cat.Known("penyakit_anemia", "Minimal") {
		t.Fatal("expected Minimal to be outside the canonical vocabulary")
	}
	if !cat.Known("nama_pasien", "anything") {
		t.Fatal("undescribed columns should accept any value")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := "vocabularies:\n  posisi_janin: [Normal, Abnormal, Sungsang]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cat.Known("posisi_janin", "Sungsang") {
		t.Fatal("expected yaml vocabulary to be used")
	}
	if cols := cat.Columns(); len(cols) != 1 || cols[0] != "posisi_janin" {
		t.Fatalf("unexpected columns %v", cols)
	}
}

func TestLoadEmptyCatalogFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("vocabularies: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}
