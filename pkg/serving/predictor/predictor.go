package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/ml/features"
	"github.com/maternal-risk/platform/pkg/ml/linear"
)

var (
	ErrModelNotFound    = errors.New("model artifact not found")
	ErrInvalidModelName = errors.New("invalid model name")
)

var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidModelName reports whether name is safe to use as an artifact file stem.
func ValidModelName(name string) bool {
	return modelNamePattern.MatchString(name)
}

// Artifact is a trained risk classifier together with the encoder it was fit
// with. It is stored as JSON.
type Artifact struct {
	ModelName    string                 `json:"model_name"`
	Version      string                 `json:"version"`
	CreatedAt    time.Time              `json:"created_at"`
	Algorithm    string                 `json:"algorithm"`
	FeatureNames []string               `json:"feature_names"`
	Encoder      *features.Encoder      `json:"encoder"`
	Classifier   linear.OneVsRest       `json:"classifier"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
}

// PredictRecords classifies canonical records, one label per record.
func (a Artifact) PredictRecords(rows []models.Record) ([]string, error) {
	if a.Encoder == nil {
		return nil, fmt.Errorf("artifact missing encoder")
	}
	vectors, err := a.Encoder.TransformAll(rows)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(vectors))
	for i, vec := range vectors {
		labels[i], _ = a.Classifier.PredictClass(vec)
	}
	return labels, nil
}

// FeatureImportance pairs each encoded feature with its weight.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

func (a Artifact) Importance() []FeatureImportance {
	weights := a.Classifier.Importance()
	out := make([]FeatureImportance, 0, len(weights))
	for i, w := range weights {
		if i >= len(a.FeatureNames) {
			break
		}
		out = append(out, FeatureImportance{Feature: a.FeatureNames[i], Importance: w})
	}
	return out
}

// Save writes the artifact to path.
func (a Artifact) Save(path string) error {
	content, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

// LatestPath is where the current artifact of a model lives.
func LatestPath(dir, model string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_latest.json", model))
}

type Predictor struct {
	dir   string
	cache map[string]cachedArtifact
	mu    sync.RWMutex
}

type cachedArtifact struct {
	artifact Artifact
	modTime  int64
}

func NewPredictor(dir string) *Predictor {
	return &Predictor{
		dir:   dir,
		cache: make(map[string]cachedArtifact),
	}
}

// Predict classifies every row of a canonical table with the latest artifact
// of model.
func (p *Predictor) Predict(model string, t models.Table) ([]string, Artifact, error) {
	artifact, err := p.Load(model)
	if err != nil {
		return nil, Artifact{}, err
	}
	labels, err := artifact.PredictRecords(t.Rows)
	if err != nil {
		return nil, artifact, err
	}
	return labels, artifact, nil
}

// Load returns the latest artifact of model, reading it again only when the
// file has changed.
func (p *Predictor) Load(model string) (Artifact, error) {
	if !ValidModelName(model) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrInvalidModelName, model)
	}
	latest := LatestPath(p.dir, model)
	info, err := os.Stat(latest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrModelNotFound, model)
		}
		return Artifact{}, err
	}
	mod := info.ModTime().UnixNano()

	p.mu.RLock()
	cached, ok := p.cache[model]
	p.mu.RUnlock()
	if ok && cached.modTime == mod {
		return cached.artifact, nil
	}

	content, err := os.ReadFile(latest)
	if err != nil {
		return Artifact{}, err
	}
	var artifact Artifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("invalid artifact %s: %w", latest, err)
	}
	p.mu.Lock()
	p.cache[model] = cachedArtifact{artifact: artifact, modTime: mod}
	p.mu.Unlock()
	return artifact, nil
}
