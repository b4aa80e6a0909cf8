package linear

import (
	"fmt"
	"math"
)

// OneVsRest holds one binary model per class.
type OneVsRest struct {
	Classes []string  `json:"classes"`
	Models  []Weights `json:"models"`
}

// TrainOneVsRest fits a binary model for each class against all others.
// Classes absent from labels still get a model; it learns to never fire.
func TrainOneVsRest(samples [][]float64, labels []string, classes []string, opts Options) (OneVsRest, error) {
	if len(samples) != len(labels) {
		return OneVsRest{}, fmt.Errorf("samples (%d) and labels (%d) differ in length", len(samples), len(labels))
	}
	if len(samples) == 0 {
		return OneVsRest{}, fmt.Errorf("no training samples")
	}
	if len(classes) < 2 {
		return OneVsRest{}, fmt.Errorf("need at least two classes, got %d", len(classes))
	}
	model := OneVsRest{Classes: append([]string(nil), classes...), Models: make([]Weights, len(classes))}
	target := make([]float64, len(labels))
	for c, class := range classes {
		for i, l := range labels {
			if l == class {
				target[i] = 1
			} else {
				target[i] = 0
			}
		}
		w, _ := TrainLogistic(samples, target, opts)
		model.Models[c] = w
	}
	return model, nil
}

// Scores returns per-class probabilities normalised to sum to 1.
func (m OneVsRest) Scores(sample []float64) []float64 {
	scores := make([]float64, len(m.Models))
	var total float64
	for i, w := range m.Models {
		scores[i] = Predict(w, sample)
		total += scores[i]
	}
	if total > 0 {
		for i := range scores {
			scores[i] /= total
		}
	}
	return scores
}

// PredictClass returns the highest scoring class; ties go to the first class.
func (m OneVsRest) PredictClass(sample []float64) (string, []float64) {
	scores := m.Scores(sample)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	if len(m.Classes) == 0 {
		return "", scores
	}
	return m.Classes[best], scores
}

// Importance is the mean absolute coefficient per feature across classes,
// normalised to sum to 1.
func (m OneVsRest) Importance() []float64 {
	if len(m.Models) == 0 {
		return nil
	}
	width := len(m.Models[0].Coefficients)
	out := make([]float64, width)
	var total float64
	for _, w := range m.Models {
		for j := 0; j < width && j < len(w.Coefficients); j++ {
			out[j] += math.Abs(w.Coefficients[j]) / float64(len(m.Models))
		}
	}
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
