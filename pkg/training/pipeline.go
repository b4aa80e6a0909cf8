package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/labeler"
	"github.com/maternal-risk/platform/pkg/ml/features"
	"github.com/maternal-risk/platform/pkg/ml/linear"
	"github.com/maternal-risk/platform/pkg/normalizer"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
)

const algorithm = "one-vs-rest-logistic"

// Options controls a training run.
type Options struct {
	ModelName string
	// Seed drives both label jitter and the train/test split.
	Seed         int64
	TestRatio    float64
	Epochs       int
	LearningRate float64
	L2           float64
}

func (o Options) withDefaults() Options {
	if o.ModelName == "" {
		o.ModelName = "pregnancy-risk"
	}
	if o.TestRatio <= 0 || o.TestRatio >= 1 {
		o.TestRatio = 0.2
	}
	return o
}

// Report summarises a training run.
type Report struct {
	TrainSamples int            `json:"train_samples"`
	TestSamples  int            `json:"test_samples"`
	Accuracy     float64        `json:"accuracy"`
	MacroF1      float64        `json:"macro_f1"`
	Distribution map[string]int `json:"label_distribution"`
}

// Metrics flattens the report for job storage.
func (r Report) Metrics() map[string]interface{} {
	dist := make(map[string]interface{}, len(r.Distribution))
	for k, v := range r.Distribution {
		dist[k] = v
	}
	return map[string]interface{}{
		"train_samples":      r.TrainSamples,
		"test_samples":       r.TestSamples,
		"accuracy":           r.Accuracy,
		"macro_f1":           r.MacroF1,
		"label_distribution": dist,
	}
}

// BuildTrainingSet normalises raw historical rows and labels them in row
// order. The returned table holds the feature columns only.
func BuildTrainingSet(raw models.Table, jitter labeler.Jitter) (models.Table, []string) {
	canonical := normalizer.Normalize(raw)
	labelled, results := labeler.LabelTable(canonical, jitter)
	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = r.Label
	}
	featureTable := labelled.Without(
		models.ColLabelRisiko, models.ColSkorRisiko,
		models.ColTekananSistolik, models.ColTekananDiastolik,
	)
	return featureTable, labels
}

// Train builds the training set, fits the encoder and classifier on a
// stratified split and evaluates on the held out rows.
func Train(raw models.Table, opts Options) (predictor.Artifact, Report, error) {
	opts = opts.withDefaults()
	if len(raw.Rows) == 0 {
		return predictor.Artifact{}, Report{}, fmt.Errorf("dataset has no rows")
	}

	table, labels := BuildTrainingSet(raw, labeler.NewSeededJitter(opts.Seed))
	trainIdx, testIdx := stratifiedSplit(labels, opts.TestRatio, opts.Seed)

	trainRows, trainLabels := subset(table.Rows, labels, trainIdx)
	enc, err := features.Fit(trainRows, models.NumericFeatures, models.CategoricalFeatures)
	if err != nil {
		return predictor.Artifact{}, Report{}, fmt.Errorf("failed to fit encoder: %w", err)
	}
	samples, err := enc.TransformAll(trainRows)
	if err != nil {
		return predictor.Artifact{}, Report{}, err
	}
	classifier, err := linear.TrainOneVsRest(samples, trainLabels, models.RiskLabels, linear.Options{
		Epochs:       opts.Epochs,
		LearningRate: opts.LearningRate,
		L2:           opts.L2,
	})
	if err != nil {
		return predictor.Artifact{}, Report{}, err
	}

	artifact := predictor.Artifact{
		ModelName:    opts.ModelName,
		Version:      time.Now().UTC().Format("20060102T150405Z"),
		CreatedAt:    time.Now().UTC(),
		Algorithm:    algorithm,
		FeatureNames: enc.FeatureNames(),
		Encoder:      enc,
		Classifier:   classifier,
	}

	evalRows, evalLabels := subset(table.Rows, labels, testIdx)
	if len(evalRows) == 0 {
		evalRows, evalLabels = trainRows, trainLabels
	}
	predicted, err := artifact.PredictRecords(evalRows)
	if err != nil {
		return predictor.Artifact{}, Report{}, err
	}

	report := Report{
		TrainSamples: len(trainIdx),
		TestSamples:  len(testIdx),
		Accuracy:     Accuracy(evalLabels, predicted),
		MacroF1:      MacroF1(evalLabels, predicted),
		Distribution: Distribution(labels),
	}
	artifact.Metrics = report.Metrics()
	return artifact, report, nil
}

// stratifiedSplit holds out ratio of each label's rows, rounded, keeping at
// least one row of every label for training.
func stratifiedSplit(labels []string, ratio float64, seed int64) (train, test []int) {
	byLabel := map[string][]int{}
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	keys := make([]string, 0, len(byLabel))
	for k := range byLabel {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5eed))
	for _, k := range keys {
		idx := byLabel[k]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(ratio * float64(len(idx))))
		if n >= len(idx) {
			n = len(idx) - 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func subset(rows []models.Record, labels []string, idx []int) ([]models.Record, []string) {
	outRows := make([]models.Record, len(idx))
	outLabels := make([]string, len(idx))
	for i, j := range idx {
		outRows[i] = rows[j]
		outLabels[i] = labels[j]
	}
	return outRows, outLabels
}
