// Package labeler bootstraps training labels from canonical records with a
// point-scoring rubric. It is used once, offline, to build a supervised
// training set; inference relies on the trained classifier only.
package labeler

import (
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/normalizer"
)

const (
	baseScore = 2
	minScore  = 2
)

// Result is a label with the score it was derived from.
type Result struct {
	Score int    `json:"skor_risiko"`
	Label string `json:"label_risiko"`
}

// Score sums the rubric for a canonical record, without jitter. Numeric
// fields that cannot be read as numbers never trigger their rule.
func Score(rec models.Record) int {
	score := baseScore
	if age, ok := normalizer.ToNumber(rec[models.ColUmurIbu]); ok && (age < 18 || age > 35) {
		score += 4
	}
	if g, ok := normalizer.ToNumber(rec[models.ColGravida]); ok && g >= 4 {
		score += 4
	}
	if weeks, ok := normalizer.ToNumber(rec[models.ColUmurKehamilan]); ok && weeks > 42 {
		score += 4
	}
	if h, ok := normalizer.ToNumber(rec[models.ColTinggiBadan]); ok && h < 145 {
		score += 4
	}
	if rec[models.ColPenyakitAnemia] == models.Positif {
		score += 4
	}
	if rec[models.ColHasilTesVDRL] == models.Positif {
		score += 4
	}
	if rec[models.ColHasilTesHbsAg] == models.Positif {
		score += 4
	}
	switch rec[models.ColKategoriTekanan] {
	case models.BPHipertensi1:
		score += 6
	case models.BPHipertensi2:
		score += 8
	}
	if rec[models.ColPosisiJanin] == models.Abnormal {
		score += 8
	}
	return score
}

// LabelFor maps a final score to its risk tier.
func LabelFor(score int) string {
	switch {
	case score <= 5:
		return models.RiskLow
	case score <= 10:
		return models.RiskHigh
	default:
		return models.RiskVeryHigh
	}
}

// Label scores one record, adds one jitter draw and clamps the total at 2.
func Label(rec models.Record, jitter Jitter) Result {
	score := Score(rec) + jitter.Draw()
	if score < minScore {
		score = minScore
	}
	return Result{Score: score, Label: LabelFor(score)}
}

// LabelTable labels every row in order, consuming one draw per row, and
// returns a copy of the table with skor_risiko and label_risiko columns.
func LabelTable(t models.Table, jitter Jitter) (models.Table, []Result) {
	out := t.Clone().WithColumn(models.ColSkorRisiko).WithColumn(models.ColLabelRisiko)
	results := make([]Result, len(out.Rows))
	for i, row := range out.Rows {
		res := Label(row, jitter)
		row[models.ColSkorRisiko] = res.Score
		row[models.ColLabelRisiko] = res.Label
		results[i] = res
	}
	return out, results
}
