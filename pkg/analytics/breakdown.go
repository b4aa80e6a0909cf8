// Package analytics summarises predicted patient rows: how many fall in each
// risk label, how the labels spread over age and gravida groups, and which
// encoded features weigh most in the classifier.
package analytics

import (
	"sort"

	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/normalizer"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
)

// Age groups.
const (
	AgeUnder20 = "< 20 Tahun"
	AgeOptimal = "20-35 Tahun (Optimal)"
	AgeOver35  = "> 35 Tahun"
)

// Gravida groups.
const (
	GravidaPrimi  = "1 (Primigravida)"
	GravidaMulti  = "2-4"
	GravidaGrande = "> 4 (Grande Multigravida)"
)

var (
	AgeGroups     = []string{AgeUnder20, AgeOptimal, AgeOver35}
	GravidaGroups = []string{GravidaPrimi, GravidaMulti, GravidaGrande}
)

// LabelCount is one bar of the risk distribution chart.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// GroupCount is one bar of a grouped chart: patients in Group with Label.
type GroupCount struct {
	Group string `json:"group"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary is everything the collective analysis view renders.
type Summary struct {
	Total        int          `json:"total"`
	Distribution []LabelCount `json:"distribution"`
	ByAge        []GroupCount `json:"by_age"`
	ByGravida    []GroupCount `json:"by_gravida"`
}

// AgeGroup buckets a maternal age. Unreadable ages count as 0.
func AgeGroup(v interface{}) string {
	age, ok := normalizer.ToNumber(v)
	if !ok {
		age = 0
	}
	switch {
	case age < 20:
		return AgeUnder20
	case age <= 35:
		return AgeOptimal
	default:
		return AgeOver35
	}
}

// GravidaGroup buckets a pregnancy count using its first digit run. A count
// of 0 (unreadable) falls in the last group.
func GravidaGroup(v interface{}) string {
	switch n := normalizer.ExtractCount(v); {
	case n == 1:
		return GravidaPrimi
	case n >= 2 && n <= 4:
		return GravidaMulti
	default:
		return GravidaGrande
	}
}

// Distribution counts labels. Known risk labels come first in severity order,
// followed by anything else alphabetically; labels with no rows are omitted.
func Distribution(labels []string) []LabelCount {
	counts := map[string]int{}
	for _, l := range labels {
		counts[l]++
	}
	return orderedCounts(counts)
}

// Summarize builds the collective view from rows carrying hasil_prediksi.
// Rows without a prediction are skipped.
func Summarize(t models.Table) Summary {
	var labels []string
	byAge := map[[2]string]int{}
	byGravida := map[[2]string]int{}
	for _, row := range t.Rows {
		label, _ := row[models.ColHasilPrediksi].(string)
		if label == "" {
			continue
		}
		labels = append(labels, label)
		byAge[[2]string{AgeGroup(row[models.ColUmurIbu]), label}]++
		byGravida[[2]string{GravidaGroup(row[models.ColGravida]), label}]++
	}
	return Summary{
		Total:        len(labels),
		Distribution: Distribution(labels),
		ByAge:        groupCountsFor(AgeGroups, byAge),
		ByGravida:    groupCountsFor(GravidaGroups, byGravida),
	}
}

// TopImportance returns the n most important features, largest first. Ties
// keep the artifact's feature order.
func TopImportance(items []predictor.FeatureImportance, n int) []predictor.FeatureImportance {
	out := append([]predictor.FeatureImportance(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func orderedCounts(counts map[string]int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	seen := map[string]bool{}
	for _, l := range models.RiskLabels {
		seen[l] = true
		if counts[l] > 0 {
			out = append(out, LabelCount{Label: l, Count: counts[l]})
		}
	}
	var others []string
	for l, c := range counts {
		if !seen[l] && c > 0 {
			others = append(others, l)
		}
	}
	sort.Strings(others)
	for _, l := range others {
		out = append(out, LabelCount{Label: l, Count: counts[l]})
	}
	return out
}

func groupCountsFor(groups []string, counts map[[2]string]int) []GroupCount {
	var out []GroupCount
	for _, g := range groups {
		perLabel := map[string]int{}
		for key, c := range counts {
			if key[0] == g {
				perLabel[key[1]] = c
			}
		}
		for _, lc := range orderedCounts(perLabel) {
			out = append(out, GroupCount{Group: g, Label: lc.Label, Count: lc.Count})
		}
	}
	return out
}
