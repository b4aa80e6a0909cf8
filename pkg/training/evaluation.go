package training

import "sort"

func Accuracy(truth, predicted []string) float64 {
	if len(truth) == 0 {
		return 0
	}
	var correct int
	for i := range truth {
		if i < len(predicted) && truth[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

// MacroF1 is the unweighted mean F1 over every label seen in truth or
// predicted. A label with no true or predicted positives scores 0.
func MacroF1(truth, predicted []string) float64 {
	labels := map[string]struct{}{}
	for _, l := range truth {
		labels[l] = struct{}{}
	}
	for _, l := range predicted {
		labels[l] = struct{}{}
	}
	if len(labels) == 0 {
		return 0
	}
	keys := make([]string, 0, len(labels))
	for l := range labels {
		keys = append(keys, l)
	}
	sort.Strings(keys)

	var sum float64
	for _, l := range keys {
		var tp, fp, fn float64
		for i := range truth {
			p := ""
			if i < len(predicted) {
				p = predicted[i]
			}
			switch {
			case truth[i] == l && p == l:
				tp++
			case truth[i] != l && p == l:
				fp++
			case truth[i] == l && p != l:
				fn++
			}
		}
		if denom := 2*tp + fp + fn; denom > 0 {
			sum += 2 * tp / denom
		}
	}
	return sum / float64(len(keys))
}

func Distribution(labels []string) map[string]int {
	out := make(map[string]int)
	for _, l := range labels {
		out[l]++
	}
	return out
}
