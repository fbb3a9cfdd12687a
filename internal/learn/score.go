package learn

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// MAE returns the mean absolute error, or NaN for empty input.
func MAE(want, got []float64) float64 {
	if len(want) == 0 || len(want) != len(got) {
		return math.NaN()
	}
	diffs := make(stats.Float64Data, len(want))
	for i := range want {
		diffs[i] = math.Abs(want[i] - got[i])
	}
	m, err := diffs.Mean()
	if err != nil {
		return math.NaN()
	}
	return m
}

// AUC returns the area under the ROC curve via the rank-sum statistic with
// tied scores sharing their average rank. It is NaN unless both classes are
// present.
func AUC(labels []int, scores []float64) float64 {
	if len(labels) != len(scores) {
		return math.NaN()
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	var pos, neg int
	var rankSum float64
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && scores[idx[end]] == scores[idx[start]] {
			end++
		}
		// ranks start..end-1 are 1-based start+1..end
		avg := float64(start+1+end) / 2
		for _, i := range idx[start:end] {
			if labels[i] != 0 {
				pos++
				rankSum += avg
			} else {
				neg++
			}
		}
		start = end
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}
	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}
