package labels

import (
	"sort"

	"stationcast/internal/series"
)

// FutureIndex returns, for every i, the smallest j with ts[j] >= ts[i]+h, or
// -1 when no such sample exists. ts must be ascending.
func FutureIndex(ts []int64, h int64) []int {
	idx := make([]int, len(ts))
	for i, t := range ts {
		target := t + h
		j := sort.Search(len(ts), func(k int) bool { return ts[k] >= target })
		if j == len(ts) {
			j = -1
		}
		idx[i] = j
	}
	return idx
}

// AddFutureTargets adds y_{field}_{horizon} columns holding the value of field
// at the first same-entity sample at or after ts+horizon. Rows without such a
// sample get a missing target.
func AddFutureTargets(f *series.Frame, hs Horizons, fields []string) *series.Frame {
	out := f.Ensure(fields)
	ts := out.TS()
	spans := out.Spans()

	for _, h := range hs.All() {
		// Lookups depend only on timestamps, so share them across fields.
		lookups := make([][]int, len(spans))
		for s, sp := range spans {
			lookups[s] = FutureIndex(ts[sp.Start:sp.End], h.MS)
		}
		for _, field := range fields {
			src, _ := out.Col(field)
			y := series.Column(out.Len())
			for s, sp := range spans {
				for i, j := range lookups[s] {
					if j >= 0 {
						y[sp.Start+i] = src[sp.Start+j]
					}
				}
			}
			out = out.With(TargetName(field, h.Key), y)
		}
	}
	return out
}
