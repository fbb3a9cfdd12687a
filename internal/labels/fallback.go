package labels

import (
	"stationcast/internal/features"
	"stationcast/internal/series"
)

// MergeCounterFallback raises fault and warning labels when the entity's own
// fault/warning counter is positive at the future sample located for the
// horizon (first sample at or after ts+horizon). Labels are merged with a
// logical OR, so an existing positive is never cleared. Missing label
// columns start at 0.
//
// A counter can already be non-zero because of an older event; the rule
// treats that as positive all the same.
func MergeCounterFallback(f *series.Frame, hs Horizons) *series.Frame {
	out := f.Ensure([]string{features.WarningCount, features.FaultCount})
	ts := out.TS()
	spans := out.Spans()
	warnCnt, _ := out.Col(features.WarningCount)
	faultCnt, _ := out.Col(features.FaultCount)

	for _, h := range hs.All() {
		warn := existing(out, WarningName(h.Key))
		fault := existing(out, FaultName(h.Key))
		for _, sp := range spans {
			for i, j := range FutureIndex(ts[sp.Start:sp.End], h.MS) {
				if j < 0 {
					continue
				}
				row, fut := sp.Start+i, sp.Start+j
				warn[row] = series.Max(warn[row], series.Bool(warnCnt[fut].Positive()))
				fault[row] = series.Max(fault[row], series.Bool(faultCnt[fut].Positive()))
			}
		}
		out = out.With(WarningName(h.Key), warn)
		out = out.With(FaultName(h.Key), fault)
	}
	return out
}

// existing returns a writable copy of a 0/1 label column, zero-filled where
// the column or a cell is absent.
func existing(f *series.Frame, name string) []series.Value {
	y := make([]series.Value, f.Len())
	src, ok := f.Col(name)
	for i := range y {
		if ok && src[i].Valid {
			y[i] = src[i]
		} else {
			y[i] = series.Bool(false)
		}
	}
	return y
}
