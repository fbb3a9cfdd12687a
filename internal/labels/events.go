package labels

import (
	"sort"

	"stationcast/internal/models"
	"stationcast/internal/series"
)

// Classify reports whether an occurrence counts as a fault and whether it
// counts as a warning. The two are independent.
type Classify func(o models.AlarmOccurrence) (fault, warning bool)

// DefaultClassify treats critical or latched occurrences as faults and
// warning-level occurrences as warnings.
func DefaultClassify(o models.AlarmOccurrence) (fault, warning bool) {
	fault = o.Level == models.LevelCritical || o.Type == models.TypeLatched
	warning = o.Level == models.LevelWarning
	return fault, warning
}

// eventIndex holds sorted occurrence timestamps per entity for one class.
type eventIndex map[int64][]int64

func indexEvents(occ []models.AlarmOccurrence, classify Classify) (faults, warnings eventIndex) {
	faults, warnings = eventIndex{}, eventIndex{}
	for _, o := range occ {
		if !o.GroupID.Valid {
			continue
		}
		fault, warning := classify(o)
		if fault {
			faults[o.GroupID.Int64] = append(faults[o.GroupID.Int64], o.TS)
		}
		if warning {
			warnings[o.GroupID.Int64] = append(warnings[o.GroupID.Int64], o.TS)
		}
	}
	for _, idx := range []eventIndex{faults, warnings} {
		for _, ts := range idx {
			sort.Slice(ts, func(a, b int) bool { return ts[a] < ts[b] })
		}
	}
	return faults, warnings
}

// NextEvent returns the index of the first event strictly after t, or -1.
// An event at exactly t has already happened. events must be ascending.
func NextEvent(events []int64, t int64) int {
	j := sort.Search(len(events), func(k int) bool { return events[k] > t })
	if j == len(events) {
		return -1
	}
	return j
}

// AddEventLabels adds y_fault_{horizon} and y_warning_{horizon} columns. A
// row at t is positive when the next same-entity occurrence of the class
// after t falls at or before t+horizon. Entities without occurrences of a
// class are 0 throughout. Occurrences without a group id are ignored.
func AddEventLabels(f *series.Frame, occ []models.AlarmOccurrence, hs Horizons, classify Classify) *series.Frame {
	if classify == nil {
		classify = DefaultClassify
	}
	faults, warnings := indexEvents(occ, classify)

	out := f
	for _, h := range hs.All() {
		out = out.With(FaultName(h.Key), label(out, faults, h.MS))
		out = out.With(WarningName(h.Key), label(out, warnings, h.MS))
	}
	return out
}

func label(f *series.Frame, idx eventIndex, h int64) []series.Value {
	ts := f.TS()
	y := make([]series.Value, f.Len())
	for i := range y {
		y[i] = series.Bool(false)
	}
	for _, sp := range f.Spans() {
		events := idx[sp.ID]
		if len(events) == 0 {
			continue
		}
		for i := sp.Start; i < sp.End; i++ {
			if j := NextEvent(events, ts[i]); j >= 0 {
				y[i] = series.Bool(events[j] <= ts[i]+h)
			}
		}
	}
	return y
}
