package dataset

import (
	"math"

	"stationcast/internal/features"
	"stationcast/internal/series"
)

// aggregate reduces the values of one field across groups at a timestamp.
type aggregate struct {
	name   string
	field  string
	reduce func(vals []float64) series.Value
}

var groupAggregates = []aggregate{
	{features.GroupSocAvg, "bms_socPct", mean},
	{features.GroupTempMax, "bms_temperatureC", maximum},
	{features.GroupInsuMin, "bms_insulationResistanceKohm", minimum},
	{features.GroupDeltaMax, "bms_deltaCellVoltageMv", maximum},
	{features.GroupPcsKwSum, "pcs_actualKw", sum},
}

func mean(vals []float64) series.Value {
	s := sum(vals)
	if !s.Valid {
		return s
	}
	return series.Of(s.V / float64(len(vals)))
}

// sum is missing over zero values, not 0, so the fill step decides.
func sum(vals []float64) series.Value {
	if len(vals) == 0 {
		return series.Missing
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return series.Of(s)
}

func maximum(vals []float64) series.Value {
	if len(vals) == 0 {
		return series.Missing
	}
	m := math.Inf(-1)
	for _, v := range vals {
		m = math.Max(m, v)
	}
	return series.Of(m)
}

func minimum(vals []float64) series.Value {
	if len(vals) == 0 {
		return series.Missing
	}
	m := math.Inf(1)
	for _, v := range vals {
		m = math.Min(m, v)
	}
	return series.Of(m)
}

// GroupAggregates computes the cross-group aggregates for every timestamp
// present in groups. Missing values are ignored.
func GroupAggregates(groups *series.Frame) map[int64]map[string]series.Value {
	byTS := map[int64]map[string][]float64{}
	ts := groups.TS()
	for _, agg := range groupAggregates {
		col, ok := groups.Col(agg.field)
		if !ok {
			continue
		}
		for i, v := range col {
			bucket, ok := byTS[ts[i]]
			if !ok {
				bucket = map[string][]float64{}
				byTS[ts[i]] = bucket
			}
			if v.Valid {
				bucket[agg.name] = append(bucket[agg.name], v.V)
			}
		}
	}

	out := make(map[int64]map[string]series.Value, len(byTS))
	for t, bucket := range byTS {
		row := make(map[string]series.Value, len(groupAggregates))
		for _, agg := range groupAggregates {
			row[agg.name] = agg.reduce(bucket[agg.name])
		}
		out[t] = row
	}
	return out
}

// lookupByTS returns, for each timestamp in ts, the row of src with that
// exact timestamp or -1. src must have one row per timestamp.
func lookupByTS(src *series.Frame, ts []int64) []int {
	index := make(map[int64]int, src.Len())
	for i, t := range src.TS() {
		index[t] = i
	}
	out := make([]int, len(ts))
	for i, t := range ts {
		j, ok := index[t]
		if !ok {
			j = -1
		}
		out[i] = j
	}
	return out
}

// StationFeatures joins the group aggregates onto the station rows, fills
// the station base fields and derives the rolling features. It returns the
// feature frame and the model input columns.
func StationFeatures(station, groups *series.Frame) (*series.Frame, []string) {
	aggs := GroupAggregates(groups)
	ts := station.TS()
	out := station
	for _, agg := range groupAggregates {
		col := series.Column(len(ts))
		for i, t := range ts {
			if row, ok := aggs[t]; ok {
				col[i] = row[agg.name]
			}
		}
		out = out.With(agg.name, col)
	}

	out = out.Filled(features.StationBase)
	out, derived := features.Build(out, features.StationBase)
	return out, derived
}

// GroupFeatures joins the inherited station columns onto each group row by
// timestamp, fills and derives the group features. The model input columns
// are groupId followed by the derived columns.
func GroupFeatures(stationFeat, groups *series.Frame) (*series.Frame, []string) {
	out := groups
	idx := lookupByTS(stationFeat, groups.TS())
	for _, name := range features.StationInherited {
		src, _ := stationFeat.Col(name)
		col := series.Column(len(idx))
		for i, j := range idx {
			if j >= 0 && src != nil {
				col[i] = src[j]
			}
		}
		out = out.With(name, col)
	}

	out = out.Filled(features.GroupFill)
	out, derived := features.Build(out, features.GroupRolling)
	return out, append([]string{features.GroupID}, derived...)
}
