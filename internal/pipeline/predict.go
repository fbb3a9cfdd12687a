package pipeline

import (
	"math"
	"path/filepath"
	"strconv"
	"time"

	"stationcast/internal/dataset"
	"stationcast/internal/features"
	"stationcast/internal/learn"
	"stationcast/internal/metrics"
	"stationcast/internal/models"
	"stationcast/internal/series"

	"github.com/montanaflynn/stats"
)

// Output keys of the group risk forecasts
const (
	FaultProbability   = "faultProbability"
	WarningProbability = "warningProbability"
)

// Snapshot is the newest feature row per entity.
type Snapshot struct {
	TS int64
	// StationRow is -1 when no station row qualifies.
	StationRow int
	// GroupRows are the group rows at TS in ascending groupId order.
	GroupRows []int
}

// Latest selects the inference rows. The reference timestamp is the newest
// station timestamp; when no group row shares it, the newest group
// timestamp is used with the newest station row at or before it.
func Latest(station, groups *series.Frame) Snapshot {
	ref, ok := station.MaxTS()
	if !ok {
		return Snapshot{StationRow: -1}
	}
	rows := groupRowsAt(groups, ref)
	if len(rows) == 0 {
		if gmax, ok := groups.MaxTS(); ok {
			ref = gmax
			rows = groupRowsAt(groups, ref)
		}
	}
	return Snapshot{TS: ref, StationRow: lastAtOrBefore(station, ref), GroupRows: rows}
}

func groupRowsAt(groups *series.Frame, ts int64) []int {
	var rows []int
	for _, sp := range groups.Spans() {
		// the last row of an entity at ts wins
		for i := sp.End - 1; i >= sp.Start; i-- {
			if groups.TS()[i] == ts {
				rows = append(rows, i)
				break
			}
			if groups.TS()[i] < ts {
				break
			}
		}
	}
	return rows
}

func lastAtOrBefore(station *series.Frame, ts int64) int {
	all := station.TS()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i] <= ts {
			return i
		}
	}
	return -1
}

// Predictor serves predictions from a loaded bundle.
type Predictor struct {
	Bundle *Bundle
	// ModelPath is reported in the output's model info.
	ModelPath string
}

// Predict builds the runtime features of ds, aligns them to the bundle's
// schema and forecasts every target at the latest snapshot. Missing models
// and absent rows yield null forecasts, never an error.
func (p *Predictor) Predict(ds *dataset.Dataset) *models.Prediction {
	start := time.Now()
	defer metrics.ObserveStage("predict", start)

	b := p.Bundle
	st, stCols := dataset.StationFeatures(ds.Station, ds.Groups)
	gf, gCols := dataset.GroupFeatures(st, ds.Groups)
	if len(b.StationFeatureCols) > 0 {
		stCols = b.StationFeatureCols
	}
	if len(b.GroupFeatureCols) > 0 {
		gCols = b.GroupFeatureCols
	}
	st = st.Ensure(stCols)
	gf = gf.Ensure(gCols)

	snap := Latest(st, gf)
	keys := b.Horizons.Keys()
	now := series.Missing

	out := &models.Prediction{
		TS:       snap.TS,
		Horizons: keys,
		Station: models.StationPrediction{
			TargetPowerKw: models.Forecast{Now: &now, Pred: map[string]series.Value{}},
		},
		BMS: map[string]map[string]models.Forecast{},
		Macro: models.MacroRisk{
			ProbAnyFault:          map[string]series.Value{},
			ExpectedFaultedGroups: map[string]series.Value{},
			ProbAnyWarning:        map[string]series.Value{},
			ExpectedWarnedGroups:  map[string]series.Value{},
		},
		Features: models.FeatureAudit{
			Station: map[string]series.Value{},
			Groups:  map[string]map[string]series.Value{},
		},
		ModelInfo: p.modelInfo(),
	}

	if snap.StationRow >= 0 {
		now = st.At(features.StationTarget, snap.StationRow)
		x := st.Rows([]int{snap.StationRow}).Matrix(stCols)
		for _, key := range keys {
			m, ok := b.Station[key]
			if !ok {
				out.Station.TargetPowerKw.Pred[key] = series.Missing
				continue
			}
			out.Station.TargetPowerKw.Pred[key] = series.Of(m.Predict(x)[0])
		}
		for j, c := range stCols {
			out.Features.Station[c] = series.Of(x[0][j])
		}
	}

	if len(snap.GroupRows) > 0 {
		p.predictGroups(out, gf.Rows(snap.GroupRows), gCols, keys)
	}

	metrics.PredictionTimestamp.Set(float64(out.TS))
	return out
}

func (p *Predictor) predictGroups(out *models.Prediction, rows *series.Frame, cols, keys []string) {
	b := p.Bundle
	x := rows.Matrix(cols)
	ids := make([]string, rows.Len())
	for i := range ids {
		ids[i] = strconv.FormatInt(rows.Entity(i), 10)
		item := map[string]models.Forecast{}
		for _, t := range features.GroupTargets {
			item[t.Key] = models.Forecast{Pred: map[string]series.Value{}}
		}
		item[FaultProbability] = models.Forecast{Pred: map[string]series.Value{}}
		item[WarningProbability] = models.Forecast{Pred: map[string]series.Value{}}
		out.BMS[ids[i]] = item

		audit := make(map[string]series.Value, len(cols))
		for j, c := range cols {
			audit[c] = series.Of(x[i][j])
		}
		out.Features.Groups[ids[i]] = audit
	}

	for _, key := range keys {
		for _, t := range features.GroupTargets {
			m, ok := b.Group[key][t.Field]
			var pred []float64
			if ok {
				pred = m.Predict(x)
			}
			for i, id := range ids {
				v := series.Missing
				if ok {
					v = series.Of(pred[i])
				}
				out.BMS[id][t.Key].Pred[key] = v
			}
		}

		fault := probabilities(b.Fault[key], x)
		warn := probabilities(b.Warning[key], x)
		for i, id := range ids {
			out.BMS[id][FaultProbability].Pred[key] = series.Of(fault[i])
			out.BMS[id][WarningProbability].Pred[key] = series.Of(warn[i])
		}
		out.Macro.ProbAnyFault[key], out.Macro.ExpectedFaultedGroups[key] = MacroRisk(fault)
		out.Macro.ProbAnyWarning[key], out.Macro.ExpectedWarnedGroups[key] = MacroRisk(warn)
	}
}

// probabilities returns NaN for every row when the classifier is absent.
func probabilities(c learn.Classifier, x [][]float64) []float64 {
	if c == nil {
		out := make([]float64, len(x))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return c.PredictProba(x)
}

// MacroRisk aggregates per-group probabilities into the probability that at
// least one group is affected and the expected number of affected groups.
// Non-finite probabilities are ignored; both results are missing when none
// remain.
func MacroRisk(probs []float64) (probAny, expected series.Value) {
	var finite stats.Float64Data
	for _, p := range probs {
		if !math.IsNaN(p) && !math.IsInf(p, 0) {
			finite = append(finite, p)
		}
	}
	if len(finite) == 0 {
		return series.Missing, series.Missing
	}
	sum, err := finite.Sum()
	if err != nil {
		return series.Missing, series.Missing
	}
	none := 1.0
	for _, p := range finite {
		none *= 1 - math.Min(math.Max(p, 0), 1)
	}
	return series.Of(1 - none), series.Of(sum)
}

func (p *Predictor) modelInfo() models.ModelInfo {
	b := p.Bundle
	path := p.ModelPath
	if abs, err := filepath.Abs(path); err == nil && path != "" {
		path = abs
	}
	return models.ModelInfo{
		RunID:              b.RunID,
		TrainedAtMs:        b.TrainedAtMs,
		Source:             b.Source,
		ModelPath:          path,
		StationFeatureCols: b.StationFeatureCols,
		GroupFeatureCols:   b.GroupFeatureCols,
		Metrics:            b.Metrics,
	}
}
