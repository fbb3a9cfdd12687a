// Package pipeline trains the station and group models from a dataset,
// persists them as a bundle and serves predictions from the latest
// feature snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"stationcast/internal/dataset"
	"stationcast/internal/features"
	"stationcast/internal/labels"
	"stationcast/internal/learn"
	"stationcast/internal/metrics"
	"stationcast/internal/models"
	"stationcast/internal/series"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Model categories, used in metrics, skips and logs
const (
	CategoryStation = "station"
	CategoryGroup   = "group"
	CategoryFault   = "fault"
	CategoryWarning = "warning"
)

// Skip reasons
const (
	ReasonInsufficientSamples = "insufficient samples"
	ReasonSingleClass         = "single class"
)

// Trainer fits one model per (target, horizon).
type Trainer struct {
	Learner           learn.Learner
	Horizons          labels.Horizons
	MinStationSamples int
	MinGroupSamples   int
	// Source is recorded in the bundle, typically the database DSN.
	Source string
	// Parallelism bounds concurrent fits; <= 0 means GOMAXPROCS.
	Parallelism int
	Logger      *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Labeled holds the training tables of one run.
type Labeled struct {
	Station     *series.Frame
	Groups      *series.Frame
	StationCols []string
	GroupCols   []string
}

// BuildLabeled derives features and labels from ds.
func BuildLabeled(ds *dataset.Dataset, hs labels.Horizons) *Labeled {
	st, stCols := dataset.StationFeatures(ds.Station, ds.Groups)
	gf, gCols := dataset.GroupFeatures(st, ds.Groups)

	st = labels.AddFutureTargets(st, hs, []string{features.StationTarget})

	gf = labels.AddFutureTargets(gf, hs, features.GroupTargetFields())
	gf = labels.AddEventLabels(gf, ds.Occurrences, hs, labels.DefaultClassify)
	gf = labels.MergeCounterFallback(gf, hs)

	return &Labeled{Station: st, Groups: gf, StationCols: stCols, GroupCols: gCols}
}

type task struct {
	category string
	target   string
	horizon  string
	run      func() (learn.Model, models.ModelMetric, *Skip, error)
}

// Train builds the labeled tables and fits every model. Models without
// enough data are recorded in Bundle.Skipped, so an empty dataset yields a
// bundle in which every model is skipped.
func (t *Trainer) Train(ctx context.Context, ds *dataset.Dataset) (*Bundle, error) {
	if ds.Station.Len() == 0 {
		t.Logger.Warn("No station data in window; every model will be skipped")
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}

	start := time.Now()
	lab := BuildLabeled(ds, t.Horizons)
	metrics.ObserveStage("features", start)
	t.Logger.Info("Built training tables",
		zap.Int("station_rows", lab.Station.Len()),
		zap.Int("group_rows", lab.Groups.Len()),
		zap.Int("station_features", len(lab.StationCols)),
		zap.Int("group_features", len(lab.GroupCols)))

	b := newBundle()
	b.RunID = uuid.NewString()
	b.TrainedAtMs = now().UnixMilli()
	b.Source = t.Source
	b.Horizons = t.Horizons
	b.StationFeatureCols = lab.StationCols
	b.GroupFeatureCols = lab.GroupCols

	start = time.Now()
	tasks := t.tasks(lab)

	g, gctx := errgroup.WithContext(ctx)
	limit := t.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	var mu sync.Mutex
	for _, tk := range tasks {
		tk := tk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, metric, skip, err := tk.run()
			if err != nil {
				return fmt.Errorf("failed to fit %s model %s/%s: %w", tk.category, tk.target, tk.horizon, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				b.Skipped = append(b.Skipped, *skip)
				metrics.ModelsSkipped.WithLabelValues(tk.category, tk.horizon, skip.Reason).Inc()
				t.Logger.Info("Skipped model",
					zap.String("category", tk.category),
					zap.String("target", tk.target),
					zap.String("horizon", tk.horizon),
					zap.String("reason", skip.Reason),
					zap.Int("n", skip.N))
				return nil
			}
			b.store(tk.category, tk.target, tk.horizon, m, metric)
			metrics.ModelsTrained.WithLabelValues(tk.category, tk.horizon).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.ObserveStage("train", start)
	sortSkips(b.Skipped)

	t.Logger.Info("Training complete",
		zap.String("run_id", b.RunID),
		zap.Int("models", b.ModelCount()),
		zap.Int("skipped", len(b.Skipped)))
	return b, nil
}

func (b *Bundle) store(category, target, horizon string, m learn.Model, metric models.ModelMetric) {
	switch category {
	case CategoryStation:
		b.Station[horizon] = m.(learn.Regressor)
		b.Metrics.Station[horizon] = metric
	case CategoryGroup:
		if b.Group[horizon] == nil {
			b.Group[horizon] = map[string]learn.Regressor{}
			b.Metrics.Group[horizon] = map[string]models.ModelMetric{}
		}
		b.Group[horizon][target] = m.(learn.Regressor)
		b.Metrics.Group[horizon][target] = metric
	case CategoryFault:
		b.Fault[horizon] = m.(learn.Classifier)
		b.Metrics.Fault[horizon] = metric
	case CategoryWarning:
		b.Warning[horizon] = m.(learn.Classifier)
		b.Metrics.Warning[horizon] = metric
	}
}

func (t *Trainer) tasks(lab *Labeled) []task {
	var out []task
	stX := lab.Station.Matrix(lab.StationCols)
	gX := lab.Groups.Matrix(lab.GroupCols)
	finite := learn.FiniteRows(gX)

	for _, h := range t.Horizons.All() {
		key := h.Key
		stY, _ := lab.Station.Col(labels.TargetName(features.StationTarget, key))
		out = append(out, task{
			category: CategoryStation, target: features.StationTarget, horizon: key,
			run: t.regression(CategoryStation, features.StationTarget, key, stX, stY, t.MinStationSamples),
		})

		for _, field := range features.GroupTargetFields() {
			y, _ := lab.Groups.Col(labels.TargetName(field, key))
			out = append(out, task{
				category: CategoryGroup, target: field, horizon: key,
				run: t.regression(CategoryGroup, field, key, gX, y, t.MinGroupSamples),
			})
		}

		fault, _ := lab.Groups.Col(labels.FaultName(key))
		warn, _ := lab.Groups.Col(labels.WarningName(key))
		out = append(out,
			task{
				category: CategoryFault, horizon: key,
				run: t.classification(CategoryFault, key, gX, fault, finite),
			},
			task{
				category: CategoryWarning, horizon: key,
				run: t.classification(CategoryWarning, key, gX, warn, finite),
			})
	}
	return out
}

func (t *Trainer) regression(category, target, horizon string, x [][]float64, y []series.Value, minSamples int) func() (learn.Model, models.ModelMetric, *Skip, error) {
	return func() (learn.Model, models.ModelMetric, *Skip, error) {
		var rx [][]float64
		var ry []float64
		for i, v := range y {
			if v.Valid {
				rx = append(rx, x[i])
				ry = append(ry, v.V)
			}
		}
		if len(ry) < minSamples || len(ry) == 0 {
			return nil, models.ModelMetric{}, &Skip{
				Category: category, Target: target, Horizon: horizon,
				Reason: ReasonInsufficientSamples, N: len(ry),
			}, nil
		}
		m, err := t.Learner.FitRegressor(rx, ry)
		if err != nil {
			return nil, models.ModelMetric{}, nil, err
		}
		mae := series.Of(learn.MAE(ry, m.Predict(rx)))
		return m, models.ModelMetric{MAE: &mae, N: len(ry)}, nil, nil
	}
}

// classification fits on the rows whose whole feature row is finite.
func (t *Trainer) classification(category, horizon string, x [][]float64, y []series.Value, finite []int) func() (learn.Model, models.ModelMetric, *Skip, error) {
	return func() (learn.Model, models.ModelMetric, *Skip, error) {
		rx := make([][]float64, 0, len(finite))
		ry := make([]int, 0, len(finite))
		for _, i := range finite {
			rx = append(rx, x[i])
			label := 0
			if i < len(y) && y[i].Positive() {
				label = 1
			}
			ry = append(ry, label)
		}
		skip := &Skip{Category: category, Horizon: horizon, N: len(ry)}
		if len(ry) < t.MinGroupSamples || len(ry) == 0 {
			skip.Reason = ReasonInsufficientSamples
			return nil, models.ModelMetric{}, skip, nil
		}
		m, err := t.Learner.FitClassifier(rx, ry)
		if errors.Is(err, learn.ErrSingleClass) {
			skip.Reason = ReasonSingleClass
			return nil, models.ModelMetric{}, skip, nil
		}
		if err != nil {
			return nil, models.ModelMetric{}, nil, err
		}
		auc := series.Of(learn.AUC(ry, m.PredictProba(rx)))
		return m, models.ModelMetric{AUC: &auc, N: len(ry)}, nil, nil
	}
}
