package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"stationcast/internal/labels"
	"stationcast/internal/learn"
	"stationcast/internal/models"
)

// MetricsFile is written next to every saved bundle.
const MetricsFile = "metrics.json"

// Skip records a model that was not trained.
type Skip struct {
	Category string `json:"category"`
	Target   string `json:"target,omitempty"`
	Horizon  string `json:"horizon"`
	Reason   string `json:"reason"`
	N        int    `json:"n"`
}

// Bundle is the persisted collection of trained models, their input
// schema and training metrics. Model maps are keyed by horizon key; group
// regressors additionally by target field. Absent entries were skipped.
type Bundle struct {
	RunID              string
	TrainedAtMs        int64
	Source             string
	Horizons           labels.Horizons
	StationFeatureCols []string
	GroupFeatureCols   []string
	Station            map[string]learn.Regressor
	Group              map[string]map[string]learn.Regressor
	Fault              map[string]learn.Classifier
	Warning            map[string]learn.Classifier
	Metrics            models.MetricSet
	Skipped            []Skip
}

func sortSkips(skips []Skip) {
	sort.Slice(skips, func(i, j int) bool {
		a, b := skips[i], skips[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Horizon != b.Horizon {
			return a.Horizon < b.Horizon
		}
		return a.Target < b.Target
	})
}

func newBundle() *Bundle {
	return &Bundle{
		Station: map[string]learn.Regressor{},
		Group:   map[string]map[string]learn.Regressor{},
		Fault:   map[string]learn.Classifier{},
		Warning: map[string]learn.Classifier{},
		Metrics: models.NewMetricSet(),
	}
}

// ModelCount returns the number of trained models in the bundle.
func (b *Bundle) ModelCount() int {
	n := len(b.Station) + len(b.Fault) + len(b.Warning)
	for _, m := range b.Group {
		n += len(m)
	}
	return n
}

type bundleModels struct {
	Station map[string]json.RawMessage            `json:"station"`
	Group   map[string]map[string]json.RawMessage `json:"group"`
	Fault   map[string]json.RawMessage            `json:"fault"`
	Warning map[string]json.RawMessage            `json:"warning"`
}

type bundleFile struct {
	RunID              string           `json:"runId"`
	TrainedAtMs        int64            `json:"trainedAtMs"`
	Source             string           `json:"source"`
	Horizons           labels.Horizons  `json:"horizons"`
	StationFeatureCols []string         `json:"stationFeatureCols"`
	GroupFeatureCols   []string         `json:"groupFeatureCols"`
	Models             bundleModels     `json:"models"`
	Metrics            models.MetricSet `json:"metrics"`
	Skipped            []Skip           `json:"skipped"`
}

func encodeAll[M learn.Model](in map[string]M) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(in))
	for k, m := range in {
		data, err := learn.Encode(m)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}

func decodeAll[M learn.Model](in map[string]json.RawMessage) (map[string]M, error) {
	out := make(map[string]M, len(in))
	for k, data := range in {
		m, err := learn.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", k, err)
		}
		typed, ok := m.(M)
		if !ok {
			return nil, fmt.Errorf("model %s: kind %s has the wrong capability", k, m.Kind())
		}
		out[k] = typed
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	f := bundleFile{
		RunID:              b.RunID,
		TrainedAtMs:        b.TrainedAtMs,
		Source:             b.Source,
		Horizons:           b.Horizons,
		StationFeatureCols: b.StationFeatureCols,
		GroupFeatureCols:   b.GroupFeatureCols,
		Models:             bundleModels{Group: map[string]map[string]json.RawMessage{}},
		Metrics:            b.Metrics,
		Skipped:            b.Skipped,
	}
	var err error
	if f.Models.Station, err = encodeAll(b.Station); err != nil {
		return nil, fmt.Errorf("station: %w", err)
	}
	if f.Models.Fault, err = encodeAll(b.Fault); err != nil {
		return nil, fmt.Errorf("fault: %w", err)
	}
	if f.Models.Warning, err = encodeAll(b.Warning); err != nil {
		return nil, fmt.Errorf("warning: %w", err)
	}
	for h, byTarget := range b.Group {
		if f.Models.Group[h], err = encodeAll(byTarget); err != nil {
			return nil, fmt.Errorf("group %s: %w", h, err)
		}
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var f bundleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	out := newBundle()
	out.RunID = f.RunID
	out.TrainedAtMs = f.TrainedAtMs
	out.Source = f.Source
	out.Horizons = f.Horizons
	out.StationFeatureCols = f.StationFeatureCols
	out.GroupFeatureCols = f.GroupFeatureCols
	out.Skipped = f.Skipped
	if f.Metrics.Station != nil {
		out.Metrics = f.Metrics
	}

	var err error
	if out.Station, err = decodeAll[learn.Regressor](f.Models.Station); err != nil {
		return fmt.Errorf("station: %w", err)
	}
	if out.Fault, err = decodeAll[learn.Classifier](f.Models.Fault); err != nil {
		return fmt.Errorf("fault: %w", err)
	}
	if out.Warning, err = decodeAll[learn.Classifier](f.Models.Warning); err != nil {
		return fmt.Errorf("warning: %w", err)
	}
	for h, byTarget := range f.Models.Group {
		if out.Group[h], err = decodeAll[learn.Regressor](byTarget); err != nil {
			return fmt.Errorf("group %s: %w", h, err)
		}
	}
	*b = *out
	return nil
}

// Save writes the bundle to path and its metrics to MetricsFile in the
// same directory. The bundle file is replaced atomically.
func (b *Bundle) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	meta, err := json.MarshalIndent(b.Metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, MetricsFile), meta); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", path, err)
	}
	return &b, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
