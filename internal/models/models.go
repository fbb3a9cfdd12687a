package models

import (
	"database/sql"

	"stationcast/internal/series"
)

// TelemetryRow is one row of station telemetry
type TelemetryRow struct {
	TS                 int64
	AverageVoltage     sql.NullFloat64
	TotalCurrent       sql.NullFloat64
	AverageTemperature sql.NullFloat64
	SystemSOC          sql.NullFloat64
	SystemSOH          sql.NullFloat64
}

// SystemStatusRow is one row of station load and power
type SystemStatusRow struct {
	TS         int64
	Load       sql.NullFloat64
	TotalPower sql.NullFloat64
}

// AlarmSnapshotRow holds the alarm counters at one timestamp
type AlarmSnapshotRow struct {
	TS             int64
	TotalAlarms    sql.NullFloat64
	CriticalAlarms sql.NullFloat64
	WarningAlarms  sql.NullFloat64
	InfoAlarms     sql.NullFloat64
}

// SnapshotRow is a timestamped serialized payload (battery groups or
// coordination units)
type SnapshotRow struct {
	TS   int64
	JSON string
}

// Alarm levels and the type that also counts as a fault
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
	TypeLatched   = "锁存"
)

// AlarmOccurrence is a discrete alarm event. GroupID is null for
// station-wide alarms.
type AlarmOccurrence struct {
	TS      int64
	GroupID sql.NullInt64
	Type    string
	Level   string
}

// TimeRange bounds a query, inclusive on both ends. Nil ends are open.
type TimeRange struct {
	Start *int64
	End   *int64
}

// Forecast is a value now plus its prediction per horizon key
type Forecast struct {
	Now  *series.Value           `json:"now,omitempty"`
	Pred map[string]series.Value `json:"pred"`
}

// StationPrediction holds the station-level forecasts
type StationPrediction struct {
	TargetPowerKw Forecast `json:"targetPowerKw"`
}

// MacroRisk summarises group risk across the station per horizon key
type MacroRisk struct {
	ProbAnyFault          map[string]series.Value `json:"probAnyFault"`
	ExpectedFaultedGroups map[string]series.Value `json:"expectedFaultedGroups"`
	ProbAnyWarning        map[string]series.Value `json:"probAnyWarning"`
	ExpectedWarnedGroups  map[string]series.Value `json:"expectedWarnedGroups"`
}

// FeatureAudit records the feature values each prediction was made from
type FeatureAudit struct {
	Station map[string]series.Value            `json:"station"`
	Groups  map[string]map[string]series.Value `json:"groups"`
}

// ModelMetric is the training-set score of one model. MAE is set for
// regressors, AUC for classifiers.
type ModelMetric struct {
	MAE *series.Value `json:"mae,omitempty"`
	AUC *series.Value `json:"auc,omitempty"`
	N   int           `json:"n"`
}

// MetricSet holds model metrics by category and horizon key (and target
// field for group regressors).
type MetricSet struct {
	Station map[string]ModelMetric            `json:"station"`
	Group   map[string]map[string]ModelMetric `json:"group"`
	Fault   map[string]ModelMetric            `json:"fault"`
	Warning map[string]ModelMetric            `json:"warning"`
}

// NewMetricSet returns a MetricSet with every category initialised.
func NewMetricSet() MetricSet {
	return MetricSet{
		Station: map[string]ModelMetric{},
		Group:   map[string]map[string]ModelMetric{},
		Fault:   map[string]ModelMetric{},
		Warning: map[string]ModelMetric{},
	}
}

// ModelInfo describes the bundle a prediction came from
type ModelInfo struct {
	RunID              string    `json:"runId"`
	TrainedAtMs        int64     `json:"trainedAtMs"`
	Source             string    `json:"source"`
	ModelPath          string    `json:"modelPath"`
	StationFeatureCols []string  `json:"stationFeatureCols"`
	GroupFeatureCols   []string  `json:"groupFeatureCols"`
	Metrics            MetricSet `json:"metrics"`
}

// Prediction is the serving output. Group maps are keyed by the decimal
// group id; every number that is not finite encodes as null.
type Prediction struct {
	TS        int64                          `json:"ts"`
	Horizons  []string                       `json:"horizons"`
	Station   StationPrediction              `json:"station"`
	BMS       map[string]map[string]Forecast `json:"bms"`
	Macro     MacroRisk                      `json:"macro"`
	Features  FeatureAudit                   `json:"features"`
	ModelInfo ModelInfo                      `json:"modelInfo"`
}
