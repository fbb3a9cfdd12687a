package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"stationcast/internal/features"
	"stationcast/internal/models"
	"stationcast/internal/series"

	"go.uber.org/zap"
)

// Source is the read-only station store. Every method returns rows in
// ascending timestamp order.
type Source interface {
	Telemetry(ctx context.Context, rng models.TimeRange) ([]models.TelemetryRow, error)
	SystemStatus(ctx context.Context, rng models.TimeRange) ([]models.SystemStatusRow, error)
	AlarmSnapshots(ctx context.Context, rng models.TimeRange) ([]models.AlarmSnapshotRow, error)
	GroupSnapshots(ctx context.Context, rng models.TimeRange) ([]models.SnapshotRow, error)
	CoordinationSnapshots(ctx context.Context, rng models.TimeRange) ([]models.SnapshotRow, error)
	// AlarmOccurrences always returns the full history.
	AlarmOccurrences(ctx context.Context) ([]models.AlarmOccurrence, error)
}

// Dataset is everything the pipeline reads from a Source in one pass.
type Dataset struct {
	// Station has one row per distinct station timestamp with telemetry,
	// system status, alarm counters and the commanded target. Unfilled.
	Station *series.Frame
	// Groups has one row per (groupId, ts) with the BMS/PCS fields.
	Groups      *series.Frame
	Occurrences []models.AlarmOccurrence
}

// Load queries every source table once and assembles the entity frames.
func Load(ctx context.Context, src Source, rng models.TimeRange, logger *zap.Logger) (*Dataset, error) {
	telemetry, err := src.Telemetry(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load telemetry: %w", err)
	}
	status, err := src.SystemStatus(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load system status: %w", err)
	}
	alarms, err := src.AlarmSnapshots(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load alarm snapshots: %w", err)
	}
	groups, err := src.GroupSnapshots(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load group snapshots: %w", err)
	}
	units, err := src.CoordinationSnapshots(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load coordination snapshots: %w", err)
	}
	occ, err := src.AlarmOccurrences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alarm occurrences: %w", err)
	}

	station, err := mergeStation(telemetry, status, alarms, decodeTargets(units, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to merge station rows: %w", err)
	}
	groupFrame, err := decodeGroups(groups, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to decode group snapshots: %w", err)
	}

	logger.Info("Loaded dataset",
		zap.Int("station_rows", station.Len()),
		zap.Int("group_rows", groupFrame.Len()),
		zap.Int("occurrences", len(occ)))

	return &Dataset{Station: station, Groups: groupFrame, Occurrences: occ}, nil
}

// stationMerge accumulates an outer join on ts. A later row for the same
// timestamp and source overwrites an earlier one.
type stationMerge struct {
	index map[int64]int
	ts    []int64
	cols  map[string][]series.Value
}

func newStationMerge() *stationMerge {
	return &stationMerge{index: map[int64]int{}, cols: map[string][]series.Value{}}
}

func (m *stationMerge) set(ts int64, field string, v series.Value) {
	i, ok := m.index[ts]
	if !ok {
		i = len(m.ts)
		m.index[ts] = i
		m.ts = append(m.ts, ts)
	}
	col := m.cols[field]
	for len(col) <= i {
		col = append(col, series.Missing)
	}
	col[i] = v
	m.cols[field] = col
}

func (m *stationMerge) frame(names []string) (*series.Frame, error) {
	cols := make([][]series.Value, len(names))
	for i, name := range names {
		col := m.cols[name]
		for len(col) < len(m.ts) {
			col = append(col, series.Missing)
		}
		cols[i] = col
	}
	return series.New(m.ts, names, cols)
}

func nullable(v sql.NullFloat64) series.Value {
	if !v.Valid {
		return series.Missing
	}
	return series.Of(v.Float64)
}

func mergeStation(
	telemetry []models.TelemetryRow,
	status []models.SystemStatusRow,
	alarms []models.AlarmSnapshotRow,
	targets []targetRow,
) (*series.Frame, error) {
	m := newStationMerge()
	for _, r := range telemetry {
		m.set(r.TS, "averageVoltage", nullable(r.AverageVoltage))
		m.set(r.TS, "totalCurrent", nullable(r.TotalCurrent))
		m.set(r.TS, "averageTemperature", nullable(r.AverageTemperature))
		m.set(r.TS, "systemSOC", nullable(r.SystemSOC))
		m.set(r.TS, "systemSOH", nullable(r.SystemSOH))
	}
	for _, r := range status {
		m.set(r.TS, "load", nullable(r.Load))
		m.set(r.TS, "totalPower", nullable(r.TotalPower))
	}
	for _, r := range alarms {
		m.set(r.TS, "totalAlarms", nullable(r.TotalAlarms))
		m.set(r.TS, "criticalAlarms", nullable(r.CriticalAlarms))
		m.set(r.TS, "warningAlarms", nullable(r.WarningAlarms))
		m.set(r.TS, "infoAlarms", nullable(r.InfoAlarms))
	}
	for _, r := range targets {
		m.set(r.TS, features.StationTarget, r.Target)
	}

	var names []string
	names = append(names, features.TelemetryFields...)
	names = append(names, features.SystemStatusFields...)
	names = append(names, features.AlarmSnapshotFields...)
	names = append(names, features.StationTarget)
	return m.frame(names)
}
