package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"stationcast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "station.db") + "?_busy_timeout=5000"
	db, err := NewDB(DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func num(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func ptr(v int64) *int64 { return &v }

func TestNewDB_RejectsUnknownDriver(t *testing.T) {
	_, err := NewDB("postgres", "", zap.NewNop())
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	tests := []struct {
		driver   string
		contains string
	}{
		{DriverSQLite, "CREATE UNIQUE INDEX IF NOT EXISTS idx_battery_groups_snapshots_unique"},
		{DriverMySQL, "ENGINE=InnoDB"},
		{DriverMySQL, "json MEDIUMTEXT NOT NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			stmts, err := schemaStatements(tt.driver)
			require.NoError(t, err)
			assert.Contains(t, strings.Join(stmts, "\n"), tt.contains)
		})
	}

	_, err := schemaStatements("oracle")
	assert.Error(t, err)
}

func TestNewDB_SchemaIsIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "station.db")
	for i := 0; i < 2; i++ {
		db, err := NewDB(DriverSQLite, dsn, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}
}

func TestWriteBatchAndRead(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	batch := &Batch{
		Telemetry: []models.TelemetryRow{
			{TS: 2000, SystemSOC: num(51), AverageVoltage: num(700)},
			{TS: 1000, SystemSOC: num(50)},
		},
		SystemStatus: []models.SystemStatusRow{{TS: 1000, Load: num(12), TotalPower: num(300)}},
		Alarms:       []models.AlarmSnapshotRow{{TS: 1000, TotalAlarms: num(2), CriticalAlarms: num(1)}},
		Groups:       []models.SnapshotRow{{TS: 1000, JSON: `[{"id":1}]`}},
		Coordination: []models.SnapshotRow{{TS: 1000, JSON: `[]`}},
		Occurrences: []models.AlarmOccurrence{
			{TS: 5000, GroupID: sql.NullInt64{Int64: 2, Valid: true}, Type: "锁存", Level: models.LevelInfo},
			{TS: 4000, Type: "comm", Level: models.LevelWarning},
		},
	}
	require.NoError(t, db.WriteBatch(ctx, batch))

	telemetry, err := db.Telemetry(ctx, models.TimeRange{})
	require.NoError(t, err)
	require.Len(t, telemetry, 2)
	assert.Equal(t, int64(1000), telemetry[0].TS, "rows come back in ascending ts order")
	assert.False(t, telemetry[0].AverageVoltage.Valid)
	assert.Equal(t, 51.0, telemetry[1].SystemSOC.Float64)

	status, err := db.SystemStatus(ctx, models.TimeRange{})
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, 12.0, status[0].Load.Float64)

	alarms, err := db.AlarmSnapshots(ctx, models.TimeRange{})
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.False(t, alarms[0].InfoAlarms.Valid)

	groups, err := db.GroupSnapshots(ctx, models.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, []models.SnapshotRow{{TS: 1000, JSON: `[{"id":1}]`}}, groups)

	units, err := db.CoordinationSnapshots(ctx, models.TimeRange{})
	require.NoError(t, err)
	assert.Len(t, units, 1)

	occ, err := db.AlarmOccurrences(ctx)
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.Equal(t, int64(4000), occ[0].TS)
	assert.False(t, occ[0].GroupID.Valid)
	assert.Equal(t, int64(2), occ[1].GroupID.Int64)
	assert.Equal(t, "锁存", occ[1].Type)
}

func TestTelemetry_TimeRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var rows []models.TelemetryRow
	for ts := int64(0); ts < 5000; ts += 1000 {
		rows = append(rows, models.TelemetryRow{TS: ts, SystemSOC: num(float64(ts))})
	}
	require.NoError(t, db.WriteBatch(ctx, &Batch{Telemetry: rows}))

	tests := []struct {
		name string
		rng  models.TimeRange
		want []int64
	}{
		{"open", models.TimeRange{}, []int64{0, 1000, 2000, 3000, 4000}},
		{"start inclusive", models.TimeRange{Start: ptr(3000)}, []int64{3000, 4000}},
		{"end inclusive", models.TimeRange{End: ptr(1000)}, []int64{0, 1000}},
		{"both", models.TimeRange{Start: ptr(1000), End: ptr(2000)}, []int64{1000, 2000}},
		{"empty", models.TimeRange{Start: ptr(9000)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Telemetry(ctx, tt.rng)
			require.NoError(t, err)
			var ts []int64
			for _, r := range got {
				ts = append(ts, r.TS)
			}
			assert.Equal(t, tt.want, ts)
		})
	}
}

func TestWriteBatch_RollsBackOnConflict(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WriteBatch(ctx, &Batch{
		Telemetry: []models.TelemetryRow{{TS: 1}},
		Groups:    []models.SnapshotRow{{TS: 1, JSON: `[]`}, {TS: 1, JSON: `[]`}},
	})
	require.Error(t, err, "battery_groups_snapshots.ts is unique")

	telemetry, err := db.Telemetry(ctx, models.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, telemetry)
}

func TestWriteBatch_Empty(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.WriteBatch(context.Background(), &Batch{}))
}

func TestSynthetic_IsDeterministicAndStorable(t *testing.T) {
	opts := SynthOptions{StartMs: 1_000_000, StepMs: 10_000, Steps: 50, Groups: 3, Seed: 7, EventEvery: 10}
	a := Synthetic(opts)
	b := Synthetic(opts)
	assert.Equal(t, a, b)
	assert.Len(t, a.Telemetry, 50)
	assert.Len(t, a.Groups, 50)
	assert.NotEmpty(t, a.Occurrences)

	db := openTestDB(t)
	require.NoError(t, db.WriteBatch(context.Background(), a))
	groups, err := db.GroupSnapshots(context.Background(), models.TimeRange{Start: ptr(1_000_000 + 40*10_000)})
	require.NoError(t, err)
	assert.Len(t, groups, 10)
}
