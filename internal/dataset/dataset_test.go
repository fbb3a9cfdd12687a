package dataset

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"stationcast/internal/features"
	"stationcast/internal/models"
	"stationcast/internal/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	telemetry []models.TelemetryRow
	status    []models.SystemStatusRow
	alarms    []models.AlarmSnapshotRow
	groups    []models.SnapshotRow
	units     []models.SnapshotRow
	occ       []models.AlarmOccurrence
	err       error
}

func (f *fakeSource) Telemetry(ctx context.Context, _ models.TimeRange) ([]models.TelemetryRow, error) {
	return f.telemetry, f.err
}

func (f *fakeSource) SystemStatus(ctx context.Context, _ models.TimeRange) ([]models.SystemStatusRow, error) {
	return f.status, nil
}

func (f *fakeSource) AlarmSnapshots(ctx context.Context, _ models.TimeRange) ([]models.AlarmSnapshotRow, error) {
	return f.alarms, nil
}

func (f *fakeSource) GroupSnapshots(ctx context.Context, _ models.TimeRange) ([]models.SnapshotRow, error) {
	return f.groups, nil
}

func (f *fakeSource) CoordinationSnapshots(ctx context.Context, _ models.TimeRange) ([]models.SnapshotRow, error) {
	return f.units, nil
}

func (f *fakeSource) AlarmOccurrences(ctx context.Context) ([]models.AlarmOccurrence, error) {
	return f.occ, nil
}

func num(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func TestDecodeTarget(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    series.Value
	}{
		{"first unit", `[{"inputs":{"upper":{"targetPowerKw":120.5}}},{"inputs":{"upper":{"targetPowerKw":1}}}]`, series.Of(120.5)},
		{"numeric string", `[{"inputs":{"upper":{"targetPowerKw":"80"}}}]`, series.Of(80)},
		{"empty list", `[]`, series.Missing},
		{"not a list", `{"inputs":{}}`, series.Missing},
		{"no upper", `[{"inputs":{}}]`, series.Missing},
		{"garbage", `not json`, series.Missing},
		{"null target", `[{"inputs":{"upper":{"targetPowerKw":null}}}]`, series.Missing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeTarget(tt.payload))
		})
	}
}

func TestDecodeGroups(t *testing.T) {
	rows := []models.SnapshotRow{
		{TS: 1000, JSON: `[{"id":2,"bms":{"socPct":40,"faultCount":1},"pcs":{"actualKw":5}},{"id":1,"bms":{"socPct":60}}]`},
		{TS: 2000, JSON: `broken`},
		{TS: 3000, JSON: `[{"id":"1","bms":{"socPct":1}},{"id":1.5},{"bms":{}},7,{"id":1,"bms":{"socPct":"x"}}]`},
	}

	f, err := decodeGroups(rows, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, 3, f.Len())
	assert.Equal(t, []int64{1000, 3000, 1000}, f.TS())
	assert.Equal(t, int64(1), f.Entity(0))
	assert.Equal(t, series.Of(60), f.At("bms_socPct", 0))
	assert.False(t, f.At("bms_socPct", 1).Valid, "non-numeric value is missing")
	assert.Equal(t, series.Of(40), f.At("bms_socPct", 2))
	assert.Equal(t, series.Of(1), f.At(features.FaultCount, 2))
	assert.Equal(t, series.Of(5), f.At("pcs_actualKw", 2))
	assert.Equal(t, series.Of(2), f.At(features.GroupID, 2))
	assert.False(t, f.At("pcs_efficiencyPct", 2).Valid)
}

func TestDecodeGroups_EmptyKeepsSchema(t *testing.T) {
	f, err := decodeGroups(nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.True(t, f.Keyed())
	assert.Equal(t, append([]string{features.GroupID}, features.GroupSourceFields...), f.Names())
}

func TestLoad_OuterMergesStationSources(t *testing.T) {
	src := &fakeSource{
		telemetry: []models.TelemetryRow{{TS: 0, SystemSOC: num(50)}, {TS: 2000, SystemSOC: num(52)}},
		status:    []models.SystemStatusRow{{TS: 1000, Load: num(7)}},
		units:     []models.SnapshotRow{{TS: 0, JSON: `[{"inputs":{"upper":{"targetPowerKw":100}}}]`}},
	}

	ds, err := Load(context.Background(), src, models.TimeRange{}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1000, 2000}, ds.Station.TS())
	assert.Equal(t, series.Of(50), ds.Station.At("systemSOC", 0))
	assert.False(t, ds.Station.At("systemSOC", 1).Valid, "no telemetry at 1000")
	assert.Equal(t, series.Of(7), ds.Station.At("load", 1))
	assert.Equal(t, series.Of(100), ds.Station.At(features.StationTarget, 0))
	assert.True(t, ds.Station.Has("infoAlarms"), "an empty source still contributes its columns")
	assert.Equal(t, 0, ds.Groups.Len())
}

func TestLoad_WrapsSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(context.Background(), &fakeSource{err: boom}, models.TimeRange{}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGroupAggregates(t *testing.T) {
	groups, err := decodeGroups([]models.SnapshotRow{
		{TS: 0, JSON: `[{"id":1,"bms":{"socPct":40,"temperatureC":30,"insulationResistanceKohm":500},"pcs":{"actualKw":10}},
		                {"id":2,"bms":{"socPct":60,"temperatureC":35,"insulationResistanceKohm":300}}]`},
		{TS: 1000, JSON: `[{"id":1,"bms":{}}]`},
	}, zap.NewNop())
	require.NoError(t, err)

	aggs := GroupAggregates(groups)
	assert.Equal(t, series.Of(50), aggs[0][features.GroupSocAvg])
	assert.Equal(t, series.Of(35), aggs[0][features.GroupTempMax])
	assert.Equal(t, series.Of(300), aggs[0][features.GroupInsuMin])
	assert.Equal(t, series.Of(10), aggs[0][features.GroupPcsKwSum])
	assert.False(t, aggs[0][features.GroupDeltaMax].Valid)
	assert.False(t, aggs[1000][features.GroupPcsKwSum].Valid, "sum over no values is missing")
}

func TestStationFeatures_SchemaAndFill(t *testing.T) {
	src := &fakeSource{
		telemetry: []models.TelemetryRow{{TS: 0, SystemSOC: num(50)}, {TS: 1000}},
		groups:    []models.SnapshotRow{{TS: 1000, JSON: `[{"id":1,"bms":{"socPct":70}}]`}},
	}
	ds, err := Load(context.Background(), src, models.TimeRange{}, zap.NewNop())
	require.NoError(t, err)

	st, cols := StationFeatures(ds.Station, ds.Groups)
	assert.Len(t, cols, len(features.StationBase)*len(features.Windows)*2+len(features.StationBase))
	assert.Equal(t, "stationTargetPowerKw_diff1", cols[0])
	assert.Equal(t, series.Of(50), st.At("systemSOC", 1), "forward filled")
	assert.Equal(t, series.Of(70), st.At(features.GroupSocAvg, 0), "backward filled")
	for _, c := range cols {
		assert.True(t, st.Has(c), c)
	}
}

func TestGroupFeatures_EmptyGroupsKeepSchema(t *testing.T) {
	src := &fakeSource{telemetry: []models.TelemetryRow{{TS: 0, SystemSOC: num(50)}}}
	ds, err := Load(context.Background(), src, models.TimeRange{}, zap.NewNop())
	require.NoError(t, err)

	st, _ := StationFeatures(ds.Station, ds.Groups)
	gf, cols := GroupFeatures(st, ds.Groups)

	require.NotNil(t, gf)
	assert.Equal(t, 0, gf.Len())
	assert.Equal(t, features.GroupID, cols[0])
	for _, c := range cols {
		assert.True(t, gf.Has(c), c)
	}
	for _, c := range features.GroupFill {
		assert.True(t, gf.Has(c), c)
	}
}

func TestGroupFeatures_InheritsStationColumns(t *testing.T) {
	src := &fakeSource{
		telemetry: []models.TelemetryRow{{TS: 0, SystemSOC: num(50)}, {TS: 1000, SystemSOC: num(55)}},
		groups: []models.SnapshotRow{
			{TS: 0, JSON: `[{"id":1,"bms":{"socPct":40}},{"id":2,"bms":{"socPct":60}}]`},
			{TS: 1000, JSON: `[{"id":1,"bms":{"socPct":42}}]`},
			{TS: 5000, JSON: `[{"id":2,"bms":{"socPct":61}}]`},
		},
	}
	ds, err := Load(context.Background(), src, models.TimeRange{}, zap.NewNop())
	require.NoError(t, err)

	st, _ := StationFeatures(ds.Station, ds.Groups)
	gf, _ := GroupFeatures(st, ds.Groups)

	require.Equal(t, 4, gf.Len())
	// Rows sorted by (groupId, ts): (1,0) (1,1000) (2,0) (2,5000).
	assert.Equal(t, series.Of(50), gf.At("systemSOC", 0))
	assert.Equal(t, series.Of(55), gf.At("systemSOC", 1))
	assert.Equal(t, series.Of(50), gf.At("systemSOC", 3), "no station row at 5000, forward filled within group 2")
	assert.Equal(t, series.Of(50), gf.At(features.GroupSocAvg, 2))
	assert.Equal(t, series.Of(2), gf.At("bms_socPct_diff1", 1))
}
