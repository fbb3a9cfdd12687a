package labels

import (
	"database/sql"
	"encoding/json"
	"testing"

	"stationcast/internal/features"
	"stationcast/internal/models"
	"stationcast/internal/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func group(id int64) sql.NullInt64 { return sql.NullInt64{Int64: id, Valid: true} }

func groupFrame(t *testing.T, ts, ids []int64, cols map[string][]series.Value) *series.Frame {
	t.Helper()
	var names []string
	var values [][]series.Value
	for name, col := range cols {
		names = append(names, name)
		values = append(values, col)
	}
	f, err := series.NewKeyed(ts, ids, names, values)
	require.NoError(t, err)
	return f
}

func TestNewHorizons(t *testing.T) {
	tests := []struct {
		name    string
		items   []Horizon
		wantErr bool
	}{
		{"canonical", Canonical().All(), false},
		{"empty", nil, true},
		{"zero duration", []Horizon{{Key: "x", MS: 0}}, true},
		{"empty key", []Horizon{{Key: "", MS: 1}}, true},
		{"duplicate", []Horizon{{Key: "a", MS: 1}, {Key: "a", MS: 2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHorizons(tt.items...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHorizons_JSONKeepsOrder(t *testing.T) {
	data, err := json.Marshal(Canonical())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"60s","ms":60000},{"key":"5m","ms":300000},{"key":"1h","ms":3600000}]`, string(data))

	var back Horizons
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"60s", "5m", "1h"}, back.Keys())
}

func TestFutureIndex_SeventySecondsApart(t *testing.T) {
	idx := FutureIndex([]int64{0, 70_000}, 60_000)
	assert.Equal(t, []int{1, -1}, idx)
}

func TestFutureIndex_InclusiveAtHorizon(t *testing.T) {
	idx := FutureIndex([]int64{0, 30_000, 60_000, 90_000}, 60_000)
	assert.Equal(t, []int{2, 3, -1, -1}, idx)
}

func TestFutureIndex_MonotonicInHorizon(t *testing.T) {
	ts := []int64{0, 900, 1_000, 59_000, 61_000, 299_000, 300_500, 3_500_000, 3_700_000}
	hs := Canonical().All()
	for k := 1; k < len(hs); k++ {
		short := FutureIndex(ts, hs[k-1].MS)
		long := FutureIndex(ts, hs[k].MS)
		for i := range ts {
			if long[i] == -1 {
				continue
			}
			require.NotEqual(t, -1, short[i], "row %d has a long-horizon match but no short one", i)
			assert.GreaterOrEqual(t, long[i], short[i], "row %d", i)
		}
	}
}

func TestAddFutureTargets_PerEntity(t *testing.T) {
	hs, err := NewHorizons(Horizon{Key: "60s", MS: 60_000})
	require.NoError(t, err)

	f := groupFrame(t,
		[]int64{0, 70_000, 0, 60_000},
		[]int64{1, 1, 2, 2},
		map[string][]series.Value{"v": {series.Of(1), series.Of(2), series.Of(10), series.Of(20)}},
	)
	out := AddFutureTargets(f, hs, []string{"v"})

	y, ok := out.Col("y_v_60s")
	require.True(t, ok)
	assert.Equal(t, []series.Value{series.Of(2), series.Missing, series.Of(20), series.Missing}, y)
	assert.False(t, f.Has("y_v_60s"))
}

func TestAddFutureTargets_StationAndEmpty(t *testing.T) {
	f, err := series.New([]int64{0, 300_000}, []string{"p"}, [][]series.Value{{series.Of(5), series.Of(7)}})
	require.NoError(t, err)

	out := AddFutureTargets(f, Canonical(), []string{"p"})
	assert.Equal(t, series.Of(7), out.At("y_p_60s", 0))
	assert.Equal(t, series.Of(7), out.At("y_p_5m", 0))
	assert.False(t, out.At("y_p_1h", 0).Valid)

	empty, err := series.NewKeyed([]int64{}, []int64{}, nil, nil)
	require.NoError(t, err)
	out = AddFutureTargets(empty, Canonical(), []string{"p"})
	assert.True(t, out.Has("y_p_1h"))
	assert.Equal(t, 0, out.Len())
}

func TestNextEvent_Boundaries(t *testing.T) {
	events := []int64{100, 200}
	assert.Equal(t, 0, NextEvent(events, 99))
	assert.Equal(t, 1, NextEvent(events, 100), "event at t has already happened")
	assert.Equal(t, -1, NextEvent(events, 200))
	assert.Equal(t, -1, NextEvent(nil, 0))
}

func TestAddEventLabels_CriticalWithinHour(t *testing.T) {
	f := groupFrame(t,
		[]int64{40_000, 200_000_000},
		[]int64{3, 3},
		map[string][]series.Value{"v": {series.Of(0), series.Of(0)}},
	)
	occ := []models.AlarmOccurrence{{TS: 100_000, GroupID: group(3), Type: "over-temp", Level: models.LevelCritical}}

	out := AddEventLabels(f, occ, Canonical(), DefaultClassify)

	y, ok := out.Col("y_fault_1h")
	require.True(t, ok)
	assert.Equal(t, []series.Value{series.Bool(true), series.Bool(false)}, y)
	assert.Equal(t, series.Bool(true), out.At("y_fault_60s", 0), "100000 == 40000+60000 is inside the window")
	assert.Equal(t, series.Bool(true), out.At("y_fault_5m", 0))
	assert.Equal(t, series.Bool(false), out.At("y_warning_1h", 0))
}

func TestAddEventLabels_BoundaryCases(t *testing.T) {
	hs, err := NewHorizons(Horizon{Key: "h", MS: 1_000})
	require.NoError(t, err)

	tests := []struct {
		name    string
		eventTS int64
		want    bool
	}{
		{"event at t does not count", 5_000, false},
		{"event just after t", 5_001, true},
		{"event at t+h counts", 6_000, true},
		{"event after t+h", 6_001, false},
		{"event before t", 4_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := groupFrame(t, []int64{5_000}, []int64{1}, nil)
			occ := []models.AlarmOccurrence{{TS: tt.eventTS, GroupID: group(1), Level: models.LevelWarning}}
			out := AddEventLabels(f, occ, hs, nil)
			assert.Equal(t, series.Bool(tt.want), out.At("y_warning_h", 0))
		})
	}
}

func TestAddEventLabels_ClassesAreIndependent(t *testing.T) {
	f := groupFrame(t, []int64{0}, []int64{1}, nil)
	occ := []models.AlarmOccurrence{
		{TS: 10, GroupID: group(1), Type: models.TypeLatched, Level: models.LevelWarning},
		{TS: 20, GroupID: group(2), Level: models.LevelCritical},
		{TS: 30, Level: models.LevelCritical},
	}

	out := AddEventLabels(f, occ, Canonical(), DefaultClassify)
	assert.Equal(t, series.Bool(true), out.At("y_fault_60s", 0), "latched type is a fault")
	assert.Equal(t, series.Bool(true), out.At("y_warning_60s", 0), "same occurrence is also a warning")
}

func TestAddEventLabels_NoOccurrences(t *testing.T) {
	f := groupFrame(t, []int64{0, 1}, []int64{1, 2}, nil)
	out := AddEventLabels(f, nil, Canonical(), DefaultClassify)
	for _, key := range Canonical().Keys() {
		for i := 0; i < out.Len(); i++ {
			assert.Equal(t, series.Bool(false), out.At(FaultName(key), i))
			assert.Equal(t, series.Bool(false), out.At(WarningName(key), i))
		}
	}
}

func TestMergeCounterFallback_NeverDecreases(t *testing.T) {
	hs, err := NewHorizons(Horizon{Key: "60s", MS: 60_000})
	require.NoError(t, err)

	f := groupFrame(t,
		[]int64{0, 60_000, 120_000},
		[]int64{1, 1, 1},
		map[string][]series.Value{
			features.WarningCount: {series.Of(0), series.Of(2), series.Of(0)},
			features.FaultCount:   {series.Of(0), series.Missing, series.Of(0)},
			"y_fault_60s":         {series.Bool(true), series.Bool(false), series.Bool(true)},
		},
	)

	out := MergeCounterFallback(f, hs)

	fault, _ := out.Col("y_fault_60s")
	warn, _ := out.Col("y_warning_60s")
	assert.Equal(t, []series.Value{series.Bool(true), series.Bool(false), series.Bool(true)}, fault)
	assert.Equal(t, []series.Value{series.Bool(true), series.Bool(false), series.Bool(false)}, warn)
}

func TestMergeCounterFallback_UpgradesZero(t *testing.T) {
	hs, err := NewHorizons(Horizon{Key: "5m", MS: 300_000})
	require.NoError(t, err)

	f := groupFrame(t,
		[]int64{0, 400_000, 0},
		[]int64{1, 1, 2},
		map[string][]series.Value{
			features.FaultCount: {series.Of(0), series.Of(1), series.Of(9)},
		},
	)
	out := AddEventLabels(f, nil, hs, nil)
	out = MergeCounterFallback(out, hs)

	fault, _ := out.Col("y_fault_5m")
	assert.Equal(t, []series.Value{series.Bool(true), series.Bool(false), series.Bool(false)}, fault)
}
