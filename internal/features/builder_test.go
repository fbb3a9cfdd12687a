package features

import (
	"math"
	"testing"

	"stationcast/internal/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func col(t *testing.T, f *series.Frame, name string) []series.Value {
	t.Helper()
	c, ok := f.Col(name)
	require.True(t, ok, "column %s", name)
	return c
}

func TestDerivedNames(t *testing.T) {
	assert.Equal(t,
		[]string{"x_diff1", "x_mean60s", "x_std60s", "x_mean5m", "x_std5m"},
		DerivedNames("x"))
}

func TestBuild_ColumnOrderIsFieldMajor(t *testing.T) {
	f, err := series.New([]int64{0, 1000}, []string{"b", "a"}, [][]series.Value{
		{series.Of(1), series.Of(2)},
		{series.Of(3), series.Of(4)},
	})
	require.NoError(t, err)

	out, derived := Build(f, []string{"a", "b"})

	want := append(DerivedNames("a"), DerivedNames("b")...)
	assert.Equal(t, want, derived)
	assert.Equal(t, append([]string{"b", "a"}, want...), out.Names())
	assert.Equal(t, []string{"b", "a"}, f.Names(), "input must be left unmodified")
}

func TestBuild_Diff1(t *testing.T) {
	f, err := series.NewKeyed(
		[]int64{0, 1000, 2000, 0, 1000},
		[]int64{1, 1, 1, 2, 2},
		[]string{"v"},
		[][]series.Value{{series.Of(1), series.Of(4), series.Missing, series.Of(10), series.Of(7)}},
	)
	require.NoError(t, err)

	out, _ := Build(f, []string{"v"})
	diff := col(t, out, "v_diff1")

	assert.False(t, diff[0].Valid, "first record of entity 1")
	assert.Equal(t, series.Of(3), diff[1])
	assert.False(t, diff[2].Valid, "current value missing")
	assert.False(t, diff[3].Valid, "first record of entity 2 must not see entity 1")
	assert.Equal(t, series.Of(-3), diff[4])
}

func TestBuild_RollingIsTimeBased(t *testing.T) {
	// Irregular sampling: the 60s window of the last record holds only itself
	// and the record 30s before it.
	f, err := series.New(
		[]int64{0, 10_000, 80_000, 110_000},
		[]string{"v"},
		[][]series.Value{{series.Of(2), series.Of(4), series.Of(6), series.Of(10)}},
	)
	require.NoError(t, err)

	out, _ := Build(f, []string{"v"})
	mean60 := col(t, out, "v_mean60s")
	std60 := col(t, out, "v_std60s")
	mean5m := col(t, out, "v_mean5m")

	assert.Equal(t, series.Of(2), mean60[0])
	assert.False(t, std60[0].Valid, "single sample std is undefined")
	assert.Equal(t, series.Of(3), mean60[1])
	assert.InDelta(t, math.Sqrt2, std60[1].V, 1e-12)
	assert.Equal(t, series.Of(6), mean60[2], "records 80s and 70s back are outside the window")
	assert.False(t, std60[2].Valid)
	assert.Equal(t, series.Of(8), mean60[3])
	assert.Equal(t, series.Of(5.5), mean5m[3])
}

func TestBuild_WindowExcludesLeftEdge(t *testing.T) {
	f, err := series.New([]int64{0, 60_000}, []string{"v"}, [][]series.Value{{series.Of(1), series.Of(3)}})
	require.NoError(t, err)

	out, _ := Build(f, []string{"v"})
	assert.Equal(t, series.Of(3), col(t, out, "v_mean60s")[1])
	assert.Equal(t, series.Of(2), col(t, out, "v_mean5m")[1])
}

func TestBuild_RollingIgnoresMissingAndOtherEntities(t *testing.T) {
	f, err := series.NewKeyed(
		[]int64{0, 1000, 2000, 500},
		[]int64{1, 1, 1, 2},
		[]string{"v"},
		[][]series.Value{{series.Of(1), series.Missing, series.Of(3), series.Of(100)}},
	)
	require.NoError(t, err)

	out, _ := Build(f, []string{"v"})
	mean := col(t, out, "v_mean60s")

	assert.Equal(t, series.Of(1), mean[1], "missing value does not enter the window")
	assert.Equal(t, series.Of(2), mean[2])
	assert.Equal(t, series.Of(100), mean[3])
}

func TestBuild_AbsentFieldAndEmptyFrame(t *testing.T) {
	f, err := series.NewKeyed([]int64{}, []int64{}, nil, nil)
	require.NoError(t, err)

	out, derived := Build(f, []string{"v"})
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, append([]string{"v"}, DerivedNames("v")...), out.Names())
	assert.Len(t, derived, 5)
}

func TestGroupFill_StartsWithGroupID(t *testing.T) {
	require.NotEmpty(t, GroupFill)
	assert.Equal(t, GroupID, GroupFill[0])
	assert.Len(t, GroupFill, 1+len(GroupSourceFields)+len(StationInherited))
	assert.Len(t, StationBase, 17)
}
