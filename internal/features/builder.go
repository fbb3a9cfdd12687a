package features

import (
	"stationcast/internal/series"

	"gonum.org/v1/gonum/stat"
)

// Window is a trailing time window used for rolling statistics.
type Window struct {
	Suffix string
	MS     int64
}

// Windows are the rolling windows every base field is summarised over.
var Windows = []Window{
	{Suffix: "60s", MS: 60_000},
	{Suffix: "5m", MS: 5 * 60_000},
}

// DerivedNames returns the derived column names of one base field in output
// order: diff1, then mean/std for each window.
func DerivedNames(field string) []string {
	names := []string{field + "_diff1"}
	for _, w := range Windows {
		names = append(names, field+"_mean"+w.Suffix, field+"_std"+w.Suffix)
	}
	return names
}

// Build appends first differences and rolling mean/std columns for every
// field, field-major in the given order, and returns the new frame with the
// derived column names. Fields that do not exist are treated as all-missing.
// Each entity is processed on its own rows only.
func Build(f *series.Frame, fields []string) (*series.Frame, []string) {
	out := f.Ensure(fields)
	spans := out.Spans()
	ts := out.TS()

	var derived []string
	for _, field := range fields {
		src, _ := out.Col(field)
		n := len(src)

		diff := series.Column(n)
		means := make([][]series.Value, len(Windows))
		stds := make([][]series.Value, len(Windows))
		for k := range Windows {
			means[k] = series.Column(n)
			stds[k] = series.Column(n)
		}

		for _, sp := range spans {
			for i := sp.Start + 1; i < sp.End; i++ {
				diff[i] = src[i].Sub(src[i-1])
			}
			for k, w := range Windows {
				rolling(ts[sp.Start:sp.End], src[sp.Start:sp.End], w.MS,
					means[k][sp.Start:sp.End], stds[k][sp.Start:sp.End])
			}
		}

		names := DerivedNames(field)
		out = out.With(names[0], diff)
		for k := range Windows {
			out = out.With(names[1+2*k], means[k])
			out = out.With(names[2+2*k], stds[k])
		}
		derived = append(derived, names...)
	}
	return out, derived
}

// rolling fills mean and std for one entity. The window of row i covers the
// rows j <= i with ts[j] > ts[i]-width, so it ends at and includes the row
// itself. Missing values are ignored; std needs at least two values.
func rolling(ts []int64, src []series.Value, width int64, mean, std []series.Value) {
	// Present values compacted in row order, so a window is a contiguous range.
	vts := make([]int64, 0, len(src))
	vals := make([]float64, 0, len(src))
	lo := 0
	for i, v := range src {
		if v.Valid {
			vts = append(vts, ts[i])
			vals = append(vals, v.V)
		}
		for lo < len(vts) && vts[lo] <= ts[i]-width {
			lo++
		}
		window := vals[lo:]
		switch len(window) {
		case 0:
		case 1:
			mean[i] = series.Of(window[0])
		default:
			m, s := stat.MeanStdDev(window, nil)
			mean[i] = series.Of(m)
			std[i] = series.Of(s)
		}
	}
}
