package series

// Filled returns a frame where each named column is forward filled and then
// backward filled within every entity. Values never cross entity boundaries.
// Columns that do not exist are added as all-missing first.
func (f *Frame) Filled(names []string) *Frame {
	out := f.Ensure(names)
	spans := out.Spans()
	for _, name := range names {
		src, _ := out.Col(name)
		col := make([]Value, len(src))
		copy(col, src)
		for _, sp := range spans {
			fillSpan(col[sp.Start:sp.End])
		}
		out = out.With(name, col)
	}
	return out
}

func fillSpan(col []Value) {
	last := Missing
	for i, v := range col {
		if v.Valid {
			last = v
		} else if last.Valid {
			col[i] = last
		}
	}
	next := Missing
	for i := len(col) - 1; i >= 0; i-- {
		if col[i].Valid {
			next = col[i]
		} else if next.Valid {
			col[i] = next
		}
	}
}
