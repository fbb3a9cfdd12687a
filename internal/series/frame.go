package series

import (
	"fmt"
	"sort"
)

// Frame is an immutable column-oriented table of time-stamped records.
//
// A keyed frame holds one series per entity id (battery groups); an unkeyed
// frame holds a single implicit entity (the station). Rows are always sorted
// by (entity, ts). Records sharing both keys keep their input order.
type Frame struct {
	keyed  bool
	ts     []int64
	entity []int64
	names  []string
	cols   map[string][]Value
}

// Span is the contiguous row range [Start, End) of one entity.
type Span struct {
	ID    int64
	Start int
	End   int
}

// New builds an unkeyed frame. cols[i] is the column named names[i].
func New(ts []int64, names []string, cols [][]Value) (*Frame, error) {
	return build(false, ts, nil, names, cols)
}

// NewKeyed builds a frame holding one series per entity id.
func NewKeyed(ts, entity []int64, names []string, cols [][]Value) (*Frame, error) {
	if len(entity) != len(ts) {
		return nil, fmt.Errorf("entity column has %d rows, timestamps have %d", len(entity), len(ts))
	}
	return build(true, ts, entity, names, cols)
}

func build(keyed bool, ts, entity []int64, names []string, cols [][]Value) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("%d column names for %d columns", len(names), len(cols))
	}
	n := len(ts)
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		if len(cols[i]) != n {
			return nil, fmt.Errorf("column %q has %d rows, timestamps have %d", name, len(cols[i]), n)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if keyed && entity[ia] != entity[ib] {
			return entity[ia] < entity[ib]
		}
		return ts[ia] < ts[ib]
	})

	f := &Frame{
		keyed: keyed,
		ts:    make([]int64, n),
		names: append([]string(nil), names...),
		cols:  make(map[string][]Value, len(names)),
	}
	if keyed {
		f.entity = make([]int64, n)
	}
	for dst, src := range order {
		f.ts[dst] = ts[src]
		if keyed {
			f.entity[dst] = entity[src]
		}
	}
	for i, name := range names {
		col := make([]Value, n)
		for dst, src := range order {
			col[dst] = cols[i][src]
		}
		f.cols[name] = col
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.ts) }

// Keyed reports whether rows carry an entity id.
func (f *Frame) Keyed() bool { return f.keyed }

// TS returns the timestamp column. Callers must not modify it.
func (f *Frame) TS() []int64 { return f.ts }

// Entity returns the entity id of row i, 0 for unkeyed frames.
func (f *Frame) Entity(i int) int64 {
	if !f.keyed {
		return 0
	}
	return f.entity[i]
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Col returns a column. Callers must not modify it.
func (f *Frame) Col(name string) ([]Value, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// At returns the value of column name at row i, Missing if the column is absent.
func (f *Frame) At(name string, i int) Value {
	col, ok := f.cols[name]
	if !ok {
		return Missing
	}
	return col[i]
}

// MaxTS returns the largest timestamp, false when the frame is empty.
func (f *Frame) MaxTS() (int64, bool) {
	if len(f.ts) == 0 {
		return 0, false
	}
	best := f.ts[0]
	for _, t := range f.ts[1:] {
		if t > best {
			best = t
		}
	}
	return best, true
}

// Spans returns the row range of every entity in ascending id order. An
// unkeyed non-empty frame has exactly one span.
func (f *Frame) Spans() []Span {
	n := len(f.ts)
	if n == 0 {
		return nil
	}
	if !f.keyed {
		return []Span{{Start: 0, End: n}}
	}
	var spans []Span
	start := 0
	for i := 1; i <= n; i++ {
		if i == n || f.entity[i] != f.entity[start] {
			spans = append(spans, Span{ID: f.entity[start], Start: start, End: i})
			start = i
		}
	}
	return spans
}

// With returns a new frame with col set under name. An existing column of
// the same name is replaced in place; otherwise the column is appended. The
// receiver is left untouched and unchanged columns are shared.
func (f *Frame) With(name string, col []Value) *Frame {
	if len(col) != len(f.ts) {
		panic(fmt.Sprintf("series: column %q has %d rows, frame has %d", name, len(col), len(f.ts)))
	}
	out := &Frame{
		keyed:  f.keyed,
		ts:     f.ts,
		entity: f.entity,
		names:  f.names,
		cols:   make(map[string][]Value, len(f.cols)+1),
	}
	for k, v := range f.cols {
		out.cols[k] = v
	}
	if _, ok := f.cols[name]; !ok {
		out.names = append(append([]string(nil), f.names...), name)
	}
	out.cols[name] = col
	return out
}

// Ensure returns a frame that has every named column, adding all-missing
// columns for the absent ones.
func (f *Frame) Ensure(names []string) *Frame {
	out := f
	for _, name := range names {
		if !out.Has(name) {
			out = out.With(name, Column(out.Len()))
		}
	}
	return out
}

// Rows returns a new frame restricted to the given row indices, in order.
func (f *Frame) Rows(idx []int) *Frame {
	out := &Frame{
		keyed: f.keyed,
		ts:    make([]int64, len(idx)),
		names: f.names,
		cols:  make(map[string][]Value, len(f.cols)),
	}
	if f.keyed {
		out.entity = make([]int64, len(idx))
	}
	for dst, src := range idx {
		out.ts[dst] = f.ts[src]
		if f.keyed {
			out.entity[dst] = f.entity[src]
		}
	}
	for name, col := range f.cols {
		sub := make([]Value, len(idx))
		for dst, src := range idx {
			sub[dst] = col[src]
		}
		out.cols[name] = sub
	}
	return out
}

// Matrix returns the named columns as a row-major float matrix with NaN for
// missing cells. Absent columns yield NaN throughout.
func (f *Frame) Matrix(names []string) [][]float64 {
	x := make([][]float64, len(f.ts))
	for i := range x {
		row := make([]float64, len(names))
		for j, name := range names {
			row[j] = f.At(name, i).Float()
		}
		x[i] = row
	}
	return x
}
