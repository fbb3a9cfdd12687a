package series

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Value is a float64 that may be absent. The zero value is Missing.
type Value struct {
	V     float64
	Valid bool
}

// Missing is the absent value.
var Missing = Value{}

// Of wraps v. Non-finite inputs become Missing so that NaN never travels
// through a table as if it were a number.
func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Value{V: v, Valid: true}
}

// Bool returns 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Value{V: 1, Valid: true}
	}
	return Value{V: 0, Valid: true}
}

// Float returns the value or NaN when absent.
func (v Value) Float() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.V
}

// Positive reports whether the value is present and greater than zero.
func (v Value) Positive() bool {
	return v.Valid && v.V > 0
}

// Sub returns v - o, missing when either operand is.
func (v Value) Sub(o Value) Value {
	if !v.Valid || !o.Valid {
		return Missing
	}
	return Of(v.V - o.V)
}

// Max returns the larger of two values. A missing operand loses.
func Max(a, b Value) Value {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.V > a.V:
		return b
	}
	return a
}

func (v Value) String() string {
	if !v.Valid {
		return "NaN"
	}
	return strconv.FormatFloat(v.V, 'g', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes to Missing rather than failing.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Missing
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Of(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*v = Of(f)
		}
	}
	return nil
}

// Column returns n missing values.
func Column(n int) []Value {
	return make([]Value, n)
}

// Floats converts a column to float64 with NaN for missing entries.
func Floats(col []Value) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = v.Float()
	}
	return out
}
