package labels

import (
	"encoding/json"
	"fmt"
)

// Horizon is a named future offset in milliseconds.
type Horizon struct {
	Key string `json:"key" yaml:"key"`
	MS  int64  `json:"ms" yaml:"ms"`
}

// Horizons is an immutable ordered set of horizons. It is passed explicitly
// to everything that labels or predicts.
type Horizons struct {
	items []Horizon
}

// NewHorizons validates and freezes an ordered horizon list.
func NewHorizons(items ...Horizon) (Horizons, error) {
	if len(items) == 0 {
		return Horizons{}, fmt.Errorf("at least one horizon is required")
	}
	seen := make(map[string]bool, len(items))
	for _, h := range items {
		if h.Key == "" {
			return Horizons{}, fmt.Errorf("horizon key cannot be empty")
		}
		if h.MS <= 0 {
			return Horizons{}, fmt.Errorf("horizon %s: duration must be positive, got %d", h.Key, h.MS)
		}
		if seen[h.Key] {
			return Horizons{}, fmt.Errorf("duplicate horizon %s", h.Key)
		}
		seen[h.Key] = true
	}
	return Horizons{items: append([]Horizon(nil), items...)}, nil
}

// Canonical returns 60s, 5m and 1h.
func Canonical() Horizons {
	return Horizons{items: []Horizon{
		{Key: "60s", MS: 60_000},
		{Key: "5m", MS: 5 * 60_000},
		{Key: "1h", MS: 60 * 60_000},
	}}
}

// All returns a copy of the horizons in order.
func (h Horizons) All() []Horizon {
	return append([]Horizon(nil), h.items...)
}

// Keys returns the horizon keys in order.
func (h Horizons) Keys() []string {
	keys := make([]string, len(h.items))
	for i, item := range h.items {
		keys[i] = item.Key
	}
	return keys
}

// Len returns the number of horizons.
func (h Horizons) Len() int { return len(h.items) }

func (h Horizons) MarshalJSON() ([]byte, error) {
	if h.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.items)
}

func (h *Horizons) UnmarshalJSON(data []byte) error {
	var items []Horizon
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	parsed, err := NewHorizons(items...)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// TargetName is the future-value column of field at horizon key.
func TargetName(field, key string) string {
	return "y_" + field + "_" + key
}

// FaultName is the fault label column at horizon key.
func FaultName(key string) string { return "y_fault_" + key }

// WarningName is the warning label column at horizon key.
func WarningName(key string) string { return "y_warning_" + key }
