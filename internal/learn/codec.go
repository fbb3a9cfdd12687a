package learn

import (
	"encoding/json"
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Model{}
)

// Register makes a model kind decodable. It panics on a duplicate kind.
func Register(kind string, factory func() Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[kind]; ok {
		panic("learn: duplicate model kind " + kind)
	}
	registry[kind] = factory
}

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// Encode wraps m in a kind-tagged JSON envelope.
func Encode(m Model) (json.RawMessage, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s model: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Kind: m.Kind(), Model: body})
}

// Decode reverses Encode.
func Decode(data []byte) (Model, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode model envelope: %w", err)
	}
	registryMu.RLock()
	factory, ok := registry[env.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	m := factory()
	if err := json.Unmarshal(env.Model, m); err != nil {
		return nil, fmt.Errorf("failed to decode %s model: %w", env.Kind, err)
	}
	return m, nil
}
