// Package store provides read-only configuration sources for settings
// resolution.
//
// A Store answers raw, untyped lookups keyed by a full option name such
// as "lintstorm.args". Scoped lookups fall back to the global level when
// the workspace has no override; global lookups never pick up a
// workspace-local value.
package store

// Store is a read-only configuration source.
type Store interface {
	// Get returns the raw value for key in the given workspace scope,
	// falling back to the global level. The second result reports
	// whether any value was found.
	Get(scope, key string) (any, bool)

	// GetGlobal returns the value set at the global level only,
	// ignoring workspace overrides.
	GetGlobal(key string) (any, bool)
}

// MapStore is an in-memory Store. It is the programmatic source used by
// embedding hosts and by tests.
type MapStore struct {
	// Global holds user-level values by option key.
	Global map[string]any

	// Scoped holds per-workspace overrides, keyed by scope then option.
	Scoped map[string]map[string]any
}

// Get implements Store.
func (m *MapStore) Get(scope, key string) (any, bool) {
	if ws, ok := m.Scoped[scope]; ok {
		if v, ok := ws[key]; ok {
			return v, true
		}
	}
	return m.GetGlobal(key)
}

// GetGlobal implements Store.
func (m *MapStore) GetGlobal(key string) (any, bool) {
	v, ok := m.Global[key]
	return v, ok
}

// Layered combines stores with first-match-wins precedence for both
// scoped and global lookups.
type Layered []Store

// Get implements Store.
func (l Layered) Get(scope, key string) (any, bool) {
	for _, s := range l {
		if v, ok := s.Get(scope, key); ok {
			return v, true
		}
	}
	return nil, false
}

// GetGlobal implements Store.
func (l Layered) GetGlobal(key string) (any, bool) {
	for _, s := range l {
		if v, ok := s.GetGlobal(key); ok {
			return v, true
		}
	}
	return nil, false
}
