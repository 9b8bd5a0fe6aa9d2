package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// WorkspaceConfigName is the per-workspace configuration filename looked
// up relative to each workspace root.
const WorkspaceConfigName = "lintstorm.toml"

// TOMLStore reads configuration from TOML files: one optional global
// file plus one optional file per workspace root. Nested tables flatten
// to dotted option keys, so
//
//	[lintstorm]
//	args = ["--enable=all"]
//
// is read back as "lintstorm.args". Files are loaded lazily and cached;
// Reload drops the cache after a config file change.
type TOMLStore struct {
	mu sync.RWMutex

	// globalPath is the user-level file, may be empty.
	globalPath string

	// roots maps scope key to workspace root directory.
	roots map[string]string

	global map[string]any
	scoped map[string]map[string]any
	loaded bool
}

// NewTOMLStore creates a store reading globalPath (may be empty) and a
// WorkspaceConfigName file under each workspace root. The roots map is
// keyed by scope key.
func NewTOMLStore(globalPath string, roots map[string]string) *TOMLStore {
	r := make(map[string]string, len(roots))
	for k, v := range roots {
		r[k] = v
	}
	return &TOMLStore{globalPath: globalPath, roots: r}
}

// Get implements Store.
func (s *TOMLStore) Get(scope, key string) (any, bool) {
	if err := s.load(); err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ws, ok := s.scoped[scope]; ok {
		if v, ok := ws[key]; ok {
			return v, true
		}
	}
	v, ok := s.global[key]
	return v, ok
}

// GetGlobal implements Store.
func (s *TOMLStore) GetGlobal(key string) (any, bool) {
	if err := s.load(); err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.global[key]
	return v, ok
}

// Reload drops cached file contents so the next lookup rereads them.
func (s *TOMLStore) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.global = nil
	s.scoped = nil
	s.mu.Unlock()
}

// load reads and flattens all configured files once.
func (s *TOMLStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	s.global = map[string]any{}
	s.scoped = map[string]map[string]any{}

	if s.globalPath != "" {
		values, err := loadTOMLFile(s.globalPath)
		if err != nil {
			return err
		}
		s.global = values
	}

	for scope, root := range s.roots {
		values, err := loadTOMLFile(filepath.Join(root, WorkspaceConfigName))
		if err != nil {
			return err
		}
		if values != nil {
			s.scoped[scope] = values
		}
	}

	s.loaded = true
	return nil
}

// loadTOMLFile parses one file into flattened dotted keys. A missing
// file is not an error.
func loadTOMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	flat := make(map[string]any)
	flatten("", raw, flat)
	return flat, nil
}

// flatten converts nested tables to dotted keys. Leaf maps that are not
// pure tables of tables (for example severity overrides) are kept whole
// in addition to their flattened children so both access styles work.
func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			out[key] = nested
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
