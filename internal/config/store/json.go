package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// JSONSettingsName is the editor-style settings overlay looked up under
// each workspace root.
const JSONSettingsName = ".vscode/settings.json"

// JSONStore reads editor settings.json files, where option keys appear
// as literal top-level keys ("lintstorm.args": [...]). Lookups go
// through gjson so a nested {"lintstorm": {"args": [...]}} layout also
// resolves.
type JSONStore struct {
	mu sync.RWMutex

	globalPath string
	roots      map[string]string

	global gjson.Result
	scoped map[string]gjson.Result
	loaded bool
}

// NewJSONStore creates a store reading globalPath (may be empty) and a
// JSONSettingsName file under each workspace root.
func NewJSONStore(globalPath string, roots map[string]string) *JSONStore {
	r := make(map[string]string, len(roots))
	for k, v := range roots {
		r[k] = v
	}
	return &JSONStore{globalPath: globalPath, roots: r}
}

// Get implements Store.
func (s *JSONStore) Get(scope, key string) (any, bool) {
	s.load()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.scoped[scope]; ok {
		if v, ok := lookupJSON(doc, key); ok {
			return v, true
		}
	}
	return lookupJSON(s.global, key)
}

// GetGlobal implements Store.
func (s *JSONStore) GetGlobal(key string) (any, bool) {
	s.load()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookupJSON(s.global, key)
}

// Reload drops cached file contents so the next lookup rereads them.
func (s *JSONStore) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.global = gjson.Result{}
	s.scoped = nil
	s.mu.Unlock()
}

func (s *JSONStore) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}

	s.scoped = make(map[string]gjson.Result, len(s.roots))
	if s.globalPath != "" {
		s.global = parseJSONFile(s.globalPath)
	}
	for scope, root := range s.roots {
		doc := parseJSONFile(filepath.Join(root, JSONSettingsName))
		if doc.Exists() {
			s.scoped[scope] = doc
		}
	}
	s.loaded = true
}

func parseJSONFile(path string) gjson.Result {
	data, err := os.ReadFile(path)
	if err != nil || !gjson.ValidBytes(data) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(data)
}

// lookupJSON tries the literal dotted key first (editor settings style),
// then the key as a nested gjson path.
func lookupJSON(doc gjson.Result, key string) (any, bool) {
	if !doc.Exists() {
		return nil, false
	}
	escaped := strings.ReplaceAll(key, ".", `\.`)
	if v := doc.Get(escaped); v.Exists() {
		return v.Value(), true
	}
	if v := doc.Get(key); v.Exists() {
		return v.Value(), true
	}
	return nil, false
}
