package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMapStore_ScopeFallback(t *testing.T) {
	st := &MapStore{
		Global: map[string]any{"lintstorm.args": "global"},
		Scoped: map[string]map[string]any{
			"ws1": {"lintstorm.args": "scoped"},
		},
	}

	if v, _ := st.Get("ws1", "lintstorm.args"); v != "scoped" {
		t.Errorf("scoped Get = %v, want scoped value", v)
	}
	if v, _ := st.Get("ws2", "lintstorm.args"); v != "global" {
		t.Errorf("fallback Get = %v, want global value", v)
	}
	if v, _ := st.GetGlobal("lintstorm.args"); v != "global" {
		t.Errorf("GetGlobal = %v, want global value", v)
	}
	if _, ok := st.Get("ws1", "missing"); ok {
		t.Error("Get(missing) reported ok")
	}
}

func TestLayered_FirstMatchWins(t *testing.T) {
	first := &MapStore{Global: map[string]any{"k": "first"}}
	second := &MapStore{Global: map[string]any{"k": "second", "only": "second"}}
	st := Layered{first, second}

	if v, _ := st.GetGlobal("k"); v != "first" {
		t.Errorf("layered GetGlobal = %v, want first layer", v)
	}
	if v, _ := st.Get("ws", "only"); v != "second" {
		t.Errorf("layered Get = %v, want second layer", v)
	}
	if _, ok := st.GetGlobal("none"); ok {
		t.Error("layered GetGlobal(none) reported ok")
	}
}

func TestTOMLStore(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	if err := os.WriteFile(globalPath, []byte(`
[lintstorm]
enabled = true
args = ["--global"]
`), 0o644); err != nil {
		t.Fatal(err)
	}

	wsRoot := filepath.Join(dir, "ws")
	if err := os.MkdirAll(wsRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wsRoot, WorkspaceConfigName), []byte(`
[lintstorm]
args = ["--scoped"]

[lintstorm.severity]
convention = "Hint"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewTOMLStore(globalPath, map[string]string{"ws": wsRoot})

	if v, ok := st.Get("ws", "lintstorm.args"); !ok || !reflect.DeepEqual(v, []any{"--scoped"}) {
		t.Errorf("scoped args = %v (ok=%v), want [--scoped]", v, ok)
	}
	if v, ok := st.GetGlobal("lintstorm.args"); !ok || !reflect.DeepEqual(v, []any{"--global"}) {
		t.Errorf("global args = %v (ok=%v), want [--global]", v, ok)
	}
	if v, ok := st.Get("ws", "lintstorm.enabled"); !ok || v != true {
		t.Errorf("enabled fallback = %v (ok=%v), want true from global", v, ok)
	}

	sev, ok := st.Get("ws", "lintstorm.severity")
	if !ok {
		t.Fatal("severity table not found")
	}
	table, ok := sev.(map[string]any)
	if !ok || table["convention"] != "Hint" {
		t.Errorf("severity table = %v, want convention=Hint", sev)
	}
}

func TestTOMLStore_MissingFilesAreEmpty(t *testing.T) {
	st := NewTOMLStore(filepath.Join(t.TempDir(), "nope.toml"), nil)
	if _, ok := st.GetGlobal("lintstorm.args"); ok {
		t.Error("missing file produced a value")
	}
}

func TestTOMLStore_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "global.toml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("[lintstorm]\nenabled = true\n")
	st := NewTOMLStore(path, nil)
	if v, _ := st.GetGlobal("lintstorm.enabled"); v != true {
		t.Fatalf("initial enabled = %v", v)
	}

	write("[lintstorm]\nenabled = false\n")
	if v, _ := st.GetGlobal("lintstorm.enabled"); v != true {
		t.Errorf("cached value changed without Reload: %v", v)
	}

	st.Reload()
	if v, _ := st.GetGlobal("lintstorm.enabled"); v != false {
		t.Errorf("after Reload enabled = %v, want false", v)
	}
}

func TestJSONStore(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(globalPath, []byte(`{
  "lintstorm.args": ["--from-json"],
  "lintstorm": {"lintOnChange": true}
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	wsRoot := filepath.Join(dir, "ws")
	if err := os.MkdirAll(filepath.Join(wsRoot, ".vscode"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wsRoot, JSONSettingsName), []byte(`{
  "lintstorm.args": ["--ws"]
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewJSONStore(globalPath, map[string]string{"ws": wsRoot})

	if v, ok := st.Get("ws", "lintstorm.args"); !ok || !reflect.DeepEqual(v, []any{"--ws"}) {
		t.Errorf("scoped args = %v (ok=%v), want [--ws]", v, ok)
	}
	if v, ok := st.GetGlobal("lintstorm.args"); !ok || !reflect.DeepEqual(v, []any{"--from-json"}) {
		t.Errorf("global args = %v (ok=%v)", v, ok)
	}
	// Nested layout resolves through the gjson path form.
	if v, ok := st.GetGlobal("lintstorm.lintOnChange"); !ok || v != true {
		t.Errorf("nested lintOnChange = %v (ok=%v), want true", v, ok)
	}
}

func TestJSONStore_InvalidFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewJSONStore(path, nil)
	if _, ok := st.GetGlobal("lintstorm.args"); ok {
		t.Error("invalid JSON produced a value")
	}
}
