package config

import (
	"context"
	"reflect"
	"testing"

	"github.com/dshills/lintstorm/internal/config/store"
)

type fakeInterp struct {
	cmd   []string
	calls int
}

func (f *fakeInterp) Command(_ context.Context, _ string) ([]string, error) {
	f.calls++
	return f.cmd, nil
}

func testLoader(t *testing.T, st store.Store, interp InterpreterSource) (*Loader, *Workspace) {
	t.Helper()
	workspaces := []Workspace{
		{Name: "app", Path: "/work/app", URI: "file:///work/app"},
		{Name: "lib", Path: "/work/lib", URI: "file:///work/lib"},
	}
	l := NewLoader(st, interp, workspaces, nil)
	return l, &l.workspaces[0]
}

func TestResolve_Defaults(t *testing.T) {
	st := &store.MapStore{}
	l, ws := testLoader(t, st, &fakeInterp{cmd: []string{"/usr/bin/python3"}})

	s, err := l.Resolve(context.Background(), ws)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if s.Cwd != "/work/app" {
		t.Errorf("Cwd = %q, want workspace root", s.Cwd)
	}
	if !s.Enabled {
		t.Error("Enabled = false, want true by default")
	}
	if len(s.Args) != 0 || len(s.Path) != 0 || len(s.IgnorePatterns) != 0 {
		t.Errorf("expected empty defaults, got args=%v path=%v ignore=%v",
			s.Args, s.Path, s.IgnorePatterns)
	}
	if s.ImportStrategy != ImportBundled {
		t.Errorf("ImportStrategy = %q, want %q", s.ImportStrategy, ImportBundled)
	}
	if s.ShowNotifications != NotifyOff {
		t.Errorf("ShowNotifications = %q, want %q", s.ShowNotifications, NotifyOff)
	}
	if s.LintOnChange {
		t.Error("LintOnChange = true, want false by default")
	}
	if !reflect.DeepEqual(s.Severity, DefaultSeverity()) {
		t.Errorf("Severity = %v, want fixed default mapping", s.Severity)
	}
	if !reflect.DeepEqual(s.Interpreter, []string{"/usr/bin/python3"}) {
		t.Errorf("Interpreter = %v, want discovered command", s.Interpreter)
	}
}

func TestResolve_ExplicitInterpreterSkipsDiscovery(t *testing.T) {
	st := &store.MapStore{
		Global: map[string]any{
			Namespace + ".interpreter": []any{"${workspaceFolder}/.venv/bin/python"},
		},
	}
	interp := &fakeInterp{cmd: []string{"/usr/bin/python3"}}
	l, ws := testLoader(t, st, interp)

	s, err := l.Resolve(context.Background(), ws)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"/work/app/.venv/bin/python"}
	if !reflect.DeepEqual(s.Interpreter, want) {
		t.Errorf("Interpreter = %v, want %v", s.Interpreter, want)
	}
	if interp.calls != 0 {
		t.Errorf("interpreter source consulted %d times, want 0", interp.calls)
	}
}

func TestResolve_ArgsSpliceAndOrder(t *testing.T) {
	st := &store.MapStore{
		Scoped: map[string]map[string]any{
			"file:///work/app": {
				Namespace + ".args": []any{"--rcfile=${workspaceFolder}/.pylintrc", "--jobs=2"},
				Namespace + ".path": []any{"${interpreter}", "-m", "pylint"},
			},
		},
	}
	l, ws := testLoader(t, st, &fakeInterp{cmd: []string{"/opt/py/bin/python", "-u"}})

	s, err := l.Resolve(context.Background(), ws)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantArgs := []string{"--rcfile=/work/app/.pylintrc", "--jobs=2"}
	if !reflect.DeepEqual(s.Args, wantArgs) {
		t.Errorf("Args = %v, want %v", s.Args, wantArgs)
	}
	wantPath := []string{"/opt/py/bin/python", "-u", "-m", "pylint"}
	if !reflect.DeepEqual(s.Path, wantPath) {
		t.Errorf("Path = %v, want %v", s.Path, wantPath)
	}
}

func TestResolve_SeverityMerge(t *testing.T) {
	st := &store.MapStore{
		Global: map[string]any{
			Namespace + ".severity": map[string]any{
				"convention": "Hint",
				"W0611":      "Error",
			},
		},
	}
	l, ws := testLoader(t, st, &fakeInterp{})

	s, err := l.Resolve(context.Background(), ws)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if s.Severity["convention"] != SeverityHint {
		t.Errorf("override convention = %q, want Hint", s.Severity["convention"])
	}
	if s.Severity["error"] != SeverityError {
		t.Errorf("unspecified key error = %q, want default Error", s.Severity["error"])
	}
	if s.Severity["W0611"] != SeverityError {
		t.Errorf("extra code W0611 = %q, want passed through", s.Severity["W0611"])
	}
	if len(s.Severity) != len(DefaultSeverity())+1 {
		t.Errorf("severity map has %d entries, want %d", len(s.Severity), len(DefaultSeverity())+1)
	}
}

func TestResolve_LegacyExtraPaths(t *testing.T) {
	st := &store.MapStore{
		Scoped: map[string]map[string]any{
			"file:///work/app": {
				LegacyExtraPathsKey: []any{"${workspaceFolder}/vendor"},
			},
		},
	}
	l, ws := testLoader(t, st, &fakeInterp{})

	s, err := l.Resolve(context.Background(), ws)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"/work/app/vendor"}
	if !reflect.DeepEqual(s.ExtraPaths, want) {
		t.Errorf("ExtraPaths = %v, want %v", s.ExtraPaths, want)
	}
}

func TestResolveGlobal_IgnoresWorkspaceOverrides(t *testing.T) {
	st := &store.MapStore{
		Global: map[string]any{
			Namespace + ".args": []any{"--global"},
		},
		Scoped: map[string]map[string]any{
			"file:///work/app": {
				Namespace + ".args": []any{"--scoped"},
			},
		},
	}
	l, _ := testLoader(t, st, &fakeInterp{})

	s, err := l.ResolveGlobal(context.Background())
	if err != nil {
		t.Fatalf("ResolveGlobal() error = %v", err)
	}
	if !reflect.DeepEqual(s.Args, []string{"--global"}) {
		t.Errorf("global Args = %v, want only global value", s.Args)
	}
	if s.WorkspaceKey != "" {
		t.Errorf("global WorkspaceKey = %q, want empty", s.WorkspaceKey)
	}
}

func TestResolveAll_OneRecordPerWorkspace(t *testing.T) {
	st := &store.MapStore{
		Scoped: map[string]map[string]any{
			"file:///work/app": {Namespace + ".args": []any{"--app"}},
			"file:///work/lib": {Namespace + ".args": []any{"--lib"}},
		},
	}
	l, _ := testLoader(t, st, &fakeInterp{})

	all, err := l.ResolveAll(context.Background())
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ResolveAll() = %d records, want 2", len(all))
	}
	byKey := map[string][]string{}
	for _, s := range all {
		byKey[s.WorkspaceKey] = s.Args
	}
	if !reflect.DeepEqual(byKey["file:///work/app"], []string{"--app"}) {
		t.Errorf("app args = %v", byKey["file:///work/app"])
	}
	if !reflect.DeepEqual(byKey["file:///work/lib"], []string{"--lib"}) {
		t.Errorf("lib args = %v", byKey["file:///work/lib"])
	}
}

func TestWorkspaceFor(t *testing.T) {
	l, _ := testLoader(t, &store.MapStore{}, &fakeInterp{})

	tests := []struct {
		path string
		want string
	}{
		{"/work/app/pkg/deep/file.py", "app"},
		{"/work/lib/x.py", "lib"},
		{"/elsewhere/file.py", "app"}, // falls back to first workspace
	}
	for _, tt := range tests {
		ws := l.WorkspaceFor(tt.path)
		if ws == nil || ws.Name != tt.want {
			t.Errorf("WorkspaceFor(%q) = %v, want %q", tt.path, ws, tt.want)
		}
	}
}
