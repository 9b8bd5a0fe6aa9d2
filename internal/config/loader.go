package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/lintstorm/internal/config/store"
)

// InterpreterSource supplies the active interpreter command for a scope.
// It is the narrow view of the host's interpreter discovery; this
// package only consumes it.
type InterpreterSource interface {
	// Command returns the interpreter command for the scope, or an
	// empty sequence when none is available.
	Command(ctx context.Context, scope string) ([]string, error)
}

// legacyKeys maps deprecated option names to their replacements. Values
// found under a deprecated key produce a one-time advisory warning and
// never change resolved behavior.
var legacyKeys = map[string]string{
	"python.linting.pylintEnabled": Namespace + ".enabled",
	"python.linting.pylintArgs":    Namespace + ".args",
	"python.linting.pylintPath":    Namespace + ".path",
}

// Loader resolves raw configuration into Settings records. One Loader
// serves the whole session; each Resolve call produces a fresh record.
type Loader struct {
	store      store.Store
	interp     InterpreterSource
	workspaces []Workspace
	log        *zap.Logger

	warnOnce sync.Map // legacy key -> struct{}
}

// NewLoader creates a Loader over the given store and workspace set.
// interp may be nil when no interpreter discovery is available.
func NewLoader(st store.Store, interp InterpreterSource, workspaces []Workspace, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		store:      st,
		interp:     interp,
		workspaces: workspaces,
		log:        log.Named("config"),
	}
}

// Workspaces returns the workspace folders known to this loader.
func (l *Loader) Workspaces() []Workspace {
	out := make([]Workspace, len(l.workspaces))
	copy(out, l.workspaces)
	return out
}

// WorkspaceFor returns the nearest workspace whose root encloses path,
// or the first workspace when none does. Returns nil only when the
// loader has no workspaces at all.
func (l *Loader) WorkspaceFor(path string) *Workspace {
	if len(l.workspaces) == 0 {
		return nil
	}
	dir := filepath.Clean(path)
	for {
		for i := range l.workspaces {
			if filepath.Clean(l.workspaces[i].Path) == dir {
				return &l.workspaces[i]
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return &l.workspaces[0]
}

// Resolve produces the settings record for one workspace scope.
func (l *Loader) Resolve(ctx context.Context, ws *Workspace) (*Settings, error) {
	get := func(key string) (any, bool) {
		scope := ""
		if ws != nil {
			scope = ws.URI
		}
		return l.store.Get(scope, key)
	}
	return l.resolve(ctx, get, ws)
}

// ResolveAll produces one settings record per known workspace. A
// workspace that fails to resolve is logged and skipped so it cannot
// block the others.
func (l *Loader) ResolveAll(ctx context.Context) ([]*Settings, error) {
	results := make([]*Settings, len(l.workspaces))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range l.workspaces {
		i := i
		g.Go(func() error {
			ws := &l.workspaces[i]
			s, err := l.Resolve(ctx, ws)
			if err != nil {
				l.log.Warn("resolving workspace settings failed",
					zap.String("workspace", ws.URI),
					zap.Error(err))
				return nil
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Settings, 0, len(results))
	for _, s := range results {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// ResolveGlobal produces a settings record from user-level values only.
// Workspace overrides are never consulted: each option takes the global
// value when set, else its declared default.
func (l *Loader) ResolveGlobal(ctx context.Context) (*Settings, error) {
	return l.resolve(ctx, l.store.GetGlobal, nil)
}

// resolve performs one full resolution pass against the given lookup.
func (l *Loader) resolve(ctx context.Context, get func(string) (any, bool), ws *Workspace) (*Settings, error) {
	l.warnLegacy(get)

	s := &Settings{}
	if ws != nil {
		s.WorkspaceKey = ws.URI
	}

	// Working directory first: workspace substitution only, no splice.
	plain := &ResolveContext{Workspace: ws, Workspaces: l.workspaces}
	defaultCwd := ""
	if ws != nil {
		defaultCwd = ws.Path
	} else if wd, err := os.Getwd(); err == nil {
		defaultCwd = wd
	}
	s.Cwd = plain.ResolveString(getString(get, Namespace+".cwd", defaultCwd))

	// Interpreter next: explicit setting wins, otherwise ask the
	// interpreter source for this scope.
	interpreter := getStrings(get, Namespace+".interpreter")
	if len(interpreter) > 0 {
		interpreter = plain.ResolveStrings(interpreter)
	} else if l.interp != nil {
		scope := ""
		if ws != nil {
			scope = ws.URI
		}
		cmd, err := l.interp.Command(ctx, scope)
		if err != nil {
			l.log.Warn("interpreter lookup failed", zap.Error(err))
		} else {
			interpreter = cmd
		}
	}
	s.Interpreter = interpreter

	// Remaining string options resolve with the interpreter available
	// for splicing. A known-empty interpreter still splices (to zero
	// elements), it does not pass the token through.
	spliced := &ResolveContext{
		Workspace:   ws,
		Workspaces:  l.workspaces,
		Interpreter: append([]string{}, interpreter...),
	}
	s.Args = spliced.ResolveStrings(getStrings(get, Namespace+".args"))
	s.Path = spliced.ResolveStrings(getStrings(get, Namespace+".path"))
	s.IgnorePatterns = spliced.ResolveStrings(getStrings(get, Namespace+".ignorePatterns"))
	s.ExtraPaths = spliced.ResolveStrings(getStrings(get, LegacyExtraPathsKey))

	s.Enabled = getBool(get, Namespace+".enabled", true)
	s.LintOnChange = getBool(get, Namespace+".lintOnChange", false)
	s.ImportStrategy = ImportStrategy(getString(get, Namespace+".importStrategy", string(ImportBundled)))
	s.ShowNotifications = NotificationPolicy(getString(get, Namespace+".showNotifications", string(NotifyOff)))
	s.Severity = mergeSeverity(getSeverity(get, Namespace+".severity"))

	return s, nil
}

// warnLegacy emits a one-time advisory warning for each deprecated key
// that carries a value. The values are never acted on.
func (l *Loader) warnLegacy(get func(string) (any, bool)) {
	for legacy, replacement := range legacyKeys {
		v, ok := get(legacy)
		if !ok || v == nil {
			continue
		}
		if _, warned := l.warnOnce.LoadOrStore(legacy, struct{}{}); warned {
			continue
		}
		l.log.Warn("deprecated setting in use",
			zap.String("key", legacy),
			zap.Any("value", v),
			zap.String("replacement", replacement))
	}
}

// mergeSeverity overlays user overrides onto the fixed defaults. Keys
// outside the fixed category set are tool-specific diagnostic codes and
// pass through for per-diagnostic overrides.
func mergeSeverity(overrides map[string]Severity) map[string]Severity {
	merged := DefaultSeverity()
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// --- raw value coercion ---

func getString(get func(string) (any, bool), key, def string) string {
	if v, ok := get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func getBool(get func(string) (any, bool), key string, def bool) bool {
	if v, ok := get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func getStrings(get func(string) (any, bool), key string) []string {
	v, ok := get(key)
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return append([]string{}, vv...)
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		// A single string stands for a one-element list.
		if strings.TrimSpace(vv) == "" {
			return nil
		}
		return []string{vv}
	}
	return nil
}

func getSeverity(get func(string) (any, bool), key string) map[string]Severity {
	v, ok := get(key)
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		if typed, ok := v.(map[string]string); ok {
			out := make(map[string]Severity, len(typed))
			for k, s := range typed {
				out[k] = Severity(s)
			}
			return out
		}
		return nil
	}
	out := make(map[string]Severity, len(raw))
	for k, e := range raw {
		if s, ok := e.(string); ok {
			out[k] = Severity(s)
		}
	}
	return out
}
