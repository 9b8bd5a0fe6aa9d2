package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/lintstorm/internal/config"
	"github.com/dshills/lintstorm/internal/config/watcher"
	"github.com/dshills/lintstorm/internal/interp"
	"github.com/dshills/lintstorm/internal/lsp"
	"github.com/dshills/lintstorm/internal/notify"
)

// DiagnosticsHandler receives findings for a document, after severity
// overrides have been applied.
type DiagnosticsHandler func(scope string, uri lsp.DocumentURI, diagnostics []lsp.Diagnostic)

// UserNotifier raises a user-visible notification in the host. The
// notification policy setting gates when it fires; logging is always
// the primary surface.
type UserNotifier func(scope, message string)

// Manager runs one Session per workspace scope and wires up the restart
// triggers: settings changes on the watch list, interpreter switches,
// and lint configuration file changes under each workspace root.
type Manager struct {
	loader   *config.Loader
	provider interp.Provider
	notifier *notify.Notifier
	log      *zap.Logger
	level    zapcore.Level

	serverPath  string
	debugPath   string
	configFiles []string
	onDiags     DiagnosticsHandler
	notifyUser  UserNotifier

	newClient func(lsp.Invocation, *zap.Logger) client

	mu        sync.Mutex
	sessions  map[string]*Session
	watchers  []*watcher.Handle
	disposers []func()
	started   bool
	closed    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithServerPath sets the bundled lint server entry point, run via the
// interpreter when no tool path override is configured.
func WithServerPath(path string) Option {
	return func(m *Manager) { m.serverPath = path }
}

// WithDebugAdapterPath sets the debugger adapter location exported to
// the tool via DEBUGPY_PATH.
func WithDebugAdapterPath(path string) Option {
	return func(m *Manager) { m.debugPath = path }
}

// WithLogLevel sets the level that drives the server's trace verbosity.
func WithLogLevel(level zapcore.Level) Option {
	return func(m *Manager) { m.level = level }
}

// WithDiagnosticsHandler sets the host callback for published findings.
func WithDiagnosticsHandler(h DiagnosticsHandler) Option {
	return func(m *Manager) { m.onDiags = h }
}

// WithConfigFiles overrides the watched lint configuration filenames.
func WithConfigFiles(names []string) Option {
	return func(m *Manager) { m.configFiles = names }
}

// WithUserNotifier sets the host callback for user-visible failure
// notifications, gated by each scope's notification policy.
func WithUserNotifier(n UserNotifier) Option {
	return func(m *Manager) { m.notifyUser = n }
}

// NewManager creates a Manager. Nothing runs until Start.
func NewManager(loader *config.Loader, provider interp.Provider, notifier *notify.Notifier, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		loader:      loader,
		provider:    provider,
		notifier:    notifier,
		log:         log.Named("session"),
		level:       zapcore.InfoLevel,
		configFiles: watcher.DefaultConfigFiles(),
		sessions:    make(map[string]*Session),
		newClient: func(inv lsp.Invocation, log *zap.Logger) client {
			return lsp.NewClient(inv, log)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the restart triggers, begins watching lint
// configuration files under every workspace root, and performs the
// initial start of each scope's server. Per-scope start failures are
// collected; the first one is returned after every scope has been
// attempted.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	sub := m.notifier.SubscribeKeys(config.RestartKeys(), func(ch notify.Change) {
		m.requestRestart(ch.Scope, "setting changed: "+ch.Key)
	})
	m.addDisposer(sub.Unsubscribe)

	if m.provider != nil {
		m.addDisposer(m.provider.OnDidChange(func(ev interp.Event) {
			m.requestRestart(ev.Scope, "interpreter changed")
		}))
	}

	workspaces := m.loader.Workspaces()
	if len(workspaces) == 0 {
		m.addSession("")
	}
	for _, ws := range workspaces {
		scope := ws.URI
		m.addSession(scope)

		handles, err := watcher.Watch(ws.Path, m.configFiles, func() {
			m.requestRestart(scope, "lint configuration file changed")
		}, m.log)
		if err != nil {
			m.log.Warn("watching lint configuration files failed",
				zap.String("workspace", ws.Path),
				zap.Error(err))
			continue
		}
		if !m.addWatchers(handles) {
			return ErrClosed
		}
	}

	var g errgroup.Group
	for _, s := range m.snapshotSessions() {
		s := s
		g.Go(func() error {
			if err := s.Restart(ctx); err != nil {
				return fmt.Errorf("scope %q: %w", s.scope, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Restart restarts the session for one scope, or every session when
// scope is empty. Unlike trigger-driven restarts this waits for the
// outcome.
func (m *Manager) Restart(ctx context.Context, scope string) error {
	sessions := m.sessionsFor(scope)
	if len(sessions) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error { return s.Restart(ctx) })
	}
	return g.Wait()
}

// Stop shuts down every session, disposes the watchers and trigger
// subscriptions, and marks the manager closed.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	watchers := m.watchers
	disposers := m.disposers
	m.watchers = nil
	m.disposers = nil
	m.mu.Unlock()

	var errs []error
	for _, h := range watchers {
		if err := h.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, dispose := range disposers {
		dispose()
	}
	for _, s := range m.snapshotSessions() {
		s.Close(ctx)
	}
	return errors.Join(errs...)
}

// Session returns the session for a scope, nil when none exists.
func (m *Manager) Session(scope string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[scope]
}

// --- internals ---

func (m *Manager) addSession(scope string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[scope]; ok {
		return s
	}
	log := m.log
	if scope != "" {
		log = log.With(zap.String("scope", scope))
	}
	s := &Session{scope: scope, mgr: m, log: log}
	m.sessions[scope] = s
	return s
}

func (m *Manager) snapshotSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// sessionsFor resolves a trigger scope to sessions: empty means every
// scope, anything else the exact match.
func (m *Manager) sessionsFor(scope string) []*Session {
	if scope == "" {
		return m.snapshotSessions()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[scope]; ok {
		return []*Session{s}
	}
	return nil
}

// requestRestart fires restarts asynchronously so trigger sources never
// block on a server handshake. Each session's queue coalesces bursts.
func (m *Manager) requestRestart(scope, reason string) {
	for _, s := range m.sessionsFor(scope) {
		s := s
		m.log.Info("restart requested",
			zap.String("scope", s.scope),
			zap.String("reason", reason))
		go func() {
			if err := s.Restart(context.Background()); err != nil {
				m.log.Error("restart failed",
					zap.String("scope", s.scope),
					zap.Error(err))
				m.reportFailure(s, err)
			}
		}()
	}
}

// addWatchers records watcher handles for disposal at Stop. A Stop
// racing with a slow Start snapshots m.watchers under the same lock, so
// handles arriving after close are disposed here instead of leaking.
func (m *Manager) addWatchers(handles []*watcher.Handle) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		for _, h := range handles {
			if err := h.Dispose(); err != nil {
				m.log.Warn("disposing late watcher failed", zap.Error(err))
			}
		}
		return false
	}
	m.watchers = append(m.watchers, handles...)
	m.mu.Unlock()
	return true
}

// reportFailure raises a user notification for a failed restart when
// the scope's policy allows any notifications at all.
func (m *Manager) reportFailure(s *Session, err error) {
	if m.notifyUser == nil {
		return
	}
	settings := s.Settings()
	if settings == nil || settings.ShowNotifications == config.NotifyOff {
		return
	}
	m.notifyUser(s.scope, "lint server restart failed: "+err.Error())
}

func (m *Manager) addDisposer(dispose func()) {
	m.mu.Lock()
	m.disposers = append(m.disposers, dispose)
	m.mu.Unlock()
}

func (m *Manager) resolveSettings(ctx context.Context, scope string) (*config.Settings, error) {
	if scope == "" {
		return m.loader.ResolveGlobal(ctx)
	}
	for _, ws := range m.loader.Workspaces() {
		if ws.URI == scope {
			return m.loader.Resolve(ctx, &ws)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

// workspaceSettings is one entry of the configuration payload sent to
// the lint server.
type workspaceSettings struct {
	Cwd               string                     `json:"cwd"`
	Workspace         string                     `json:"workspace"`
	Enabled           bool                       `json:"enabled"`
	Args              []string                   `json:"args"`
	Path              []string                   `json:"path"`
	Interpreter       []string                   `json:"interpreter"`
	Severity          map[string]config.Severity `json:"severity"`
	IgnorePatterns    []string                   `json:"ignorePatterns"`
	ImportStrategy    config.ImportStrategy      `json:"importStrategy"`
	ShowNotifications config.NotificationPolicy  `json:"showNotifications"`
	LintOnChange      bool                       `json:"lintOnChange"`
	ExtraPaths        []string                   `json:"extraPaths"`
}

// initializationOptions is the payload handed to the server at
// initialize and re-sent on configuration pushes.
type initializationOptions struct {
	Settings       []workspaceSettings `json:"settings"`
	GlobalSettings workspaceSettings   `json:"globalSettings"`
}

func payloadFor(s *config.Settings) workspaceSettings {
	return workspaceSettings{
		Cwd:               s.Cwd,
		Workspace:         s.WorkspaceKey,
		Enabled:           s.Enabled,
		Args:              s.Args,
		Path:              s.Path,
		Interpreter:       s.Interpreter,
		Severity:          s.Severity,
		IgnorePatterns:    s.IgnorePatterns,
		ImportStrategy:    s.ImportStrategy,
		ShowNotifications: s.ShowNotifications,
		LintOnChange:      s.LintOnChange,
		ExtraPaths:        s.ExtraPaths,
	}
}

// invocationFor builds the launch description for one scope's server.
// A tool path override is used verbatim; otherwise the bundled server
// runs via the interpreter. Resolved arguments are appended
// positionally after the command, in setting order.
func (m *Manager) invocationFor(ctx context.Context, s *config.Settings) (lsp.Invocation, error) {
	var argv []string
	switch {
	case len(s.Path) > 0:
		argv = append(argv, s.Path...)
	case len(s.Interpreter) > 0:
		if m.serverPath == "" {
			return lsp.Invocation{}, ErrNoServerPath
		}
		argv = append(argv, s.Interpreter...)
		argv = append(argv, m.serverPath)
	default:
		return lsp.Invocation{}, fmt.Errorf(
			"%w: set %q to an interpreter command or %q to a tool executable",
			ErrNoInterpreter, config.Namespace+".interpreter", config.Namespace+".path")
	}
	argv = append(argv, s.Args...)

	env := map[string]string{
		"LS_IMPORT_STRATEGY":   string(s.ImportStrategy),
		"LS_SHOW_NOTIFICATION": string(s.ShowNotifications),
	}
	if m.debugPath != "" {
		env["DEBUGPY_PATH"] = m.debugPath
	}

	global, err := m.loader.ResolveGlobal(ctx)
	if err != nil {
		return lsp.Invocation{}, fmt.Errorf("resolving global settings: %w", err)
	}

	opts := initializationOptions{
		Settings:       []workspaceSettings{payloadFor(s)},
		GlobalSettings: payloadFor(global),
	}

	var folders []lsp.WorkspaceFolder
	if s.WorkspaceKey != "" {
		name := s.WorkspaceKey
		for _, ws := range m.loader.Workspaces() {
			if ws.URI == s.WorkspaceKey {
				name = ws.Name
				break
			}
		}
		folders = []lsp.WorkspaceFolder{{
			URI:  lsp.DocumentURI(s.WorkspaceKey),
			Name: name,
		}}
	}

	return lsp.Invocation{
		Argv:                  argv,
		Dir:                   s.Cwd,
		Env:                   env,
		InitializationOptions: opts,
		WorkspaceFolders:      folders,
		Settings:              opts,
	}, nil
}

// publishDiagnostics forwards findings to the host callback.
func (m *Manager) publishDiagnostics(scope string, uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	if m.onDiags != nil {
		m.onDiags(scope, uri, diagnostics)
	}
}
