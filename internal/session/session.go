package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/lintstorm/internal/config"
	"github.com/dshills/lintstorm/internal/lsp"
)

// client is the slice of the lsp.Client surface a session drives.
type client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() lsp.State
	OnStateChange(lsp.StateObserver) func()
	OnDiagnostics(lsp.DiagnosticsHandler)
	SetTrace(lsp.TraceValue) error
}

// Session owns the lint server client for one workspace scope. The
// scope is the workspace URI, or empty for the global session.
type Session struct {
	scope string
	mgr   *Manager
	log   *zap.Logger

	mu       sync.Mutex
	client   client
	subs     []func()
	settings *config.Settings

	restarting bool
	pending    bool
	closed     bool
}

// Scope returns the workspace URI this session serves, empty for the
// global session.
func (s *Session) Scope() string {
	return s.scope
}

// Settings returns the most recently resolved settings record, nil
// before the first restart.
func (s *Session) Settings() *config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// State returns the lifecycle state of the current client, stopped when
// there is none.
func (s *Session) State() lsp.State {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return lsp.StateStopped
	}
	return c.State()
}

// Restart resolves settings afresh and replaces the running client.
// Concurrent calls coalesce: while a restart is in flight additional
// requests collapse into a single rerun performed after it finishes,
// so the last requested state wins. Coalesced callers return nil
// immediately; the in-flight caller returns the outcome of the final
// rerun.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.restarting {
		s.pending = true
		s.mu.Unlock()
		return nil
	}
	s.restarting = true
	s.mu.Unlock()

	var err error
	for {
		err = s.restartOnce(ctx)

		s.mu.Lock()
		if s.pending && !s.closed {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.restarting = false
		s.mu.Unlock()
		return err
	}
}

// Close stops the client, disposes its subscriptions, and marks the
// session unusable. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopCurrent(ctx)
}

// restartOnce performs one full stop/resolve/start cycle. The previous
// client is stopped and its tracked subscriptions disposed before the
// replacement is constructed; an aborted restart leaves the session
// with no client at all.
func (s *Session) restartOnce(ctx context.Context) error {
	s.stopCurrent(ctx)

	settings, err := s.mgr.resolveSettings(ctx, s.scope)
	if err != nil {
		return fmt.Errorf("resolving settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	if !settings.Enabled {
		s.log.Info("linting disabled, server left stopped")
		return nil
	}

	inv, err := s.mgr.invocationFor(ctx, settings)
	if err != nil {
		return err
	}

	c := s.mgr.newClient(inv, s.log)
	disposeState := c.OnStateChange(func(old, next lsp.State) {
		s.log.Info("lint server state changed",
			zap.Stringer("from", old),
			zap.Stringer("to", next))
	})
	c.OnDiagnostics(s.forwardDiagnostics)

	if err := c.Start(ctx); err != nil {
		disposeState()
		_ = c.Stop(ctx)
		return fmt.Errorf("starting lint server: %w", err)
	}
	if err := c.SetTrace(lsp.TraceForLevel(s.mgr.level)); err != nil {
		s.log.Debug("setting trace verbosity failed", zap.Error(err))
	}

	s.mu.Lock()
	s.client = c
	s.subs = append(s.subs, disposeState)
	s.mu.Unlock()
	return nil
}

// stopCurrent releases the current client and every subscription
// tracked against it.
func (s *Session) stopCurrent(ctx context.Context) {
	s.mu.Lock()
	c := s.client
	subs := s.subs
	s.client = nil
	s.subs = nil
	s.mu.Unlock()

	if c != nil {
		if err := c.Stop(ctx); err != nil {
			s.log.Warn("stopping lint server failed", zap.Error(err))
		}
	}
	for _, dispose := range subs {
		dispose()
	}
}

// diagnosticData is the tool-specific payload attached to a diagnostic.
type diagnosticData struct {
	Symbol   string `json:"symbol"`
	Category string `json:"category"`
}

// forwardDiagnostics applies the scope's severity overrides and hands
// the findings to the host.
func (s *Session) forwardDiagnostics(uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	if settings != nil {
		for i := range diagnostics {
			var data diagnosticData
			if len(diagnostics[i].Data) > 0 {
				_ = json.Unmarshal(diagnostics[i].Data, &data)
			}
			sev := config.SeverityFor(settings.Severity,
				data.Symbol, diagnostics[i].Code, data.Category)
			diagnostics[i].Severity = wireSeverity(sev)
		}
	}

	s.mgr.publishDiagnostics(s.scope, uri, diagnostics)
}

// wireSeverity maps a configured severity to its LSP wire value.
func wireSeverity(sev config.Severity) lsp.DiagnosticSeverity {
	switch sev {
	case config.SeverityError:
		return lsp.SeverityError
	case config.SeverityWarning:
		return lsp.SeverityWarning
	case config.SeverityInformation:
		return lsp.SeverityInformation
	case config.SeverityHint:
		return lsp.SeverityHint
	default:
		return lsp.SeverityError
	}
}
