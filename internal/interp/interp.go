// Package interp supplies the active interpreter command per workspace
// scope and raises change events when it switches.
//
// Interpreter discovery belongs to the host environment; this package
// only defines the consuming interface plus two implementations: a
// PATH-lookup fallback and a host-driven Static provider.
package interp

import (
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Event carries a new interpreter command and the scope it applies to.
// An empty Scope means every scope.
type Event struct {
	Command []string
	Scope   string
}

// Provider exposes the active interpreter for a scope.
type Provider interface {
	// Command returns the interpreter command for the scope, or an
	// empty sequence when none is available.
	Command(ctx context.Context, scope string) ([]string, error)

	// OnDidChange registers an observer for interpreter changes and
	// returns its dispose function. A disposed observer receives no
	// further events.
	OnDidChange(fn func(Event)) func()
}

// Emitter implements the OnDidChange half of Provider. Embed it and
// call Emit when the interpreter switches.
type Emitter struct {
	mu        sync.Mutex
	observers map[uint64]func(Event)
	nextID    uint64
}

// OnDidChange registers an observer, returning an idempotent dispose
// function.
func (e *Emitter) OnDidChange(fn func(Event)) func() {
	e.mu.Lock()
	if e.observers == nil {
		e.observers = make(map[uint64]func(Event))
	}
	id := e.nextID
	e.nextID++
	e.observers[id] = fn
	e.mu.Unlock()

	var once atomic.Bool
	return func() {
		if once.Swap(true) {
			return
		}
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// Emit delivers an event to all current observers.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	observers := make([]func(Event), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}

// PathProvider resolves the interpreter by looking up well-known
// executable names on PATH. It never raises change events on its own.
type PathProvider struct {
	Emitter
	names []string
}

// NewPathProvider creates a PATH-based provider. With no names it tries
// python3 then python.
func NewPathProvider(names ...string) *PathProvider {
	if len(names) == 0 {
		names = []string{"python3", "python"}
	}
	return &PathProvider{names: names}
}

// Command implements Provider.
func (p *PathProvider) Command(_ context.Context, _ string) ([]string, error) {
	for _, name := range p.names {
		if path, err := exec.LookPath(name); err == nil {
			return []string{path}, nil
		}
	}
	return nil, nil
}

// Static is a host-driven provider: the embedding environment pushes
// interpreter commands into it, per scope or globally.
type Static struct {
	Emitter

	mu      sync.RWMutex
	global  []string
	byScope map[string][]string
}

// NewStatic creates a Static provider with an optional global command.
func NewStatic(global ...string) *Static {
	return &Static{global: global, byScope: make(map[string][]string)}
}

// Command implements Provider.
func (s *Static) Command(_ context.Context, scope string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cmd, ok := s.byScope[scope]; ok {
		return append([]string{}, cmd...), nil
	}
	return append([]string{}, s.global...), nil
}

// Set updates the command for a scope (empty scope sets the global
// value) and notifies observers.
func (s *Static) Set(scope string, cmd []string) {
	s.mu.Lock()
	if scope == "" {
		s.global = append([]string{}, cmd...)
	} else {
		s.byScope[scope] = append([]string{}, cmd...)
	}
	s.mu.Unlock()

	s.Emit(Event{Command: append([]string{}, cmd...), Scope: scope})
}
