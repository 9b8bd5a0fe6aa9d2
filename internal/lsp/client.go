package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// State is the lifecycle state of a client.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Invocation describes how to launch the lint server process.
type Invocation struct {
	// Argv is the full command line: executable first, then arguments.
	// Order is preserved exactly; the tool is positional-sensitive.
	Argv []string

	// Dir is the working directory.
	Dir string

	// Env are additional environment variables layered over the
	// process environment.
	Env map[string]string

	// InitializationOptions are sent with the initialize request.
	InitializationOptions any

	// WorkspaceFolders announced to the server.
	WorkspaceFolders []WorkspaceFolder

	// Settings is the payload pushed via workspace/didChangeConfiguration
	// right after initialization, one entry per workspace.
	Settings any

	// RequestTimeout bounds individual requests. Zero means 30s.
	RequestTimeout time.Duration
}

// DiagnosticsHandler receives published findings for a document.
type DiagnosticsHandler func(uri DocumentURI, diagnostics []Diagnostic)

// StateObserver is notified of lifecycle transitions. Observers are for
// diagnostics/logging only; transitions are never acted on from here.
type StateObserver func(old, new State)

// Client owns one running lint server process: the subprocess, its
// stdio transport, and the subscriptions registered against it. Exactly
// one client per workspace scope is live at a time; replacing it goes
// through the session manager's restart path.
type Client struct {
	mu  sync.Mutex
	inv Invocation
	log *zap.Logger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	transport *Transport

	state       atomic.Int32
	serverInfo  *InitializeServerInfo
	diagHandler DiagnosticsHandler

	obsMu     sync.Mutex
	observers map[uint64]StateObserver
	nextObsID uint64

	diagMu      sync.RWMutex
	diagnostics map[DocumentURI][]Diagnostic

	ctx    context.Context
	cancel context.CancelFunc
	exitCh chan error
}

// NewClient creates a client for the given invocation. The process is
// not started until Start.
func NewClient(inv Invocation, log *zap.Logger) *Client {
	if inv.RequestTimeout == 0 {
		inv.RequestTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		inv:         inv,
		log:         log.Named("client"),
		observers:   make(map[uint64]StateObserver),
		diagnostics: make(map[DocumentURI][]Diagnostic),
		exitCh:      make(chan error, 1),
	}
}

// Start launches the process and performs the initialize handshake,
// then pushes the workspace settings payload. On failure the process is
// torn down and the client returns to stopped.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateStopped {
		return ErrAlreadyStarted
	}
	if len(c.inv.Argv) == 0 {
		return ErrNoCommand
	}

	c.setState(StateStarting)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.startProcess(); err != nil {
		c.setState(StateStopped)
		return err
	}

	c.transport = NewTransport(c.stdout, c.stdin, c.log)
	c.registerHandlers()
	c.transport.Start(c.ctx)

	// Stderr must be drained to completion before Wait: Wait closes the
	// pipes, and a crashing server's last words arrive on stderr.
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		c.drainStderr()
	}()
	go c.monitorProcess(stderrDone)

	if err := c.initialize(ctx); err != nil {
		c.teardown()
		c.setState(StateStopped)
		return fmt.Errorf("initialize: %w", err)
	}

	c.setState(StateRunning)
	return nil
}

// Stop shuts the server down gracefully and releases the process. It
// is safe to call on an already stopped client.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateStopped {
		return nil
	}

	if c.transport != nil && !c.transport.IsClosed() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = c.transport.Call(shutdownCtx, "shutdown", nil, nil)
		_ = c.transport.Notify("exit", nil)
		cancel()
	}

	c.teardown()
	c.setState(StateStopped)
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// ServerInfo returns the server identification from initialize, nil
// before a successful handshake.
func (c *Client) ServerInfo() *InitializeServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// OnDiagnostics sets the handler invoked for published findings.
func (c *Client) OnDiagnostics(h DiagnosticsHandler) {
	c.diagMu.Lock()
	c.diagHandler = h
	c.diagMu.Unlock()
}

// OnStateChange registers a lifecycle observer and returns its dispose
// function. Disposal is idempotent.
func (c *Client) OnStateChange(obs StateObserver) func() {
	c.obsMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = obs
	c.obsMu.Unlock()

	var once atomic.Bool
	return func() {
		if once.Swap(true) {
			return
		}
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// SetTrace sets the server's trace verbosity via $/setTrace.
func (c *Client) SetTrace(value TraceValue) error {
	if c.State() != StateRunning {
		return ErrNotStarted
	}
	return c.transport.Notify("$/setTrace", SetTraceParams{Value: value})
}

// PushSettings re-sends the configuration payload to the running server.
func (c *Client) PushSettings(settings any) error {
	if c.State() != StateRunning {
		return ErrNotStarted
	}
	return c.transport.Notify("workspace/didChangeConfiguration",
		DidChangeConfigurationParams{Settings: settings})
}

// Diagnostics returns the latest published findings for a document.
func (c *Client) Diagnostics(uri DocumentURI) []Diagnostic {
	c.diagMu.RLock()
	defer c.diagMu.RUnlock()
	return c.diagnostics[uri]
}

// Exited reports process termination; it receives at most one value.
func (c *Client) Exited() <-chan error {
	return c.exitCh
}

// --- internals ---

func (c *Client) startProcess() error {
	cmd := exec.CommandContext(c.ctx, c.inv.Argv[0], c.inv.Argv[1:]...)
	cmd.Dir = c.inv.Dir
	cmd.Env = os.Environ()
	for k, v := range c.inv.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("start %s: %w", c.inv.Argv[0], err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.stderr = stderr
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	var rootURI DocumentURI
	if len(c.inv.WorkspaceFolders) > 0 {
		rootURI = c.inv.WorkspaceFolders[0].URI
	}

	params := InitializeParams{
		ProcessID:             os.Getpid(),
		RootURI:               rootURI,
		Capabilities:          clientCapabilities(),
		InitializationOptions: c.inv.InitializationOptions,
		WorkspaceFolders:      c.inv.WorkspaceFolders,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.inv.RequestTimeout)
	defer cancel()

	var result InitializeResult
	if err := c.transport.Call(callCtx, "initialize", params, &result); err != nil {
		return err
	}
	c.serverInfo = result.ServerInfo

	if err := c.transport.Notify("initialized", InitializedParams{}); err != nil {
		return err
	}

	if c.inv.Settings != nil {
		if err := c.transport.Notify("workspace/didChangeConfiguration",
			DidChangeConfigurationParams{Settings: c.inv.Settings}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) registerHandlers() {
	c.transport.OnNotification("textDocument/publishDiagnostics", func(_ string, params json.RawMessage) {
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.log.Debug("bad publishDiagnostics payload", zap.Error(err))
			return
		}

		c.diagMu.Lock()
		if len(p.Diagnostics) == 0 {
			delete(c.diagnostics, p.URI)
		} else {
			c.diagnostics[p.URI] = p.Diagnostics
		}
		handler := c.diagHandler
		c.diagMu.Unlock()

		if handler != nil {
			handler(p.URI, p.Diagnostics)
		}
	})

	c.transport.OnNotification("window/logMessage", func(_ string, params json.RawMessage) {
		var p LogMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		switch p.Type {
		case MessageError:
			c.log.Error(p.Message)
		case MessageWarning:
			c.log.Warn(p.Message)
		case MessageInfo:
			c.log.Info(p.Message)
		default:
			c.log.Debug(p.Message)
		}
	})
}

func (c *Client) monitorProcess(stderrDone <-chan struct{}) {
	if c.cmd == nil {
		return
	}
	<-stderrDone
	err := c.cmd.Wait()
	select {
	case c.exitCh <- err:
	default:
	}
}

// drainStderr forwards the tool's stderr to the log so crashes leave a
// trace.
func (c *Client) drainStderr() {
	if c.stderr == nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := c.stderr.Read(buf)
		if n > 0 {
			c.log.Debug("server stderr", zap.ByteString("output", buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) teardown() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.transport != nil {
		c.transport.Close()
	}
	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.stdout != nil {
		c.stdout.Close()
	}
	if c.stderr != nil {
		c.stderr.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func (c *Client) setState(next State) {
	old := State(c.state.Swap(int32(next)))
	if old == next {
		return
	}

	c.obsMu.Lock()
	observers := make([]StateObserver, 0, len(c.observers))
	for _, obs := range c.observers {
		observers = append(observers, obs)
	}
	c.obsMu.Unlock()

	for _, obs := range observers {
		obs(old, next)
	}
}

// TraceForLevel maps a log level to the matching trace verbosity: debug
// traces verbosely, info traces messages, everything quieter is off.
func TraceForLevel(level zapcore.Level) TraceValue {
	switch {
	case level <= zapcore.DebugLevel:
		return TraceVerbose
	case level == zapcore.InfoLevel:
		return TraceMessages
	default:
		return TraceOff
	}
}
