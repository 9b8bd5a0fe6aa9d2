package lsp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestClient_StartEmptyCommand(t *testing.T) {
	c := NewClient(Invocation{}, nil)
	if err := c.Start(context.Background()); !errors.Is(err, ErrNoCommand) {
		t.Errorf("Start() = %v, want ErrNoCommand", err)
	}
	if c.State() != StateStopped {
		t.Errorf("state = %v, want stopped after failed start", c.State())
	}
}

func TestClient_RequestsBeforeStart(t *testing.T) {
	c := NewClient(Invocation{Argv: []string{"true"}}, nil)

	if err := c.SetTrace(TraceVerbose); !errors.Is(err, ErrNotStarted) {
		t.Errorf("SetTrace() = %v, want ErrNotStarted", err)
	}
	if err := c.PushSettings(nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PushSettings() = %v, want ErrNotStarted", err)
	}
}

func TestClient_StopWhenStoppedIsNoop(t *testing.T) {
	c := NewClient(Invocation{Argv: []string{"true"}}, nil)
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on stopped client = %v", err)
	}
}

func TestClient_StateObserverDispose(t *testing.T) {
	c := NewClient(Invocation{Argv: []string{"true"}}, nil)

	var transitions []State
	dispose := c.OnStateChange(func(_, next State) {
		transitions = append(transitions, next)
	})

	c.setState(StateStarting)
	dispose()
	dispose() // idempotent
	c.setState(StateStopped)

	if len(transitions) != 1 || transitions[0] != StateStarting {
		t.Errorf("transitions = %v, want [starting]", transitions)
	}
}

func TestClient_SetStateSkipsNoopTransition(t *testing.T) {
	c := NewClient(Invocation{Argv: []string{"true"}}, nil)

	calls := 0
	defer c.OnStateChange(func(_, _ State) { calls++ })()

	c.setState(StateStopped) // already stopped
	if calls != 0 {
		t.Errorf("observer called %d times for no-op transition", calls)
	}
}

func TestClient_CrashStderrIsLogged(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	c := NewClient(Invocation{
		Argv:           []string{"sh", "-c", "echo boom >&2; exit 1"},
		RequestTimeout: 200 * time.Millisecond,
	}, zap.New(core))

	// The process is not a language server, so the handshake fails; the
	// stderr it wrote on the way down must still reach the log.
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded against a crashing process")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, entry := range observed.All() {
			for _, f := range entry.Context {
				if s, ok := f.Interface.([]byte); ok && strings.Contains(string(s), "boom") {
					return
				}
				if strings.Contains(f.String, "boom") {
					return
				}
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("crashing process stderr never reached the log")
}

func TestClient_ExitReported(t *testing.T) {
	c := NewClient(Invocation{
		Argv:           []string{"sh", "-c", "exit 3"},
		RequestTimeout: 200 * time.Millisecond,
	}, nil)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded against an exiting process")
	}

	select {
	case err := <-c.Exited():
		if err == nil {
			t.Error("Exited() reported nil for non-zero exit")
		}
	case <-time.After(2 * time.Second):
		t.Error("process exit never reported")
	}
}

func TestTraceForLevel(t *testing.T) {
	tests := []struct {
		level zapcore.Level
		want  TraceValue
	}{
		{zapcore.DebugLevel, TraceVerbose},
		{zapcore.InfoLevel, TraceMessages},
		{zapcore.WarnLevel, TraceOff},
		{zapcore.ErrorLevel, TraceOff},
	}
	for _, tt := range tests {
		if got := TraceForLevel(tt.level); got != tt.want {
			t.Errorf("TraceForLevel(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestFilePathURIRoundTrip(t *testing.T) {
	path := "/work/app/src/main.py"
	uri := FilePathToURI(path)
	if uri != "file:///work/app/src/main.py" {
		t.Errorf("FilePathToURI() = %q", uri)
	}
	if got := URIToFilePath(uri); got != path {
		t.Errorf("URIToFilePath() = %q, want %q", got, path)
	}
}
