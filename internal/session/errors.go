package session

import "errors"

// Standard errors returned by the lifecycle manager.
var (
	// ErrNoInterpreter indicates a restart could not determine how to
	// launch the lint server.
	ErrNoInterpreter = errors.New("no interpreter available")

	// ErrNoServerPath indicates the bundled server entry point was not
	// configured.
	ErrNoServerPath = errors.New("no bundled server path configured")

	// ErrClosed indicates the session or manager has been shut down.
	ErrClosed = errors.New("session closed")

	// ErrAlreadyStarted indicates Start was called twice on a manager.
	ErrAlreadyStarted = errors.New("session manager already started")

	// ErrUnknownScope indicates no session exists for the given scope.
	ErrUnknownScope = errors.New("unknown workspace scope")
)
