package lsp

import "errors"

// Standard errors returned by the lint server client.
var (
	// ErrNotStarted indicates the client has no running server.
	ErrNotStarted = errors.New("lint server not started")

	// ErrAlreadyStarted indicates Start was called on a live client.
	ErrAlreadyStarted = errors.New("lint server already started")

	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("lint server transport shut down")

	// ErrNoCommand indicates the invocation has an empty command line.
	ErrNoCommand = errors.New("empty lint server command")
)
