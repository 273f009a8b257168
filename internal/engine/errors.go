package engine

import "errors"

var (
	// ErrAlreadyRunning indicates Start was called on a running multiplexer.
	ErrAlreadyRunning = errors.New("multiplexer is already running")

	// ErrNotRunning indicates an operation requires a running multiplexer.
	ErrNotRunning = errors.New("multiplexer is not running")

	// ErrEventQueueFull indicates an event channel is at capacity.
	ErrEventQueueFull = errors.New("event queue is full")

	// ErrNilConn indicates Attach was called without a connection.
	ErrNilConn = errors.New("connection cannot be nil")

	// ErrConnNotFound indicates a send targeted an unknown connection.
	ErrConnNotFound = errors.New("connection not found")
)
