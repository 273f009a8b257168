package transport

import "errors"

var (
	// ErrNotListening indicates Serve was called before Listen.
	ErrNotListening = errors.New("server is not listening")

	// ErrConnClosed indicates a send on a closed connection.
	ErrConnClosed = errors.New("connection is closed")

	// ErrSendTimeout indicates a send could not be queued in time.
	ErrSendTimeout = errors.New("send timeout")
)
