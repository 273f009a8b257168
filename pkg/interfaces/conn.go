package interfaces

import (
	"net"

	"parley/pkg/types"
)

// Conn abstracts one live client connection for the multiplexer.
// Implementations exist for raw TCP sockets and WebSocket sessions.
type Conn interface {
	// ID returns the connection identifier assigned at accept time.
	ID() types.ConnID

	// Send delivers one logical line to the client. Implementations own
	// the framing: the TCP transport pads lines to fixed-size frames,
	// the WebSocket transport sends them as text messages.
	Send(line []byte) error

	// Close tears down the underlying connection. It must be safe to
	// call multiple times.
	Close() error

	// RemoteAddr reports the client address for logging.
	RemoteAddr() net.Addr
}
