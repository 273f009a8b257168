package interfaces

import (
	"context"

	"parley/pkg/types"
)

// Sink receives connection lifecycle events and inbound lines from the
// transports. The multiplexer engine is the only production implementation;
// transport tests substitute fakes.
type Sink interface {
	// Attach registers a new connection. A non-nil error means the
	// transport must close the connection and not read from it.
	Attach(ctx context.Context, conn Conn) error

	// Deliver hands one inbound logical line to the multiplexer for
	// processing on behalf of the identified connection.
	Deliver(id types.ConnID, line []byte) error

	// Detach removes a connection after its read loop has ended. The
	// sink closes the connection and unwinds all per-connection state.
	Detach(id types.ConnID) error
}
