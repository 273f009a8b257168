// Package transport accepts client connections over TCP and WebSocket and
// feeds them to the multiplexer. Both transports speak the same line
// protocol; only the framing differs.
package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"parley/pkg/interfaces"
	"parley/pkg/types"
)

// nextID is process-global so TCP and WebSocket connections share one ID
// space.
var nextID atomic.Uint64

// NextID allocates a connection identifier.
func NextID() types.ConnID {
	return types.ConnID(nextID.Add(1))
}

// TCPConn adapts a raw socket to the multiplexer's connection interface.
// Outbound lines are padded to fixed-size frames.
type TCPConn struct {
	id   types.ConnID
	conn net.Conn

	closeOnce sync.Once
	closeErr  error
}

var _ interfaces.Conn = (*TCPConn)(nil)

// NewTCPConn wraps an accepted socket.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{
		id:   NextID(),
		conn: conn,
	}
}

// ID returns the connection identifier.
func (c *TCPConn) ID() types.ConnID {
	return c.id
}

// Send writes one line as a zero-padded frame. Lines longer than the
// frame are truncated to it.
func (c *TCPConn) Send(line []byte) error {
	if _, err := c.conn.Write(types.PadFrame(line)); err != nil {
		return err
	}
	return nil
}

// Close shuts the socket down. Repeated calls return the first result.
func (c *TCPConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr reports the peer address.
func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
