package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"parley/internal/metrics"
	"parley/pkg/interfaces"
	"parley/pkg/types"
)

// TCPServer accepts chat clients on a plain IPv4 socket. Each connection
// gets one reader goroutine; everything else happens in the multiplexer.
type TCPServer struct {
	log      *zap.Logger
	sink     interfaces.Sink
	listener net.Listener
	wg       sync.WaitGroup
}

// NewTCPServer creates a server that feeds accepted connections into sink.
func NewTCPServer(log *zap.Logger, sink interfaces.Sink) *TCPServer {
	return &TCPServer{
		log:  log.Named("tcp"),
		sink: sink,
	}
}

// Listen binds the chat socket. The network is tcp4; the protocol has
// always been advertised on an IPv4 endpoint.
func (s *TCPServer) Listen(addr string) error {
	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.log.Info("listening", zap.Stringer("addr", listener.Addr()))
	return nil
}

// Addr reports the bound address. It is nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until the listener closes. Each accepted
// connection is attached to the sink and handed a read pump.
func (s *TCPServer) Serve() error {
	if s.listener == nil {
		return ErrNotListening
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		// Counted before the handoff so Close cannot slip past a
		// connection that is mid-attach.
		c := NewTCPConn(conn)
		s.wg.Add(1)
		if err := s.sink.Attach(context.Background(), c); err != nil {
			s.log.Warn("attach rejected",
				zap.Uint64("conn_id", uint64(c.ID())),
				zap.Error(err))
			c.Close()
			s.wg.Done()
			continue
		}

		go s.readPump(c)
	}
}

// Close stops accepting and waits for the read pumps to drain. The
// multiplexer must have been stopped first so the pumps see closed
// sockets and exit.
func (s *TCPServer) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

// readPump issues one bounded read per logical line. A frame-sized buffer
// is allocated per read because the multiplexer consumes lines
// asynchronously.
func (s *TCPServer) readPump(c *TCPConn) {
	defer s.wg.Done()
	defer c.Close()

	for {
		buf := make([]byte, types.FrameSize)
		n, err := c.conn.Read(buf)
		if n > 0 {
			metrics.FrameReceived()
			if derr := s.sink.Deliver(c.ID(), types.ClampLine(buf[:n])); derr != nil {
				s.log.Warn("line dropped",
					zap.Uint64("conn_id", uint64(c.ID())),
					zap.Error(derr))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("read ended",
					zap.Uint64("conn_id", uint64(c.ID())),
					zap.Error(err))
			}
			// Detach fails benignly when the multiplexer stopped first.
			if derr := s.sink.Detach(c.ID()); derr != nil {
				s.log.Debug("detach failed",
					zap.Uint64("conn_id", uint64(c.ID())),
					zap.Error(derr))
			}
			return
		}
	}
}
