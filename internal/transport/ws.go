package transport

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"parley/internal/metrics"
	"parley/pkg/interfaces"
	"parley/pkg/types"
)

const (
	// writeWait bounds both queueing a line and writing it out.
	writeWait = 5 * time.Second
	// readTimeout disconnects peers that stop answering pings.
	readTimeout = 60 * time.Second
	// pingInterval paces the heartbeat inside the read deadline.
	pingInterval = 30 * time.Second
	// writeBuffer absorbs fan-out bursts per connection.
	writeBuffer = 100
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origins are not restricted; deployments front this with a proxy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// WSConn adapts a WebSocket session to the multiplexer's connection
// interface. Lines travel as text messages without frame padding; the
// message boundary is the frame.
type WSConn struct {
	id   types.ConnID
	conn *websocket.Conn

	writeCh chan []byte
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

var _ interfaces.Conn = (*WSConn)(nil)

// NewWSConn wraps an upgraded WebSocket connection and starts its writer.
func NewWSConn(conn *websocket.Conn) *WSConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &WSConn{
		id:      NextID(),
		conn:    conn,
		writeCh: make(chan []byte, writeBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single goroutine allowed to write data frames, which
// keeps the websocket library's one-writer rule.
func (c *WSConn) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ID returns the connection identifier.
func (c *WSConn) ID() types.ConnID {
	return c.id
}

// Send queues one line for the writer goroutine.
func (c *WSConn) Send(line []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	// The queue outlives the caller's buffer.
	data := make([]byte, len(line))
	copy(data, line)

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeWait):
		return ErrSendTimeout
	case <-c.ctx.Done():
		return ErrConnClosed
	}
}

// Close stops the writer and closes the session. Repeated calls return
// the first result.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr reports the peer address.
func (c *WSConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WSHandler upgrades HTTP requests and feeds the resulting connections
// into the multiplexer.
type WSHandler struct {
	log  *zap.Logger
	sink interfaces.Sink
	wg   sync.WaitGroup
}

// NewWSHandler creates a handler that attaches upgraded connections to sink.
func NewWSHandler(log *zap.Logger, sink interfaces.Sink) *WSHandler {
	return &WSHandler{
		log:  log.Named("ws"),
		sink: sink,
	}
}

// HandleWebSocket upgrades the request and registers the connection.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	// Counted before the handoff so Wait cannot slip past a connection
	// that is mid-attach.
	c := NewWSConn(conn)
	h.wg.Add(1)
	if err := h.sink.Attach(r.Context(), c); err != nil {
		h.log.Warn("attach rejected",
			zap.Uint64("conn_id", uint64(c.ID())),
			zap.Error(err))
		c.Close()
		h.wg.Done()
		return
	}

	go h.readPump(c)
}

// Wait blocks until every read pump has exited. The multiplexer must have
// been stopped first so the pumps see closed sessions.
func (h *WSHandler) Wait() {
	h.wg.Wait()
}

func (h *WSHandler) readPump(c *WSConn) {
	defer h.wg.Done()
	defer func() {
		// Detach fails benignly when the multiplexer stopped first.
		if err := h.sink.Detach(c.ID()); err != nil {
			h.log.Debug("detach failed",
				zap.Uint64("conn_id", uint64(c.ID())),
				zap.Error(err))
		}
		c.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("session closed",
					zap.Uint64("conn_id", uint64(c.ID())),
					zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		metrics.FrameReceived()
		if derr := h.sink.Deliver(c.ID(), types.ClampLine(data)); derr != nil {
			h.log.Warn("line dropped",
				zap.Uint64("conn_id", uint64(c.ID())),
				zap.Error(derr))
		}
	}
}
