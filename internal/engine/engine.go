// Package engine multiplexes all client activity onto one goroutine. The
// transports feed it attach, line, and detach events over buffered
// channels; the run loop applies them to the state indexes in arrival
// order, so the indexes themselves need no locking.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"parley/internal/dispatch"
	"parley/internal/metrics"
	"parley/pkg/interfaces"
	"parley/pkg/types"
)

const (
	// lineBuffer absorbs bursts of inbound chat lines.
	lineBuffer = 1000
	// controlBuffer sizes the attach and detach queues.
	controlBuffer = 100
)

type lineEvent struct {
	id   types.ConnID
	line []byte
}

type attachRequest struct {
	conn   interfaces.Conn
	result chan error
}

type statsRequest struct {
	result chan types.Stats
}

// Engine owns the connection table and the three state indexes. All
// mutation happens on the run goroutine.
type Engine struct {
	log *zap.Logger

	lineCh     chan lineEvent
	attachCh   chan attachRequest
	detachCh   chan types.ConnID
	statsCh    chan statsRequest
	shutdownCh chan struct{}
	doneCh     chan struct{}

	conns   map[types.ConnID]interfaces.Conn
	recency interfaces.RecencyIndex
	rooms   interfaces.RoomRegistry
	creds   interfaces.CredentialStore

	dispatcher *dispatch.Dispatcher

	running bool
	mu      sync.RWMutex
}

var _ interfaces.Sink = (*Engine)(nil)

// New creates a multiplexer over the given state indexes. The engine
// becomes their sole user once started.
func New(log *zap.Logger, recencyIdx interfaces.RecencyIndex, roomRegistry interfaces.RoomRegistry, credStore interfaces.CredentialStore) *Engine {
	e := &Engine{
		log:     log.Named("engine"),
		conns:   make(map[types.ConnID]interfaces.Conn),
		recency: recencyIdx,
		rooms:   roomRegistry,
		creds:   credStore,
	}
	e.dispatcher = dispatch.NewDispatcher(log, roomRegistry, credStore, loopSender{e})
	return e
}

// Start launches the run loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	// Fresh queues per run: an event enqueued while the previous loop was
	// shutting down must not surface in this one.
	e.lineCh = make(chan lineEvent, lineBuffer)
	e.attachCh = make(chan attachRequest, controlBuffer)
	e.detachCh = make(chan types.ConnID, controlBuffer)
	e.statsCh = make(chan statsRequest)
	e.shutdownCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.running = true

	go e.run(ctx)

	e.log.Info("multiplexer started")
	return nil
}

// Stop shuts the run loop down and closes every attached connection. It
// returns once the loop has exited.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	close(e.shutdownCh)
	done := e.doneCh
	e.mu.Unlock()

	<-done
	e.log.Info("multiplexer stopped")
	return nil
}

// Attach registers a connection and waits for the loop to confirm. On a
// non-nil error the caller keeps ownership of the connection.
func (e *Engine) Attach(ctx context.Context, conn interfaces.Conn) error {
	if conn == nil {
		return ErrNilConn
	}

	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return ErrNotRunning
	}
	attachCh, shutdownCh, doneCh := e.attachCh, e.shutdownCh, e.doneCh
	e.mu.RUnlock()

	req := attachRequest{conn: conn, result: make(chan error, 1)}
	select {
	case attachCh <- req:
	case <-shutdownCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-doneCh:
		// The loop may have answered just before exiting.
		select {
		case err := <-req.result:
			return err
		default:
			return ErrNotRunning
		}
	}
}

// Deliver queues one inbound line. The engine takes ownership of the
// slice; callers must not modify it afterwards.
func (e *Engine) Deliver(id types.ConnID, line []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.running {
		return ErrNotRunning
	}

	select {
	case e.lineCh <- lineEvent{id: id, line: line}:
		return nil
	default:
		return ErrEventQueueFull
	}
}

// Detach queues the teardown of a connection, waiting for queue space if
// it must. Unlike a dropped line, a dropped detach would leave the
// connection in every index forever, and the caller is a read pump with
// nothing left to do, so blocking here is safe.
func (e *Engine) Detach(id types.ConnID) error {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return ErrNotRunning
	}
	detachCh, shutdownCh := e.detachCh, e.shutdownCh
	e.mu.RUnlock()

	select {
	case detachCh <- id:
		return nil
	case <-shutdownCh:
		// The run loop closes every connection on shutdown.
		return ErrNotRunning
	}
}

// Stats asks the run loop for a state snapshot.
func (e *Engine) Stats(ctx context.Context) (types.Stats, error) {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return types.Stats{}, ErrNotRunning
	}
	statsCh, shutdownCh, doneCh := e.statsCh, e.shutdownCh, e.doneCh
	e.mu.RUnlock()

	req := statsRequest{result: make(chan types.Stats, 1)}
	select {
	case statsCh <- req:
	case <-shutdownCh:
		return types.Stats{}, ErrNotRunning
	case <-ctx.Done():
		return types.Stats{}, ctx.Err()
	}

	select {
	case stats := <-req.result:
		return stats, nil
	case <-doneCh:
		return types.Stats{}, ErrNotRunning
	case <-ctx.Done():
		return types.Stats{}, ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer func() {
		for id, conn := range e.conns {
			if err := conn.Close(); err != nil {
				e.log.Warn("close connection",
					zap.Uint64("conn_id", uint64(id)),
					zap.Error(err))
			}
			delete(e.conns, id)
			metrics.ConnectionClosed()
		}
		close(e.doneCh)
	}()

	for {
		select {
		case req := <-e.attachCh:
			req.result <- e.handleAttach(req.conn)
		case ev := <-e.lineCh:
			e.handleLine(ev.id, ev.line)
		case id := <-e.detachCh:
			e.handleDetach(id)
		case req := <-e.statsCh:
			req.result <- e.snapshot()
		case <-e.shutdownCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleAttach registers a connection with all three indexes. Order
// matters: rooms, then recency, then credentials, unwound in reverse on
// failure so no index is left with a half-registered connection.
func (e *Engine) handleAttach(conn interfaces.Conn) error {
	id := conn.ID()
	if _, exists := e.conns[id]; exists {
		return interfaces.ErrDuplicateConnection
	}

	if err := e.rooms.AddConnection(id); err != nil {
		return fmt.Errorf("room registration: %w", err)
	}
	if err := e.recency.Add(id); err != nil {
		e.unwind(id, false)
		return fmt.Errorf("recency registration: %w", err)
	}
	if err := e.creds.AddConnection(id); err != nil {
		e.unwind(id, true)
		return fmt.Errorf("credential registration: %w", err)
	}

	e.conns[id] = conn
	metrics.ConnectionOpened()
	e.log.Info("connection attached",
		zap.Uint64("conn_id", uint64(id)),
		zap.Stringer("remote", conn.RemoteAddr()))
	return nil
}

func (e *Engine) unwind(id types.ConnID, recencyAdded bool) {
	if recencyAdded {
		if err := e.recency.Remove(id); err != nil {
			e.log.Error("unwind recency",
				zap.Uint64("conn_id", uint64(id)),
				zap.Error(err))
		}
	}
	if err := e.rooms.RemoveConnection(id); err != nil {
		e.log.Error("unwind rooms",
			zap.Uint64("conn_id", uint64(id)),
			zap.Error(err))
	}
}

func (e *Engine) handleLine(id types.ConnID, line []byte) {
	if _, exists := e.conns[id]; !exists {
		// A detach can overtake lines still queued for the connection.
		e.log.Debug("line for unknown connection", zap.Uint64("conn_id", uint64(id)))
		return
	}

	e.log.Debug("line received",
		zap.Uint64("conn_id", uint64(id)),
		zap.ByteString("line", line))

	e.dispatcher.Dispatch(id, line)

	if err := e.recency.Touch(id); err != nil {
		e.log.Error("recency touch",
			zap.Uint64("conn_id", uint64(id)),
			zap.Error(err))
	}
	metrics.SetActiveRooms(e.rooms.Rooms())
}

// handleDetach tears a connection down: close the handle first, then
// deregister from recency, rooms, and credentials. Room members get no
// departure notice.
func (e *Engine) handleDetach(id types.ConnID) {
	conn, exists := e.conns[id]
	if !exists {
		return
	}
	delete(e.conns, id)

	if err := conn.Close(); err != nil {
		e.log.Warn("close connection",
			zap.Uint64("conn_id", uint64(id)),
			zap.Error(err))
	}
	if err := e.recency.Remove(id); err != nil {
		e.log.Error("deregister recency",
			zap.Uint64("conn_id", uint64(id)),
			zap.Error(err))
	}
	if err := e.rooms.RemoveConnection(id); err != nil {
		e.log.Error("deregister rooms",
			zap.Uint64("conn_id", uint64(id)),
			zap.Error(err))
	}
	if err := e.creds.RemoveConnection(id); err != nil {
		e.log.Error("deregister credentials",
			zap.Uint64("conn_id", uint64(id)),
			zap.Error(err))
	}

	metrics.ConnectionClosed()
	metrics.SetActiveRooms(e.rooms.Rooms())
	e.log.Info("connection detached", zap.Uint64("conn_id", uint64(id)))
}

func (e *Engine) snapshot() types.Stats {
	stats := types.Stats{
		Connections: len(e.conns),
		Rooms:       e.rooms.Rooms(),
		LoggedIn:    e.creds.LoggedIn(),
	}
	if oldest, ok := e.recency.Oldest(); ok {
		stats.Oldest = &oldest
	}
	return stats
}

// loopSender resolves connection IDs against the engine's table. Only the
// run goroutine uses it, via the dispatcher.
type loopSender struct {
	e *Engine
}

func (s loopSender) Send(id types.ConnID, line []byte) error {
	conn, exists := s.e.conns[id]
	if !exists {
		return ErrConnNotFound
	}
	return conn.Send(line)
}
