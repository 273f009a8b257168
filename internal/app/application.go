// Package app assembles the chat service: credential database,
// multiplexer, TCP and WebSocket transports, and the admin HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parley/internal/api"
	"parley/internal/config"
	"parley/internal/credentials"
	"parley/internal/engine"
	"parley/internal/recency"
	"parley/internal/rooms"
	"parley/internal/transport"
	"parley/pkg/database"
)

// Application owns every long-lived component and their startup and
// shutdown order.
type Application struct {
	config *config.Config
	log    *zap.Logger

	db        *sql.DB
	eng       *engine.Engine
	tcpServer *transport.TCPServer
	wsHandler *transport.WSHandler

	httpServer   *http.Server
	httpListener net.Listener

	group errgroup.Group
}

// NewApplication builds the component graph. Initialization order:
// database, indexes, multiplexer, transports, admin server.
func NewApplication(cfg *config.Config, log *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}
	if err := database.EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure credential schema: %w", err)
	}

	eng := engine.New(log,
		recency.NewIndex(),
		rooms.NewRegistry(),
		credentials.NewStore(log, db))

	tcpServer := transport.NewTCPServer(log, eng)
	wsHandler := transport.NewWSHandler(log, eng)
	apiServer := api.NewServer(log, eng, db)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log.Named("app"),
		db:         db,
		eng:        eng,
		tcpServer:  tcpServer,
		wsHandler:  wsHandler,
		httpServer: httpServer,
	}, nil
}

// Start launches the multiplexer, binds both listeners, and begins
// serving. Binding happens synchronously so the bound addresses are
// known when Start returns.
func (a *Application) Start(ctx context.Context) error {
	if err := a.eng.Start(ctx); err != nil {
		return fmt.Errorf("start multiplexer: %w", err)
	}

	chatAddr := fmt.Sprintf("%s:%d", a.config.Chat.Host, a.config.Chat.Port)
	if err := a.tcpServer.Listen(chatAddr); err != nil {
		a.eng.Stop()
		return fmt.Errorf("bind chat listener: %w", err)
	}

	httpAddr := fmt.Sprintf("%s:%d", a.config.HTTP.Host, a.config.HTTP.Port)
	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		a.tcpServer.Close()
		a.eng.Stop()
		return fmt.Errorf("bind admin listener: %w", err)
	}
	a.httpListener = httpListener

	a.group.Go(a.tcpServer.Serve)
	a.group.Go(func() error {
		if err := a.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})

	a.log.Info("application started",
		zap.Stringer("chat_addr", a.tcpServer.Addr()),
		zap.Stringer("http_addr", httpListener.Addr()))
	return nil
}

// Wait blocks until both servers have exited and returns the first error.
func (a *Application) Wait() error {
	return a.group.Wait()
}

// Stop shuts everything down. Order matters: stop accepting HTTP, stop
// the multiplexer (which closes every client connection and lets the
// read pumps exit), drain the transports, then close the database.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Warn("admin server shutdown", zap.Error(err))
	}

	if err := a.eng.Stop(); err != nil && err != engine.ErrNotRunning {
		a.log.Warn("multiplexer shutdown", zap.Error(err))
	}

	if err := a.tcpServer.Close(); err != nil {
		a.log.Warn("chat listener close", zap.Error(err))
	}
	a.wsHandler.Wait()

	if err := a.group.Wait(); err != nil {
		a.log.Warn("server exit", zap.Error(err))
	}

	if err := a.db.Close(); err != nil {
		a.log.Warn("database close", zap.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

// ChatAddr reports the bound chat listener address, nil before Start.
func (a *Application) ChatAddr() net.Addr {
	return a.tcpServer.Addr()
}

// HTTPAddr reports the bound admin listener address, nil before Start.
func (a *Application) HTTPAddr() net.Addr {
	if a.httpListener == nil {
		return nil
	}
	return a.httpListener.Addr()
}
