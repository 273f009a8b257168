// Package integration exercises the assembled application over real
// sockets: TCP chat clients on one side, the admin HTTP endpoints on the
// other, with a SQLite database underneath.
package integration

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"parley/internal/app"
	"parley/internal/config"
	"parley/pkg/types"
)

// StartTestApplication boots the full application on ephemeral ports with
// its database at dbPath. The application is stopped when the test ends.
func StartTestApplication(t *testing.T, dbPath string) *app.Application {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Chat.Host = "127.0.0.1"
	cfg.Chat.Port = 0
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Database.Path = dbPath

	application, err := app.NewApplication(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start application: %v", err)
	}
	t.Cleanup(func() { StopTestApplication(t, application) })
	return application
}

// StopTestApplication shuts the application down. Stopping twice is
// harmless; the restart scenario stops its first instance mid-test.
func StopTestApplication(t *testing.T, application *app.Application) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Stop(ctx); err != nil {
		t.Errorf("Failed to stop application: %v", err)
	}
}

// ChatClient talks to the chat port the way nc(1) does: it writes bare
// newline-terminated lines and reads fixed-size reply frames.
type ChatClient struct {
	t    *testing.T
	conn net.Conn
}

// DialChat connects a new client to the application's chat listener.
func DialChat(t *testing.T, application *app.Application) *ChatClient {
	t.Helper()

	conn, err := net.Dial("tcp", application.ChatAddr().String())
	if err != nil {
		t.Fatalf("Failed to dial chat listener: %v", err)
	}
	c := &ChatClient{t: t, conn: conn}
	t.Cleanup(c.Close)
	return c
}

// SendLine writes one line exactly as given. Callers include the trailing
// newline; client traffic is not padded.
func (c *ChatClient) SendLine(line string) {
	c.t.Helper()

	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.t.Fatalf("Failed to send %q: %v", line, err)
	}
}

// ReadFrame reads one full outbound frame and returns its content with the
// zero padding stripped.
func (c *ChatClient) ReadFrame() string {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		c.t.Fatalf("Failed to set read deadline: %v", err)
	}
	buf := make([]byte, types.FrameSize)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		c.t.Fatalf("Failed to read frame: %v", err)
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// Close releases the client socket. Closing after the server already hung
// up is fine.
func (c *ChatClient) Close() {
	_ = c.conn.Close()
}
