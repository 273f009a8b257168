package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"parley/pkg/types"
)

func startWSServer(t *testing.T, sink *fakeSink) (*WSHandler, *httptest.Server) {
	t.Helper()

	handler := NewWSHandler(zap.NewNop(), sink)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		handler.Wait()
		server.Close()
	})
	return handler, server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := strings.Replace(server.URL, "http", "ws", 1) + "/ws"
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return client
}

func TestWSHandler_AttachDeliverDetach(t *testing.T) {
	sink := newFakeSink()
	_, server := startWSServer(t, sink)

	client := dialWS(t, server)
	id := recvID(t, sink.attached, "attach")

	if err := client.WriteMessage(websocket.TextMessage, []byte("/host alpha\n")); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
	got := recvLine(t, sink.lines)
	if got.id != id {
		t.Errorf("Expected line from connection %d, got %d", id, got.id)
	}
	if got.line != "/host alpha\n" {
		t.Errorf("Expected %q, got %q", "/host alpha\n", got.line)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Failed to close client: %v", err)
	}
	if detached := recvID(t, sink.detached, "detach"); detached != id {
		t.Errorf("Expected detach of connection %d, got %d", id, detached)
	}
}

func TestWSHandler_SendWithoutPadding(t *testing.T) {
	sink := newFakeSink()
	_, server := startWSServer(t, sink)

	client := dialWS(t, server)
	defer client.Close()
	id := recvID(t, sink.attached, "attach")

	conn := sink.get(id)
	if conn == nil {
		t.Fatal("Expected attached connection in sink")
	}
	if err := conn.Send([]byte("alice: hi\n")); err != nil {
		t.Fatalf("Failed to send line: %v", err)
	}

	if err := client.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	messageType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Errorf("Expected a text message, got type %d", messageType)
	}
	// WebSocket framing carries the bare line, no zero padding.
	if string(data) != "alice: hi\n" {
		t.Errorf("Expected %q, got %q", "alice: hi\n", data)
	}
}

func TestWSHandler_IgnoresBinaryMessages(t *testing.T) {
	sink := newFakeSink()
	_, server := startWSServer(t, sink)

	client := dialWS(t, server)
	defer client.Close()
	id := recvID(t, sink.attached, "attach")

	if err := client.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Failed to write binary message: %v", err)
	}
	if err := client.WriteMessage(websocket.TextMessage, []byte("hello\n")); err != nil {
		t.Fatalf("Failed to write text message: %v", err)
	}

	got := recvLine(t, sink.lines)
	if got.id != id || got.line != "hello\n" {
		t.Errorf("Expected the text line only, got %q from %d", got.line, got.id)
	}
}

// TestWSHandler_WaitCoversPendingHandoff holds an upgrade open inside
// Attach and checks Wait does not return while the handoff is still in
// flight.
func TestWSHandler_WaitCoversPendingHandoff(t *testing.T) {
	sink := newFakeSink()
	sink.attachStarted = make(chan types.ConnID, 1)
	sink.attachGate = make(chan struct{})
	var gateOnce sync.Once
	releaseGate := func() { gateOnce.Do(func() { close(sink.attachGate) }) }
	defer releaseGate()

	handler, server := startWSServer(t, sink)

	client := dialWS(t, server)
	defer client.Close()
	id := recvID(t, sink.attachStarted, "attach start")

	waited := make(chan struct{})
	go func() {
		handler.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned during an in-flight handoff")
	case <-time.After(100 * time.Millisecond):
	}

	releaseGate()
	client.Close()

	if detached := recvID(t, sink.detached, "detach"); detached != id {
		t.Errorf("Expected detach of connection %d, got %d", id, detached)
	}
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the read pump to drain")
	}
}

func TestWSConn_SendAfterClose(t *testing.T) {
	sink := newFakeSink()
	_, server := startWSServer(t, sink)

	client := dialWS(t, server)
	defer client.Close()
	id := recvID(t, sink.attached, "attach")

	conn := sink.get(id)
	if err := conn.Close(); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}
	if err := conn.Send([]byte("late\n")); err != ErrConnClosed {
		t.Errorf("Expected ErrConnClosed, got %v", err)
	}
}
