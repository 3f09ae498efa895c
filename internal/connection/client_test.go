package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

func TestClient_ConnectAndReceive(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		// Keep the connection open until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cl := NewClient(testClientConfig(wsURL(server)), nil)

	if err := cl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer cl.Close()

	if !cl.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}

	select {
	case msg := <-cl.Messages():
		if string(msg.Data) != "hello" {
			t.Errorf("message = %q, want %q", msg.Data, "hello")
		}
		if msg.ReceivedAt.IsZero() {
			t.Error("ReceivedAt is zero")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestClient_Send(t *testing.T) {
	received := make(chan string, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cl := NewClient(testClientConfig(wsURL(server)), nil)

	if err := cl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer cl.Close()

	if err := cl.Send([]byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if got != "ping" {
			t.Errorf("server received %q, want %q", got, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server receive")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	cl := NewClient(testClientConfig("ws://127.0.0.1:1/never"), nil)

	if err := cl.Send([]byte("data")); err != ErrNotConnected {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestClient_ServerCloseSurfacesError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Close immediately without the close handshake
	})
	defer server.Close()

	cl := NewClient(testClientConfig(wsURL(server)), nil)

	if err := cl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer cl.Close()

	select {
	case err := <-cl.Errors():
		if err == nil {
			t.Error("expected non-nil connection error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection error")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cl := NewClient(testClientConfig(wsURL(server)), nil)

	if err := cl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := cl.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := cl.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if cl.IsConnected() {
		t.Error("IsConnected = true after Close")
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	cl := NewClient(testClientConfig("ws://127.0.0.1:1/never"), nil)
	cl.Close()

	if err := cl.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("error = %v, want ErrAlreadyClosed", err)
	}
}

func TestClient_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	cl := NewClient(testClientConfig("ws://127.0.0.1:1/never"), nil)
	if err := cl.Connect(ctx); err == nil {
		t.Error("expected dial failure")
	}
}
