package connection

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected   = errors.New("not connected")
	ErrConnectTimeout = errors.New("connect timeout")
	ErrMaxReconnects  = errors.New("max reconnect attempts exhausted")
	ErrAlreadyClosed  = errors.New("already closed")
)

// State is the connection lifecycle state. Owned exclusively by the
// Manager; it changes only on socket lifecycle events or an explicit
// Disconnect.
type State string

const (
	StateDisconnected State = "Disconnected"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
	StateReconnecting State = "Reconnecting"

	// StateFailed is terminal: the reconnect-attempt budget is spent.
	StateFailed State = "Failed"
)

// TokenProvider supplies a fresh bearer token for (re)connection.
type TokenProvider func() (string, error)

// TimestampedMessage wraps raw frame data with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the socket
	ReceivedAt time.Time // Local timestamp when the read returned
}

// LifecycleEvent identifies a Manager lifecycle notification.
type LifecycleEvent string

const (
	LifecycleConnect    LifecycleEvent = "connect"
	LifecycleDisconnect LifecycleEvent = "disconnect"
	LifecycleError      LifecycleEvent = "error"
)

// Subscription is a handle for a registered lifecycle listener.
// Cancel removes the listener so it does not leak across reconnect
// cycles.
type Subscription struct {
	cancel func()
}

// Cancel removes the listener. Safe to call more than once.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL            string        // Signed connection URL
	ConnectTimeout time.Duration // Handshake deadline
	WriteTimeout   time.Duration // Write deadline for sends
	BufferSize     int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
		BufferSize:     1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	BaseURL              string        // Unsigned endpoint, e.g. wss://events.example.com/stream
	ClientID             string        // Per-session client identifier
	ConnectTimeout       time.Duration // Budget for the socket to open
	HeartbeatInterval    time.Duration // Liveness frame cadence while connected
	WriteTimeout         time.Duration // Write deadline for sends
	MaxReconnectAttempts int           // Reconnection budget before Failed
	ReconnectBaseDelay   time.Duration // First backoff delay, doubles per attempt
	ReconnectMaxDelay    time.Duration // Backoff cap
	BufferSize           int           // Per-connection message buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ConnectTimeout:       10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		WriteTimeout:         5 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		BufferSize:           1000,
	}
}

// FrameHandler consumes inbound frames. The Manager invokes it
// synchronously from its single read loop, so frames are handled
// strictly in arrival order. The context is cancelled on disconnect.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame string, receivedAt time.Time)
}
