package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/detectforge/eventstream/internal/auth"
	"github.com/detectforge/eventstream/internal/codec"
	"github.com/detectforge/eventstream/internal/event"
	"github.com/detectforge/eventstream/internal/metrics"
)

// Manager owns the WebSocket connection: state machine, heartbeat,
// reconnection with backoff, and the outbound send path.
type Manager interface {
	// Connect establishes the connection with the given bearer token.
	// Any existing connection is torn down first. Fails with
	// ErrConnectTimeout if the socket does not open within budget.
	Connect(ctx context.Context, token string) error

	// Disconnect tears down the connection unconditionally. It is
	// idempotent and cancels any pending reconnect.
	Disconnect()

	// SendMessage encodes and transmits an event. It returns whether
	// the write was accepted by the socket, not whether the server
	// processed it; a non-fatal write failure returns (false, nil).
	// Fails with ErrNotConnected unless the state is Connected.
	SendMessage(ev event.Event) (bool, error)

	// State returns the current connection state.
	State() State

	// Metrics returns a read-only metrics snapshot.
	Metrics() metrics.Snapshot

	// OnConnect registers a listener for successful connections.
	OnConnect(fn func()) Subscription

	// OnDisconnect registers a listener for disconnections.
	OnDisconnect(fn func(error)) Subscription

	// OnError registers a listener for terminal errors.
	OnError(fn func(error)) Subscription
}

// Deps are the Manager's injected collaborators.
type Deps struct {
	Signer  *auth.Signer       // Builds the signed connection URL
	Codec   *codec.Codec       // Encrypts outbound frames
	Tokens  TokenProvider      // Supplies fresh tokens for reconnects
	Metrics *metrics.Collector // Shared metrics collector
	Frames  FrameHandler       // Inbound frame sink, may be nil
}

// errSuperseded means a Disconnect or a newer Connect intervened while
// a dial was in flight; the stale attempt is abandoned, never retried.
var errSuperseded = errors.New("connection attempt superseded")

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	deps   Deps
	logger *slog.Logger

	// dial creates the underlying client; replaced in tests.
	dial func(cfg ClientConfig) Client

	mu             sync.Mutex
	state          State
	client         Client
	gen            int // Connection generation; stale callbacks are ignored
	attempts       int
	reconnecting   bool
	reconnectTimer *time.Timer
	connCancel     context.CancelFunc

	subsMu sync.Mutex
	subs   map[LifecycleEvent]map[int64]func(error)
	subSeq int64
}

// NewManager creates a Connection Manager with injected dependencies.
func NewManager(cfg ManagerConfig, deps Deps, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	m := &manager{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		state:  StateDisconnected,
		subs:   make(map[LifecycleEvent]map[int64]func(error)),
	}
	m.dial = func(clientCfg ClientConfig) Client {
		return NewClient(clientCfg, m.logger)
	}
	return m
}

// Connect establishes the connection.
func (m *manager) Connect(ctx context.Context, token string) error {
	// Idempotent teardown of any live connection.
	m.Disconnect()

	url, err := m.deps.Signer.BuildURL(m.cfg.BaseURL, token, m.cfg.ClientID)
	if err != nil {
		return err
	}

	// An explicit connect starts with a fresh reconnection budget.
	m.mu.Lock()
	m.attempts = 0
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	if err := m.establish(ctx, url, gen); err != nil {
		if errors.Is(err, errSuperseded) {
			return err
		}

		// A Disconnect during the dial is authoritative: it already set
		// the state and must not be followed by a reconnect.
		m.mu.Lock()
		superseded := m.gen != gen
		if !superseded {
			m.state = StateDisconnected
		}
		m.mu.Unlock()

		if !superseded {
			m.scheduleReconnect(err)
		}
		return err
	}
	return nil
}

// establish dials the socket and, on success, starts the read and
// heartbeat loops. On failure no socket is left dangling. startGen is
// the generation observed when the attempt began; if it moved while the
// dial was in flight, the attempt lost to a Disconnect or a newer
// Connect and its socket is discarded.
func (m *manager) establish(ctx context.Context, url string, startGen int) error {
	cl := m.dial(ClientConfig{
		URL:            url,
		ConnectTimeout: m.cfg.ConnectTimeout,
		WriteTimeout:   m.cfg.WriteTimeout,
		BufferSize:     m.cfg.BufferSize,
	})

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	if err := cl.Connect(dialCtx); err != nil {
		cl.Close()
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrConnectTimeout, m.cfg.ConnectTimeout)
		}
		return fmt.Errorf("open socket: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.gen != startGen {
		m.mu.Unlock()
		connCancel()
		cl.Close()
		return errSuperseded
	}
	m.gen++
	gen := m.gen
	m.client = cl
	m.connCancel = connCancel
	m.state = StateConnected
	m.attempts = 0
	m.reconnecting = false
	m.mu.Unlock()

	go m.watch(connCtx, cl, gen)
	go m.heartbeatLoop(connCtx, cl)

	m.logger.Info("connected", "client_id", m.cfg.ClientID)
	m.notify(LifecycleConnect, nil)

	return nil
}

// Disconnect tears down the connection unconditionally.
func (m *manager) Disconnect() {
	m.mu.Lock()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.reconnecting = false

	hadConn := m.client != nil
	m.stopConnLocked()
	m.state = StateDisconnected
	m.mu.Unlock()

	// Pending-message bookkeeping does not survive the connection.
	m.deps.Metrics.Reset()

	if hadConn {
		m.logger.Info("disconnected")
		m.notify(LifecycleDisconnect, nil)
	}
}

// stopConnLocked cancels the connection goroutines and closes the
// socket. Must be called with m.mu held.
func (m *manager) stopConnLocked() {
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.gen++
}

// SendMessage encodes and transmits an event.
func (m *manager) SendMessage(ev event.Event) (bool, error) {
	m.mu.Lock()
	if m.state != StateConnected || m.client == nil {
		m.mu.Unlock()
		return false, ErrNotConnected
	}
	cl := m.client
	m.mu.Unlock()

	if ev.Version == "" {
		ev.Version = event.Version
	}
	if ev.Priority == "" {
		ev.Priority = event.PriorityMedium
	}
	if ev.MessageID == "" {
		ev.MessageID = uuid.NewString()
	}

	frame, err := m.deps.Codec.Encode(ev)
	if err != nil {
		return false, fmt.Errorf("encode message: %w", err)
	}

	m.deps.Metrics.RecordSend(ev.MessageID)

	if err := cl.Send([]byte(frame)); err != nil {
		m.logger.Warn("send not accepted", "type", ev.Type, "error", err)
		return false, nil
	}
	return true, nil
}

// State returns the current connection state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Metrics returns a read-only metrics snapshot.
func (m *manager) Metrics() metrics.Snapshot {
	return m.deps.Metrics.Snapshot()
}

// watch is the single read loop: it forwards inbound frames to the
// frame handler in arrival order and triggers reconnection on
// connection errors.
func (m *manager) watch(ctx context.Context, cl Client, gen int) {
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-cl.Errors():
			m.logger.Warn("connection lost", "error", err)
			m.handleUnexpectedClose(gen, err)
			return

		case msg, ok := <-cl.Messages():
			if !ok {
				return
			}
			if m.deps.Frames != nil {
				m.deps.Frames.HandleFrame(ctx, string(msg.Data), msg.ReceivedAt)
			}
		}
	}
}

// heartbeatLoop sends an encrypted liveness frame every interval while
// the connection is up. Fire and forget: no ack is expected, socket
// close/error is the failure signal.
func (m *manager) heartbeatLoop(ctx context.Context, cl Client) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := event.Event{
				Type:     event.TypeHeartbeat,
				Payload:  event.Heartbeat{SentAt: time.Now().UnixMilli()},
				Version:  event.Version,
				Priority: event.PriorityLow,
			}

			frame, err := m.deps.Codec.Encode(hb)
			if err != nil {
				m.logger.Warn("heartbeat encode failed", "error", err)
				continue
			}

			if err := cl.Send([]byte(frame)); err != nil {
				m.logger.Debug("heartbeat send failed", "error", err)
				continue
			}

			m.deps.Metrics.RecordHeartbeat()
		}
	}
}

// handleUnexpectedClose reacts to a connection error from the socket.
func (m *manager) handleUnexpectedClose(gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		// A newer connection already replaced this one.
		m.mu.Unlock()
		return
	}
	m.stopConnLocked()
	m.state = StateDisconnected
	m.mu.Unlock()

	m.notify(LifecycleDisconnect, cause)
	m.scheduleReconnect(cause)
}

// scheduleReconnect arms the backoff timer for the next reconnection
// attempt, or transitions to Failed once the budget is spent.
func (m *manager) scheduleReconnect(cause error) {
	m.mu.Lock()
	if m.reconnecting || m.state == StateFailed {
		m.mu.Unlock()
		return
	}

	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.state = StateFailed
		m.mu.Unlock()

		err := fmt.Errorf("%w (%d attempts): %v", ErrMaxReconnects, m.cfg.MaxReconnectAttempts, cause)
		m.logger.Error("giving up on reconnection", "error", err)
		m.notify(LifecycleError, err)
		return
	}

	m.attempts++
	attempt := m.attempts
	m.reconnecting = true
	m.state = StateReconnecting

	delay := backoffDelay(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, attempt)
	delay += jitter(delay)

	m.reconnectTimer = time.AfterFunc(delay, m.retryConnect)
	m.mu.Unlock()

	m.deps.Metrics.RecordReconnect()
	m.logger.Info("reconnect scheduled",
		"attempt", attempt,
		"max_attempts", m.cfg.MaxReconnectAttempts,
		"delay", delay,
	)
}

// retryConnect runs one reconnection attempt after the backoff delay.
func (m *manager) retryConnect() {
	m.mu.Lock()
	if m.state != StateReconnecting {
		// Disconnect() won the race.
		m.mu.Unlock()
		return
	}
	m.reconnecting = false
	gen := m.gen
	m.mu.Unlock()

	token, err := m.deps.Tokens()
	if err != nil {
		m.logger.Warn("token refresh failed", "error", err)
		m.scheduleReconnect(err)
		return
	}

	url, err := m.deps.Signer.BuildURL(m.cfg.BaseURL, token, m.cfg.ClientID)
	if err != nil {
		// Invalid parameters are fatal, not retried.
		m.mu.Lock()
		m.state = StateFailed
		m.mu.Unlock()
		m.notify(LifecycleError, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	if err := m.establish(ctx, url, gen); err != nil {
		if errors.Is(err, errSuperseded) {
			return
		}

		m.mu.Lock()
		superseded := m.gen != gen
		m.mu.Unlock()
		if superseded {
			return
		}

		m.logger.Warn("reconnect attempt failed", "error", err)
		m.scheduleReconnect(err)
		return
	}
}

// OnConnect registers a listener for successful connections.
func (m *manager) OnConnect(fn func()) Subscription {
	return m.subscribe(LifecycleConnect, func(error) { fn() })
}

// OnDisconnect registers a listener for disconnections.
func (m *manager) OnDisconnect(fn func(error)) Subscription {
	return m.subscribe(LifecycleDisconnect, fn)
}

// OnError registers a listener for terminal errors.
func (m *manager) OnError(fn func(error)) Subscription {
	return m.subscribe(LifecycleError, fn)
}

func (m *manager) subscribe(kind LifecycleEvent, fn func(error)) Subscription {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	if m.subs[kind] == nil {
		m.subs[kind] = make(map[int64]func(error))
	}
	m.subSeq++
	id := m.subSeq
	m.subs[kind][id] = fn

	return Subscription{cancel: func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs[kind], id)
	}}
}

// notify invokes all listeners registered for kind.
func (m *manager) notify(kind LifecycleEvent, err error) {
	m.subsMu.Lock()
	listeners := make([]func(error), 0, len(m.subs[kind]))
	for _, fn := range m.subs[kind] {
		listeners = append(listeners, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range listeners {
		fn(err)
	}
}

func (m *manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// backoffDelay doubles the base delay per attempt, capped at max.
// Attempt numbering starts at 1.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// jitter returns a random delay up to 10% of d, spreading reconnect
// attempts so clients do not stampede the server in lockstep.
func jitter(d time.Duration) time.Duration {
	span := int64(d / 10)
	if span <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(span))
}
