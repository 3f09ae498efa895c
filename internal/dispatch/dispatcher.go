package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/detectforge/eventstream/internal/codec"
	"github.com/detectforge/eventstream/internal/event"
	"github.com/detectforge/eventstream/internal/metrics"
)

// Handler processes one decoded event. A non-nil error triggers the
// dispatcher's retry policy.
type Handler func(ctx context.Context, ev event.Event) error

// Config holds Event Dispatcher settings.
type Config struct {
	HandlerRetries int           // Retries after the first failed attempt
	RetryDelay     time.Duration // Fixed delay between attempts
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandlerRetries: 3,
		RetryDelay:     1 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	FramesReceived   int64
	EventsDispatched int64
	DecodeErrors     int64
	UnknownDropped   int64
	HandlerFailures  int64
}

// Dispatcher decodes inbound frames and routes typed events to the
// one handler registered per event type.
type Dispatcher struct {
	cfg     Config
	codec   *codec.Codec
	metrics *metrics.Collector
	logger  *slog.Logger

	mu       sync.RWMutex
	handlers map[event.Type]Handler
	stats    Stats
}

// NewDispatcher creates an Event Dispatcher.
func NewDispatcher(cfg Config, c *codec.Codec, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	return &Dispatcher{
		cfg:      cfg,
		codec:    c,
		metrics:  collector,
		logger:   logger,
		handlers: make(map[event.Type]Handler),
	}
}

// Register sets the handler for an event type, replacing any previous
// registration.
func (d *Dispatcher) Register(t event.Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// HandleFrame processes one inbound frame: decode, correlate, route,
// retry on handler failure, and surface terminal failures as Error
// events. It never panics the read loop; a malformed frame is counted
// and dropped before it can reach domain logic.
func (d *Dispatcher) HandleFrame(ctx context.Context, frame string, receivedAt time.Time) {
	d.bump(func(s *Stats) { s.FramesReceived++ })

	ev, err := d.codec.Decode(frame)
	if err != nil {
		// A type this client does not know yet is not an error: newer
		// servers may emit event types we have no handler for.
		if errors.Is(err, event.ErrUnknownType) {
			d.logger.Info("discarding event of unknown type", "error", err)
			d.bump(func(s *Stats) { s.UnknownDropped++ })
			return
		}
		d.logger.Warn("dropping undecodable frame", "error", err)
		d.metrics.RecordError()
		d.bump(func(s *Stats) { s.DecodeErrors++ })
		return
	}

	// Close the latency measurement for a correlated response.
	if ev.MessageID != "" {
		if latency, ok := d.metrics.RecordAck(ev.MessageID); ok {
			d.logger.Debug("correlated response",
				"message_id", ev.MessageID,
				"latency", latency,
			)
		}
	}

	// Heartbeats are liveness only, never routed.
	if ev.Type == event.TypeHeartbeat {
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[ev.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Info("no handler registered, discarding event", "type", ev.Type)
		d.bump(func(s *Stats) { s.UnknownDropped++ })
		return
	}

	if err := d.runWithRetries(ctx, handler, ev); err != nil {
		d.metrics.RecordError()
		d.bump(func(s *Stats) { s.HandlerFailures++ })
		d.dispatchErrorEvent(ctx, ev, err)
		return
	}

	d.metrics.RecordSuccess()
	d.bump(func(s *Stats) { s.EventsDispatched++ })
}

// runWithRetries awaits the handler, retrying transient failures with
// a fixed delay up to the configured maximum.
func (d *Dispatcher) runWithRetries(ctx context.Context, handler Handler, ev event.Event) error {
	var lastErr error

	for attempt := 0; attempt <= d.cfg.HandlerRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(d.cfg.RetryDelay):
			}
		}

		if lastErr = handler(ctx, ev); lastErr == nil {
			return nil
		}

		d.logger.Warn("handler failed",
			"type", ev.Type,
			"attempt", attempt+1,
			"max_attempts", d.cfg.HandlerRetries+1,
			"error", lastErr,
		)
	}

	return lastErr
}

// dispatchErrorEvent synthesizes an Error event for an unrecoverable
// handler failure so the loss is observable, and routes it to the
// Error handler. Failures of the Error handler itself are logged and
// dropped to avoid recursing.
func (d *Dispatcher) dispatchErrorEvent(ctx context.Context, failed event.Event, cause error) {
	errEv := event.Event{
		Type: event.TypeError,
		Payload: event.ErrorInfo{
			Code:      "HANDLER_FAILED",
			Message:   fmt.Sprintf("handler for %s exhausted %d attempts: %v", failed.Type, d.cfg.HandlerRetries+1, cause),
			Timestamp: time.Now().UnixMilli(),
			Context: map[string]string{
				"event_type": string(failed.Type),
				"message_id": failed.MessageID,
			},
		},
		Version:  event.Version,
		Priority: event.PriorityHigh,
	}

	if failed.Type == event.TypeError {
		// The Error handler is the thing that failed; do not loop.
		d.logger.Error("error handler failed", "error", cause)
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[event.TypeError]
	d.mu.RUnlock()

	if !ok {
		d.logger.Error("unrecoverable handler failure with no error handler",
			"type", failed.Type,
			"error", cause,
		)
		return
	}

	if err := handler(ctx, errEv); err != nil {
		d.logger.Error("error handler failed", "error", err)
	}
}

func (d *Dispatcher) bump(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}
