package metrics

import (
	"sync"
	"time"
)

// DefaultMaxPending bounds the number of outbound messages awaiting a
// correlated response.
const DefaultMaxPending = 1000

// DefaultPendingTTL is how long an unacknowledged message stays pending
// before it is expired.
const DefaultPendingTTL = time.Minute

// orderCompactMin is the slice length below which resolved entries in
// the insertion-order slice are left for later compaction.
const orderCompactMin = 64

// Snapshot is a point-in-time, read-only view of collector state.
type Snapshot struct {
	AvgLatency     time.Duration
	MessageCount   int64
	ErrorCount     int64
	ReconnectCount int64
	PendingCount   int
	LastHeartbeat  time.Time
	SuccessRate    float64 // 0..1, smoothed
}

// pendingEntry correlates an outbound message id to its send time.
type pendingEntry struct {
	id     string
	sentAt time.Time
}

// Collector accumulates event-stream metrics. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	// Pending messages in insertion order; oldest evicted first once
	// maxPending is exceeded and expired past pendingTTL, so memory
	// stays bounded under sustained send-without-response.
	pending    map[string]time.Time
	order      []pendingEntry
	maxPending int
	pendingTTL time.Duration

	avgLatency     time.Duration
	messageCount   int64
	errorCount     int64
	reconnectCount int64
	lastHeartbeat  time.Time
	successRate    float64
	seenFirst      bool

	now func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithMaxPending overrides the pending-message bound.
func WithMaxPending(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxPending = n
		}
	}
}

// WithPendingTTL overrides how long an unacknowledged message stays
// pending. Zero or negative disables expiry.
func WithPendingTTL(d time.Duration) Option {
	return func(c *Collector) {
		c.pendingTTL = d
	}
}

// withClock injects a clock for tests.
func withClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates an empty Collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		pending:    make(map[string]time.Time),
		maxPending: DefaultMaxPending,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordSend registers an outbound message awaiting correlation.
func (c *Collector) RecordSend(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[messageID]; exists {
		return
	}

	c.expireLocked()
	if len(c.pending) >= c.maxPending {
		c.evictOldestLocked()
	}

	sentAt := c.now()
	c.pending[messageID] = sentAt
	c.order = append(c.order, pendingEntry{id: messageID, sentAt: sentAt})
}

// RecordAck resolves a correlated inbound frame. It returns the
// measured latency and true if messageID was pending; an uncorrelated
// id leaves all pending entries untouched.
func (c *Collector) RecordAck(messageID string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()

	sentAt, ok := c.pending[messageID]
	if !ok {
		return 0, false
	}
	delete(c.pending, messageID)
	c.compactOrderLocked()

	latency := c.now().Sub(sentAt)
	if latency < 0 {
		latency = 0
	}

	if c.avgLatency == 0 {
		c.avgLatency = latency
	} else {
		c.avgLatency = (c.avgLatency + latency) / 2
	}
	return latency, true
}

// RecordSuccess counts a successfully processed frame.
func (c *Collector) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageCount++
	c.foldOutcomeLocked(1)
}

// RecordError counts a failed frame (decode failure or exhausted
// handler retries).
func (c *Collector) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageCount++
	c.errorCount++
	c.foldOutcomeLocked(0)
}

// RecordReconnect counts a reconnection attempt.
func (c *Collector) RecordReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectCount++
}

// RecordHeartbeat stamps the most recent heartbeat send.
func (c *Collector) RecordHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHeartbeat = c.now()
}

// Reset clears pending-message bookkeeping. Called on disconnect;
// cumulative counters survive.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[string]time.Time)
	c.order = nil
}

// Snapshot returns an immutable copy of current state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()

	return Snapshot{
		AvgLatency:     c.avgLatency,
		MessageCount:   c.messageCount,
		ErrorCount:     c.errorCount,
		ReconnectCount: c.reconnectCount,
		PendingCount:   len(c.pending),
		LastHeartbeat:  c.lastHeartbeat,
		SuccessRate:    c.successRate,
	}
}

// foldOutcomeLocked folds a frame outcome (1 success, 0 failure) into
// the smoothed success rate. Must be called with the lock held.
func (c *Collector) foldOutcomeLocked(outcome float64) {
	if !c.seenFirst {
		c.successRate = outcome
		c.seenFirst = true
		return
	}
	c.successRate = (c.successRate + outcome) / 2
}

// evictOldestLocked drops the oldest pending entry. Must be called
// with the lock held.
func (c *Collector) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]

		// Skip entries already resolved by RecordAck.
		if sentAt, ok := c.pending[oldest.id]; ok && sentAt.Equal(oldest.sentAt) {
			delete(c.pending, oldest.id)
			return
		}
	}
}

// expireLocked drops pending entries older than pendingTTL, along with
// any already-resolved entries at the front of the order slice. Must be
// called with the lock held.
func (c *Collector) expireLocked() {
	if c.pendingTTL <= 0 {
		return
	}
	cutoff := c.now().Add(-c.pendingTTL)

	for len(c.order) > 0 {
		oldest := c.order[0]
		sentAt, live := c.pending[oldest.id]
		if live && sentAt.Equal(oldest.sentAt) {
			if oldest.sentAt.After(cutoff) {
				return
			}
			delete(c.pending, oldest.id)
		}
		c.order = c.order[1:]
	}
}

// compactOrderLocked rebuilds the order slice once resolved entries
// dominate it, so acked traffic cannot grow it without bound. Amortized
// O(1) per ack. Must be called with the lock held.
func (c *Collector) compactOrderLocked() {
	if len(c.order) < orderCompactMin || len(c.order) <= 2*len(c.pending) {
		return
	}

	live := make([]pendingEntry, 0, len(c.pending))
	for _, e := range c.order {
		if sentAt, ok := c.pending[e.id]; ok && sentAt.Equal(e.sentAt) {
			live = append(live, e)
		}
	}
	c.order = live
}
