package metrics

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock advances a fixed amount per call site via Advance.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCollector(opts ...Option) (*Collector, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	opts = append(opts, withClock(clock.Now))
	return NewCollector(opts...), clock
}

func TestRecordAck_MeasuresLatency(t *testing.T) {
	c, clock := newTestCollector()

	c.RecordSend("msg-1")
	clock.Advance(40 * time.Millisecond)

	latency, ok := c.RecordAck("msg-1")
	if !ok {
		t.Fatal("RecordAck did not find pending message")
	}
	if latency != 40*time.Millisecond {
		t.Errorf("latency = %v, want 40ms", latency)
	}
	if latency < 0 {
		t.Errorf("latency = %v, want >= 0", latency)
	}

	snap := c.Snapshot()
	if snap.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0 after ack", snap.PendingCount)
	}
	if snap.AvgLatency != 40*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 40ms", snap.AvgLatency)
	}
}

func TestRecordAck_Uncorrelated(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordSend("msg-1")
	c.RecordSend("msg-2")

	if _, ok := c.RecordAck("msg-unknown"); ok {
		t.Error("RecordAck matched an unknown message id")
	}

	snap := c.Snapshot()
	if snap.PendingCount != 2 {
		t.Errorf("PendingCount = %d, want 2 (uncorrelated frame must not touch pending)", snap.PendingCount)
	}
}

func TestRecordAck_SmoothsAverage(t *testing.T) {
	c, clock := newTestCollector()

	c.RecordSend("a")
	clock.Advance(100 * time.Millisecond)
	c.RecordAck("a")

	c.RecordSend("b")
	clock.Advance(50 * time.Millisecond)
	c.RecordAck("b")

	// avg = (100ms + 50ms) / 2
	if got := c.Snapshot().AvgLatency; got != 75*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 75ms", got)
	}
}

func TestPendingEviction(t *testing.T) {
	c, _ := newTestCollector(WithMaxPending(3))

	for i := 0; i < 5; i++ {
		c.RecordSend(fmt.Sprintf("msg-%d", i))
	}

	snap := c.Snapshot()
	if snap.PendingCount != 3 {
		t.Errorf("PendingCount = %d, want 3 (bound enforced)", snap.PendingCount)
	}

	// Oldest entries were evicted first.
	if _, ok := c.RecordAck("msg-0"); ok {
		t.Error("msg-0 should have been evicted")
	}
	if _, ok := c.RecordAck("msg-1"); ok {
		t.Error("msg-1 should have been evicted")
	}
	if _, ok := c.RecordAck("msg-4"); !ok {
		t.Error("msg-4 should still be pending")
	}
}

func TestAckedTraffic_OrderStaysBounded(t *testing.T) {
	c, clock := newTestCollector(WithMaxPending(10))

	for i := 0; i < 100000; i++ {
		id := fmt.Sprintf("msg-%d", i)
		c.RecordSend(id)
		clock.Advance(time.Millisecond)
		if _, ok := c.RecordAck(id); !ok {
			t.Fatalf("ack for %s did not correlate", id)
		}
	}

	c.mu.Lock()
	orderLen := len(c.order)
	c.mu.Unlock()

	if orderLen > orderCompactMin {
		t.Errorf("order length = %d after acked traffic, want <= %d", orderLen, orderCompactMin)
	}
	if got := c.Snapshot().PendingCount; got != 0 {
		t.Errorf("PendingCount = %d, want 0", got)
	}
}

func TestPendingExpiry(t *testing.T) {
	c, clock := newTestCollector(WithPendingTTL(time.Second))

	c.RecordSend("stale")
	clock.Advance(2 * time.Second)
	c.RecordSend("fresh")

	snap := c.Snapshot()
	if snap.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1 (stale entry expired)", snap.PendingCount)
	}

	if _, ok := c.RecordAck("stale"); ok {
		t.Error("stale message should have expired, not correlated")
	}
	if _, ok := c.RecordAck("fresh"); !ok {
		t.Error("fresh message should still be pending")
	}
}

func TestPendingExpiry_SnapshotReflectsTTL(t *testing.T) {
	c, clock := newTestCollector(WithPendingTTL(time.Second))

	c.RecordSend("msg-1")
	if got := c.Snapshot().PendingCount; got != 1 {
		t.Fatalf("PendingCount = %d, want 1 before expiry", got)
	}

	clock.Advance(1500 * time.Millisecond)
	if got := c.Snapshot().PendingCount; got != 0 {
		t.Errorf("PendingCount = %d, want 0 after TTL elapsed", got)
	}
}

func TestSuccessRate(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordSuccess()
	if got := c.Snapshot().SuccessRate; got != 1.0 {
		t.Errorf("SuccessRate after one success = %v, want 1.0", got)
	}

	c.RecordError()
	if got := c.Snapshot().SuccessRate; got != 0.5 {
		t.Errorf("SuccessRate after success+failure = %v, want 0.5", got)
	}

	c.RecordSuccess()
	if got := c.Snapshot().SuccessRate; got != 0.75 {
		t.Errorf("SuccessRate = %v, want 0.75", got)
	}

	snap := c.Snapshot()
	if snap.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", snap.MessageCount)
	}
	if snap.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", snap.ErrorCount)
	}
}

func TestReset_ClearsPendingOnly(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordSend("msg-1")
	c.RecordSuccess()
	c.RecordReconnect()

	c.Reset()

	snap := c.Snapshot()
	if snap.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0 after reset", snap.PendingCount)
	}
	if snap.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1 (counters survive reset)", snap.MessageCount)
	}
	if snap.ReconnectCount != 1 {
		t.Errorf("ReconnectCount = %d, want 1 (counters survive reset)", snap.ReconnectCount)
	}
}

func TestRecordHeartbeat(t *testing.T) {
	c, clock := newTestCollector()

	c.RecordHeartbeat()
	if got := c.Snapshot().LastHeartbeat; !got.Equal(clock.Now()) {
		t.Errorf("LastHeartbeat = %v, want %v", got, clock.Now())
	}
}
