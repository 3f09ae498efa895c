// Package metrics tracks event-stream health.
//
// Key metrics:
//   - Round-trip latency, correlated by outbound message id
//   - Message, error, and reconnect counts
//   - Last heartbeat timestamp and smoothed success rate
//
// Averages use exponential-style smoothing, avg = (avg + sample) / 2,
// not a windowed mean.
package metrics
