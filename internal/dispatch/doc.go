// Package dispatch implements the Event Dispatcher component.
//
// The dispatcher sits between the Connection Manager's read loop and
// application handlers. It decodes each inbound frame, closes the
// latency measurement for correlated responses, and routes the typed
// event to the single handler registered for its type. Frames are
// handled synchronously in arrival order.
//
// Failures are contained: an undecodable frame is counted and dropped,
// and a handler that keeps failing after retries produces a synthetic
// Error event instead of propagating into the read loop.
package dispatch
