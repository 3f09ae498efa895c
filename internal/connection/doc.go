// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the WebSocket socket and the connection state machine
//   - Sends an encrypted heartbeat frame on a fixed interval
//   - Reconnects on unexpected close with capped exponential backoff
//     and jitter, up to a configured attempt budget
//   - Encodes outbound events and records them for latency correlation
//   - Forwards inbound frames to the Event Dispatcher in arrival order
package connection
