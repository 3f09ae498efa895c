// Package event defines the wire events exchanged with the detection
// platform's event stream.
//
// Conventions:
//   - Type determines the payload shape; DecodePayload is the single
//     exhaustive mapping between the two
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Protocol version: "1.0" (Version constant)
package event
