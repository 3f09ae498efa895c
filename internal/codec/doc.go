// Package codec implements the Message Codec component.
//
// Outbound frames are serialized to canonical JSON, compressed with
// gzip when they exceed the configured threshold, and always encrypted
// with AES-GCM under the pre-shared key. The compressed form is
// base64-wrapped so the receiver can detect it without an out-of-band
// flag. The wire envelope is {iv, content, timestamp}.
package codec
