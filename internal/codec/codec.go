package codec

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/detectforge/eventstream/internal/event"
)

// DefaultCompressionThreshold is the serialized size above which frames
// are compressed before encryption.
const DefaultCompressionThreshold = 1024

// DecodeError reports a failed decode, naming the stage that failed.
// The original cause is preserved for errors.Is/As.
type DecodeError struct {
	Stage string // "envelope", "decrypt", "decompress", "event"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope is the encrypted wire form of every frame.
type envelope struct {
	IV        string `json:"iv"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // ms since epoch, send time
}

// Codec encrypts and authenticates frames with AES-GCM over a
// pre-shared key, compressing oversized frames first.
type Codec struct {
	aead      cipher.AEAD
	threshold int
}

// Option configures a Codec.
type Option func(*Codec)

// WithCompressionThreshold overrides the compression threshold in bytes.
func WithCompressionThreshold(n int) Option {
	return func(c *Codec) {
		c.threshold = n
	}
}

// New creates a Codec from a pre-shared AES key (16, 24, or 32 bytes).
func New(key []byte, opts ...Option) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	c := &Codec{
		aead:      aead,
		threshold: DefaultCompressionThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode serializes, optionally compresses, and encrypts an event.
// The result is the JSON envelope {iv, content, timestamp} ready for
// the wire. A fresh random nonce is generated per message.
func (c *Codec) Encode(e event.Event) (string, error) {
	body, err := event.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	// Above the threshold, compress and base64-mark the frame. Plain
	// JSON starts with '{', which is not a base64 character, so the
	// receiver can tell the two forms apart without a flag.
	if len(body) > c.threshold {
		compressed, err := compress(body)
		if err != nil {
			return "", fmt.Errorf("compress frame: %w", err)
		}
		body = []byte(base64.StdEncoding.EncodeToString(compressed))
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, body, nil)

	frame, err := json.Marshal(envelope{
		IV:        base64.StdEncoding.EncodeToString(nonce),
		Content:   base64.StdEncoding.EncodeToString(ciphertext),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	return string(frame), nil
}

// Decode decrypts, decompresses if needed, and validates a frame. It
// returns a *DecodeError on any failure and never a partially
// populated event.
func (c *Codec) Decode(frame string) (event.Event, error) {
	var env envelope
	if err := json.Unmarshal([]byte(frame), &env); err != nil {
		return event.Event{}, &DecodeError{Stage: "envelope", Err: err}
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return event.Event{}, &DecodeError{Stage: "envelope", Err: fmt.Errorf("invalid iv: %w", err)}
	}
	if len(nonce) != c.aead.NonceSize() {
		return event.Event{}, &DecodeError{Stage: "envelope", Err: fmt.Errorf("iv length %d, want %d", len(nonce), c.aead.NonceSize())}
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Content)
	if err != nil {
		return event.Event{}, &DecodeError{Stage: "envelope", Err: fmt.Errorf("invalid content: %w", err)}
	}

	body, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return event.Event{}, &DecodeError{Stage: "decrypt", Err: err}
	}

	if compressed, ok := sniffCompressed(body); ok {
		body, err = decompress(compressed)
		if err != nil {
			return event.Event{}, &DecodeError{Stage: "decompress", Err: err}
		}
	}

	ev, err := event.Unmarshal(body)
	if err != nil {
		return event.Event{}, &DecodeError{Stage: "event", Err: err}
	}
	return ev, nil
}

// sniffCompressed detects the base64-wrapped gzip form. A plain JSON
// frame never decodes as base64, and a base64 frame is only treated as
// compressed when the gzip magic bytes follow.
func sniffCompressed(body []byte) ([]byte, bool) {
	decoded, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return nil, false
	}
	if len(decoded) < 2 || decoded[0] != 0x1f || decoded[1] != 0x8b {
		return nil, false
	}
	return decoded, true
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
