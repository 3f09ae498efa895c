package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version carried by every event.
const Version = "1.0"

// Errors
var (
	ErrUnknownType    = errors.New("unknown event type")
	ErrMissingType    = errors.New("missing event type")
	ErrMissingPayload = errors.New("missing event payload")
	ErrMissingVersion = errors.New("missing protocol version")
)

// Type identifies the shape of an event's payload.
type Type string

const (
	TypeDetectionCreated      Type = "DetectionCreated"
	TypeIntelligenceProcessed Type = "IntelligenceProcessed"
	TypeCoverageUpdated       Type = "CoverageUpdated"
	TypeTranslationComplete   Type = "TranslationComplete"
	TypeError                 Type = "Error"

	// TypeHeartbeat is the periodic liveness frame. It shares the wire
	// format with domain events but is never routed to domain handlers.
	TypeHeartbeat Type = "Heartbeat"
)

// Known reports whether t is a type this client understands.
func (t Type) Known() bool {
	switch t {
	case TypeDetectionCreated, TypeIntelligenceProcessed, TypeCoverageUpdated,
		TypeTranslationComplete, TypeError, TypeHeartbeat:
		return true
	}
	return false
}

// Priority orders local handling of events. It has no effect on wire
// ordering; frames are always processed in arrival order.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Event is the wire unit exchanged with the event stream.
type Event struct {
	Type      Type
	Payload   Payload
	Version   string
	Priority  Priority
	MessageID string // Correlation id, empty if the frame is uncorrelated
}

// Validate checks that the event is internally consistent: the type is
// known, the payload matches the type, and mandatory fields are set.
func (e Event) Validate() error {
	if e.Type == "" {
		return ErrMissingType
	}
	if !e.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if e.Version == "" {
		return ErrMissingVersion
	}
	if e.Payload == nil {
		return ErrMissingPayload
	}
	if got := e.Payload.eventType(); got != e.Type {
		return fmt.Errorf("payload shape %q does not match event type %q", got, e.Type)
	}
	return e.Payload.Validate()
}

// wireEvent is the JSON form of an Event.
type wireEvent struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Version   string          `json:"version"`
	Priority  Priority        `json:"priority,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
}

// Marshal serializes an event to its canonical JSON form. The event is
// validated first so a malformed event never reaches the wire.
func Marshal(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return json.Marshal(wireEvent{
		Type:      e.Type,
		Payload:   payload,
		Version:   e.Version,
		Priority:  e.Priority,
		MessageID: e.MessageID,
	})
}

// Unmarshal parses and validates an event from its JSON form. The
// mandatory top-level fields (type, payload, version) are checked and
// the payload is decoded to its typed shape; a payload failing its
// shape check is rejected here, before it can reach domain logic.
func Unmarshal(data []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}

	if wire.Type == "" {
		return Event{}, ErrMissingType
	}
	if len(wire.Payload) == 0 {
		return Event{}, ErrMissingPayload
	}
	if wire.Version == "" {
		return Event{}, ErrMissingVersion
	}

	payload, err := DecodePayload(wire.Type, wire.Payload)
	if err != nil {
		return Event{}, err
	}

	priority := wire.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	e := Event{
		Type:      wire.Type,
		Payload:   payload,
		Version:   wire.Version,
		Priority:  priority,
		MessageID: wire.MessageID,
	}

	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
