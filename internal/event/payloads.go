package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is the sealed set of event payload shapes. Exactly one
// concrete type exists per event Type.
type Payload interface {
	// Validate checks the payload's mandatory fields.
	Validate() error

	// eventType pins the payload to its event type. Unexported so the
	// union stays closed to this package.
	eventType() Type
}

// DetectionCreated announces a newly created detection rule.
type DetectionCreated struct {
	RuleID    string `json:"rule_id"`
	Name      string `json:"name"`
	Severity  string `json:"severity"`
	Platform  string `json:"platform"`
	CreatedBy string `json:"created_by"`
}

func (DetectionCreated) eventType() Type { return TypeDetectionCreated }

func (p DetectionCreated) Validate() error {
	if p.RuleID == "" {
		return errors.New("detection payload: rule_id is required")
	}
	if p.Name == "" {
		return errors.New("detection payload: name is required")
	}
	return nil
}

// IntelligenceProcessed signals that an intelligence report finished
// server-side processing.
type IntelligenceProcessed struct {
	ReportID       string `json:"report_id"`
	Status         string `json:"status"` // "completed" or "failed"
	IndicatorCount int    `json:"indicator_count"`
	RulesGenerated int    `json:"rules_generated"`
}

func (IntelligenceProcessed) eventType() Type { return TypeIntelligenceProcessed }

func (p IntelligenceProcessed) Validate() error {
	if p.ReportID == "" {
		return errors.New("intelligence payload: report_id is required")
	}
	if p.Status != "completed" && p.Status != "failed" {
		return fmt.Errorf("intelligence payload: invalid status %q", p.Status)
	}
	if p.IndicatorCount < 0 || p.RulesGenerated < 0 {
		return errors.New("intelligence payload: counts cannot be negative")
	}
	return nil
}

// CoverageUpdated reports a change to attack-technique coverage.
type CoverageUpdated struct {
	TechniqueID string `json:"technique_id"`
	Tactic      string `json:"tactic"`
	Covered     bool   `json:"covered"`
	RuleCount   int    `json:"rule_count"`
}

func (CoverageUpdated) eventType() Type { return TypeCoverageUpdated }

func (p CoverageUpdated) Validate() error {
	if p.TechniqueID == "" {
		return errors.New("coverage payload: technique_id is required")
	}
	if p.RuleCount < 0 {
		return errors.New("coverage payload: rule_count cannot be negative")
	}
	return nil
}

// TranslationComplete signals a finished cross-platform rule translation.
type TranslationComplete struct {
	TranslationID  string `json:"translation_id"`
	RuleID         string `json:"rule_id"`
	SourcePlatform string `json:"source_platform"`
	TargetPlatform string `json:"target_platform"`
	Status         string `json:"status"`
}

func (TranslationComplete) eventType() Type { return TypeTranslationComplete }

func (p TranslationComplete) Validate() error {
	if p.TranslationID == "" {
		return errors.New("translation payload: translation_id is required")
	}
	if p.SourcePlatform == "" || p.TargetPlatform == "" {
		return errors.New("translation payload: source and target platforms are required")
	}
	return nil
}

// ErrorInfo carries an error surfaced through the event stream, either
// from the server or synthesized locally by the dispatcher.
type ErrorInfo struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Timestamp int64             `json:"timestamp"` // ms since epoch
	Context   map[string]string `json:"context,omitempty"`
}

func (ErrorInfo) eventType() Type { return TypeError }

func (p ErrorInfo) Validate() error {
	if p.Code == "" {
		return errors.New("error payload: code is required")
	}
	if p.Message == "" {
		return errors.New("error payload: message is required")
	}
	return nil
}

// Heartbeat is the payload of the periodic liveness frame.
type Heartbeat struct {
	SentAt int64 `json:"sent_at"` // ms since epoch
}

func (Heartbeat) eventType() Type { return TypeHeartbeat }

func (p Heartbeat) Validate() error {
	if p.SentAt <= 0 {
		return errors.New("heartbeat payload: sent_at is required")
	}
	return nil
}

// DecodePayload decodes raw payload JSON to the typed shape for t.
// This is the single exhaustive mapping from event type to payload.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	switch t {
	case TypeDetectionCreated:
		return decodeInto[DetectionCreated](raw)
	case TypeIntelligenceProcessed:
		return decodeInto[IntelligenceProcessed](raw)
	case TypeCoverageUpdated:
		return decodeInto[CoverageUpdated](raw)
	case TypeTranslationComplete:
		return decodeInto[TranslationComplete](raw)
	case TypeError:
		return decodeInto[ErrorInfo](raw)
	case TypeHeartbeat:
		return decodeInto[Heartbeat](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func decodeInto[P Payload](raw json.RawMessage) (Payload, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", p.eventType(), err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
