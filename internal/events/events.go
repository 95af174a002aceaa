// Package events defines the closed event taxonomy that flows through the
// Flux Runtime and the Synergy Bus: immutable, value-typed records with a
// fixed timestamp and an opaque payload.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of event tags. No other value is valid.
type Kind string

const (
	KindDialogueStart Kind = "dialogue_start"
	KindDialogueTurn  Kind = "dialogue_turn"
	KindDialogueEnd   Kind = "dialogue_end"

	KindModeChange        Kind = "mode_change"
	KindInterceptRequest  Kind = "intercept_request"
	KindInterceptResult   Kind = "intercept_result"
	KindEigenvectorProbe  Kind = "eigenvector_probe"
	KindStateSnapshot     Kind = "state_snapshot"
	KindPing              Kind = "ping"
	KindError             Kind = "error"
	KindPulse             Kind = "pulse"

	KindThought       Kind = "thought"
	KindFeeling       Kind = "feeling"
	KindObservation   Kind = "observation"
	KindSelfChallenge Kind = "self_challenge"
	KindPerturbation  Kind = "perturbation"
	KindGratitude     Kind = "gratitude"

	KindDreamStart   Kind = "dream_start"
	KindDreamPattern Kind = "dream_pattern"
	KindDreamInsight Kind = "dream_insight"
	KindDreamEnd     Kind = "dream_end"
)

// validKinds is the closed set used by Parse to reject unknown kinds.
var validKinds = map[Kind]bool{
	KindDialogueStart: true, KindDialogueTurn: true, KindDialogueEnd: true,
	KindModeChange: true, KindInterceptRequest: true, KindInterceptResult: true,
	KindEigenvectorProbe: true, KindStateSnapshot: true, KindPing: true,
	KindError: true, KindPulse: true,
	KindThought: true, KindFeeling: true, KindObservation: true,
	KindSelfChallenge: true, KindPerturbation: true, KindGratitude: true,
	KindDreamStart: true, KindDreamPattern: true, KindDreamInsight: true, KindDreamEnd: true,
}

// IsValid reports whether k belongs to the closed kind set.
func IsValid(k Kind) bool {
	return validKinds[k]
}

// Payload is an opaque, string-keyed map of scalar or homogeneous-array values.
type Payload map[string]interface{}

// Event is an immutable, value-typed record. Events carry no back-pointers
// and are comparable by value (Payload/StateSnapshot are maps, so full
// structural comparison needs a deep comparison such as cmp.Diff, not ==).
type Event struct {
	Kind          Kind
	Timestamp     time.Time
	Payload       Payload
	StateSnapshot Payload
	CorrelationID string
}

// New constructs an event of the given kind with a fresh UTC timestamp. If
// correlationID is empty, a fresh one is generated so every event can be
// traced end to end.
func New(kind Kind, payload Payload, correlationID string) Event {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if payload == nil {
		payload = Payload{}
	}
	return Event{
		Kind:          kind,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
		CorrelationID: correlationID,
	}
}

// WithState returns a copy of e carrying the given state snapshot.
func (e Event) WithState(snapshot Payload) Event {
	e.StateSnapshot = snapshot
	return e
}

// WithCorrelation returns a copy of e with its correlation id replaced.
func (e Event) WithCorrelation(id string) Event {
	e.CorrelationID = id
	return e
}

// --- Factory functions -----------------------------------------------------

func NewDialogueStart(sessionID string, corr string) Event {
	return New(KindDialogueStart, Payload{"session_id": sessionID}, corr)
}

func NewDialogueTurn(message string, mode string, isRequest bool, corr string) Event {
	return New(KindDialogueTurn, Payload{
		"message":    message,
		"mode":       mode,
		"is_request": isRequest,
	}, corr)
}

func NewDialogueEnd(reason string, corr string) Event {
	return New(KindDialogueEnd, Payload{"reason": reason}, corr)
}

func NewModeChange(toMode string, corr string) Event {
	return New(KindModeChange, Payload{"to_mode": toMode}, corr)
}

func NewInterceptRequest(operation, reason string, severity string, corr string) Event {
	return New(KindInterceptRequest, Payload{
		"operation": operation,
		"reason":    reason,
		"severity":  severity,
	}, corr)
}

func NewInterceptResult(handled bool, recommendation string, confidence float64, corr string) Event {
	return New(KindInterceptResult, Payload{
		"handled":        handled,
		"recommendation": recommendation,
		"confidence":     confidence,
	}, corr)
}

func NewEigenvectorProbe(corr string) Event {
	return New(KindEigenvectorProbe, Payload{}, corr)
}

func NewStateSnapshot(corr string) Event {
	return New(KindStateSnapshot, Payload{}, corr)
}

func NewPing(corr string) Event {
	return New(KindPing, Payload{}, corr)
}

func NewError(originalKind Kind, message string, corr string) Event {
	return New(KindError, Payload{
		"original_kind": string(originalKind),
		"message":       message,
	}, corr)
}

func NewPulse(interactionCount int64, sessionTokens int64, activeMode string, healthy bool) Event {
	return New(KindPulse, Payload{
		// stored as float64 so the payload survives a JSON round trip unchanged
		"interaction_count": float64(interactionCount),
		"session_tokens":    float64(sessionTokens),
		"active_mode":       activeMode,
		"healthy":           healthy,
	}, "")
}

func NewAmbient(kind Kind, payload Payload, corr string) Event {
	if !isAmbient(kind) {
		panic(fmt.Sprintf("events: %q is not an ambient kind", kind))
	}
	return New(kind, payload, corr)
}

func isAmbient(k Kind) bool {
	switch k {
	case KindThought, KindFeeling, KindObservation, KindSelfChallenge, KindPerturbation, KindGratitude:
		return true
	}
	return false
}

func NewPerturbation(intensity float64, payload Payload, corr string) Event {
	if payload == nil {
		payload = Payload{}
	}
	payload["intensity"] = intensity
	return New(KindPerturbation, payload, corr)
}

func NewDreamStart(corr string) Event      { return New(KindDreamStart, Payload{}, corr) }
func NewDreamPattern(p string, corr string) Event {
	return New(KindDreamPattern, Payload{"pattern": p}, corr)
}
func NewDreamInsight(insight string, corr string) Event {
	return New(KindDreamInsight, Payload{"insight": insight}, corr)
}
func NewDreamEnd(corr string) Event { return New(KindDreamEnd, Payload{}, corr) }
