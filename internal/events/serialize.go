package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireEvent is the on-the-wire shape: ISO-8601 UTC timestamp, plain maps.
// Kept separate from Event so Event itself stays a clean value type used
// throughout the core, independent of any particular wire encoding.
type wireEvent struct {
	Kind          string                 `json:"kind"`
	Timestamp     string                 `json:"timestamp"`
	Payload       map[string]interface{} `json:"payload"`
	StateSnapshot map[string]interface{} `json:"state_snapshot,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Serialize encodes e as JSON with an ISO-8601 (RFC3339) UTC timestamp.
func Serialize(e Event) ([]byte, error) {
	w := wireEvent{
		Kind:          string(e.Kind),
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Payload:       map[string]interface{}(e.Payload),
		CorrelationID: e.CorrelationID,
	}
	if e.StateSnapshot != nil {
		w.StateSnapshot = map[string]interface{}(e.StateSnapshot)
	}
	return json.Marshal(w)
}

// Parse decodes data into an Event, rejecting any kind outside the closed set.
func Parse(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("events: parse: %w", err)
	}
	k := Kind(w.Kind)
	if !IsValid(k) {
		return Event{}, fmt.Errorf("events: parse: unknown kind %q", w.Kind)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("events: parse: bad timestamp: %w", err)
	}
	e := Event{
		Kind:          k,
		Timestamp:     ts,
		Payload:       Payload(w.Payload),
		CorrelationID: w.CorrelationID,
	}
	if w.StateSnapshot != nil {
		e.StateSnapshot = Payload(w.StateSnapshot)
	}
	if e.Payload == nil {
		e.Payload = Payload{}
	}
	return e, nil
}
