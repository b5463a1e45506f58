package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a single frame on the push channel, inbound or outbound.
// Inbound frames carry a server-assigned, monotonically increasing ID.
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Time time.Time       `json:"time,omitzero"`
}

// NewEvent marshals payload into a frame of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	ev := Event{Type: eventType}
	if payload == nil {
		return ev, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	ev.Data = data

	return ev, nil
}

// Decode unmarshals the frame payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s frame has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s frame: %w", e.Type, err)
	}
	return nil
}
