// Package signals carries typed messages across the boundary between the
// front-end and the backend.
package signals

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire framing of every signal.
type Envelope struct {
	Signal  string          `json:"signal"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope for the named signal.
// A nil payload produces an envelope without one.
func NewEnvelope(name string, payload interface{}) (Envelope, error) {
	env := Envelope{Signal: name}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	env.Payload = data
	return env, nil
}

// Decode unmarshals the payload into out. An empty payload leaves out untouched.
func (e Envelope) Decode(out interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Signal, err)
	}
	return nil
}
