package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemActor is recorded for events not caused by an operator.
const SystemActor = "system"

// EnvelopeVersion is the only envelope layout consumers understand.
const EnvelopeVersion = 1

// PayloadEnvelope wraps every payload stored in outbox_events.payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      string          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// newEnvelope stamps data with a fresh event id.
func newEnvelope(data any, actor string, occurredAt time.Time) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode event data: %w", err)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	if actor == "" {
		actor = SystemActor
	}
	env := PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}
	return env, env.validate()
}

// DecodeEnvelope parses a stored payload and rejects envelopes a consumer
// could not act on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, env.validate()
}

func (e PayloadEnvelope) validate() error {
	if e.Version != EnvelopeVersion {
		return fmt.Errorf("unsupported envelope version %d", e.Version)
	}
	if e.EventID == "" {
		return errors.New("envelope has no event id")
	}
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("envelope has no data")
	}
	return nil
}
