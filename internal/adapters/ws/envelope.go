// Package ws carries JSON event envelopes over gorilla/websocket.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/yecs/internal/domain/model"
)

// Event names on the channel.
const (
	EventSubscribe       = "subscribe_advanced_score"
	EventUpdate          = "update_advanced_score"
	EventRefresh         = "refresh_advanced_score"
	EventAdvancedUpdated = "advanced_score_updated"
	EventScoreUpdated    = "score_updated"
	EventScoreError      = "score_error"
)

// Envelope is one frame: {"event": name, "data": object}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SubjectPayload is the body of subscribe and refresh frames.
type SubjectPayload struct {
	UserID string `json:"userId"`
}

// UpdatePayload carries an optimistic edit to the server.
type UpdatePayload struct {
	UserID  string        `json:"userId"`
	EditID  string        `json:"editId"`
	At      time.Time     `json:"at"`
	Factors model.Factors `json:"factors,omitempty"`
}

// ErrorPayload is the body of score_error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope encodes payload into an envelope.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	env.Data = b
	return env, nil
}

// Decode unmarshals the envelope body into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedFrame, e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedFrame, e.Event, err)
	}
	return nil
}

// SnapshotPayload decodes a score push. UserID is optional on the wire.
func (e Envelope) SnapshotPayload() (snap model.ScoreSnapshot, userID string, err error) {
	if err = e.Decode(&snap); err != nil {
		return model.ScoreSnapshot{}, "", err
	}
	var meta struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(e.Data, &meta)
	return snap, meta.UserID, nil
}

// IsSnapshot reports whether the event carries a score snapshot.
func (e Envelope) IsSnapshot() bool {
	return e.Event == EventScoreUpdated || e.Event == EventAdvancedUpdated
}
