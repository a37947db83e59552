package events

import (
	"encoding/json"
	"time"
)

// Event types published on the hub and the redis channel.
const (
	TypeJobCreated          = "job_created"
	TypeJobStatusChanged    = "job_status_changed"
	TypeApplicationResponse = "application_response"
	TypeRunStarted          = "run_started"
	TypeRunFinished         = "run_finished"
	TypeConfigUpdated       = "config_updated"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes one event. Data that does not marshal is dropped.
func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	b, _ := json.Marshal(Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	})
	return string(b)
}
