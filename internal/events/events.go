// Package events fans out JSON event envelopes to SSE subscribers.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypePing              = "ping"
	TypeResponsesRecorded = "responses_recorded"
	TypePassCompleted     = "pass_completed"
	TypeStoreChanged      = "store_changed"
	TypeConfigUpdated     = "config_updated"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

type ResponsesRecorded struct {
	Identity string `json:"identity"`
	Updated  int    `json:"updated"`
	Closed   int    `json:"closed"`
}

type PassCompleted struct {
	PassID string `json:"pass_id"`
	Day    string `json:"day"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

type StoreChanged struct {
	Path string `json:"path"`
}
