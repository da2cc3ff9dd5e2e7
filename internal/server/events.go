// Package server defines the wire-level event surface shared by clients and
// the room event router, plus utility helpers reused across client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Event names exchanged over the wire. Inbound and outbound events share the
// same names; the payload shape depends on direction.
const (
	EventNewUser     = "new user"
	EventUserJoined  = "user joined"
	EventOutputUsers = "output users"
	EventUserTyping  = "user typing"
	EventUserMessage = "user message"
	EventUserLeft    = "user left"
)

// Envelope is the frame format for every event: the event name plus an
// event-specific payload kept raw so relayed payloads survive untouched.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Announcement is the inbound payload for "new user" and "user typing"
// events: the sender's display name and target room.
type Announcement struct {
	UserName string `json:"userName"`
	Room     string `json:"room"`
}

// messageTarget picks the room field out of a "user message" payload. The
// rest of the payload is opaque to the router and relayed unmodified.
type messageTarget struct {
	Room string `json:"room"`
}

// Departure is the outbound payload for "user left": the departed member's
// name and the room's membership recomputed after the removal.
type Departure struct {
	UserWhoLeft string   `json:"userWhoLeft"`
	RoomUsers   []string `json:"roomUsers"`
}

// encodeEvent wraps a payload in an Envelope and marshals the whole frame.
func encodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
