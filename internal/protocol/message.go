// Package protocol defines the coordination envelope exchanged over a session
// and the typed payloads carried by each message type.
package protocol

import (
	"encoding/json"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// MessageType represents the type of an envelope.
type MessageType string

const (
	// Client -> coordinator operations
	TypeCreateRoom    MessageType = "create-room"
	TypeJoinRoom      MessageType = "join-room"
	TypeConfigureTest MessageType = "configure-test"
	TypeStartTest     MessageType = "start-test"
	TypeSubmitResults MessageType = "submit-results"
	TypeLeaveRoom     MessageType = "leave-room"

	// Coordinator -> client events
	TypeConnected      MessageType = "connected"
	TypeClientJoined   MessageType = "client-joined"
	TypeClientLeft     MessageType = "client-left"
	TypeHostChanged    MessageType = "host-changed"
	TypeTestConfigured MessageType = "test-configured"
	TypeTestStarted    MessageType = "test-started"
	TypeTestCompleted  MessageType = "test-completed"
	TypeError          MessageType = "error"
)

const responseSuffix = "-response"

// Response returns the envelope type used to reply to an operation.
func (t MessageType) Response() MessageType {
	return t + responseSuffix
}

// IsResponse reports whether t is a reply type, and if so which operation it answers.
func (t MessageType) IsResponse() (MessageType, bool) {
	s := string(t)
	if len(s) <= len(responseSuffix) || s[len(s)-len(responseSuffix):] != responseSuffix {
		return "", false
	}
	return MessageType(s[:len(s)-len(responseSuffix)]), true
}

// Envelope is the unit exchanged over a session in both directions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals a payload into an envelope of the given type.
func Encode(t MessageType, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Reply is the payload of a plain success/failure response.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CreateRoomReply answers create-room.
type CreateRoomReply struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
}

// JoinRoomReply answers join-room. Config is null until the host configures the room.
type JoinRoomReply struct {
	Success     bool              `json:"success"`
	RoomID      string            `json:"roomId"`
	Config      *model.TestConfig `json:"config"`
	Status      model.RoomStatus  `json:"status"`
	ClientCount int               `json:"clientCount"`
}

// ErrorPayload is carried by error envelopes.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Connected is sent to a session right after it connects.
type Connected struct {
	ClientID string `json:"clientId"`
}

// MembershipChanged is the payload of client-joined and client-left.
type MembershipChanged struct {
	ClientID    string `json:"clientId"`
	ClientCount int    `json:"clientCount"`
}

// HostChanged is broadcast when host succession happens.
type HostChanged struct {
	NewHost string `json:"newHost"`
}

// TestStarted is broadcast when the host starts a run.
type TestStarted struct {
	StartTime int64             `json:"startTime"`
	Config    *model.TestConfig `json:"config"`
}
