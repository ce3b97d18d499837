package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// Protocol error messages sent back to the originating session.
const (
	MsgInvalidFormat  = "Invalid message format"
	MsgUnknownType    = "Unknown message type"
	MsgInvalidPayload = "Invalid payload"
)

// ProtocolError is returned when an inbound envelope cannot be decoded into a request.
type ProtocolError struct {
	Message string
	Type    MessageType
}

func (e *ProtocolError) Error() string {
	if e.Type != "" {
		return e.Message + ": " + string(e.Type)
	}
	return e.Message
}

// Request is one decoded client operation.
type Request interface {
	Op() MessageType
}

// CreateRoom requests a new room hosted by the sender.
type CreateRoom struct{}

// JoinRoom requests membership in an existing room.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// ConfigureTest replaces the room's config.
type ConfigureTest struct {
	Config *model.TestConfig `json:"config"`
}

// StartTest signals every member to start the configured load.
type StartTest struct{}

// SubmitResults reports the sender's result for the current run.
type SubmitResults struct {
	Results *model.TestResult `json:"results"`
}

// LeaveRoom removes the sender from its room.
type LeaveRoom struct{}

func (CreateRoom) Op() MessageType    { return TypeCreateRoom }
func (JoinRoom) Op() MessageType      { return TypeJoinRoom }
func (ConfigureTest) Op() MessageType { return TypeConfigureTest }
func (StartTest) Op() MessageType     { return TypeStartTest }
func (SubmitResults) Op() MessageType { return TypeSubmitResults }
func (LeaveRoom) Op() MessageType     { return TypeLeaveRoom }

// Decode parses an inbound envelope into a typed request.
// Anything outside the enumerated operations is rejected with a *ProtocolError.
func Decode(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Message: MsgInvalidFormat}
	}

	switch env.Type {
	case TypeCreateRoom:
		return CreateRoom{}, nil
	case TypeStartTest:
		return StartTest{}, nil
	case TypeLeaveRoom:
		return LeaveRoom{}, nil
	case TypeJoinRoom:
		var req JoinRoom
		if err := decodePayload(env, &req); err != nil {
			return nil, err
		}
		return req, nil
	case TypeConfigureTest:
		var req ConfigureTest
		if err := decodePayload(env, &req); err != nil {
			return nil, err
		}
		if req.Config == nil {
			return nil, &ProtocolError{Message: MsgInvalidPayload, Type: env.Type}
		}
		return req, nil
	case TypeSubmitResults:
		var req SubmitResults
		if err := decodePayload(env, &req); err != nil {
			return nil, err
		}
		if req.Results == nil {
			return nil, &ProtocolError{Message: MsgInvalidPayload, Type: env.Type}
		}
		return req, nil
	default:
		return nil, &ProtocolError{Message: MsgUnknownType}
	}
}

func decodePayload(env Envelope, v interface{}) error {
	if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
		return &ProtocolError{Message: MsgInvalidPayload, Type: env.Type}
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return &ProtocolError{Message: MsgInvalidPayload, Type: env.Type}
	}
	return nil
}
