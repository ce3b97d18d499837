package model

import "errors"

var (
	// ErrRoomNotFound is returned when a room id does not name an active room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotInRoom is returned when a session that is not bound to a room issues a room operation.
	ErrNotInRoom = errors.New("not in a room")

	// ErrNotHost is returned when a non-host member attempts a host-only operation.
	ErrNotHost = errors.New("only the host can perform this operation")

	// ErrNotConfigured is returned when a test is started in a room whose status is not configured.
	ErrNotConfigured = errors.New("test not configured")

	// ErrNoActiveRun is returned when results are submitted to a room that never started a test.
	ErrNoActiveRun = errors.New("no test running")

	// ErrRunNotFound is returned when an archived run is not found.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidConfig is returned when a test configuration cannot be executed.
	ErrInvalidConfig = errors.New("invalid test configuration")
)
