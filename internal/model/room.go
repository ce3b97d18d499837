package model

import "time"

// RoomStatus represents the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"
	RoomStatusConfigured RoomStatus = "configured"
	RoomStatusRunning    RoomStatus = "running"
	RoomStatusCompleted  RoomStatus = "completed"
)

// RoomSnapshot is a point-in-time copy of a room's state.
type RoomSnapshot struct {
	ID          string      `json:"id"`
	Host        string      `json:"host"`
	Members     []string    `json:"members"`
	ClientCount int         `json:"clientCount"`
	Status      RoomStatus  `json:"status"`
	Config      *TestConfig `json:"config"`
	Submitted   int         `json:"submitted"`
}

// Run is an archived, completed test run.
type Run struct {
	ID          string                `json:"id"`
	RoomID      string                `json:"roomId"`
	Config      *TestConfig           `json:"config"`
	Aggregate   AggregatedResult      `json:"aggregate"`
	Results     map[string]TestResult `json:"results"`
	StartedAt   time.Time             `json:"startedAt"`
	CompletedAt time.Time             `json:"completedAt"`
}

// Duration returns the wall-clock time between start and completion.
func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
