package room

import (
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// RunRecord accumulates the results of one test run in a room.
type RunRecord struct {
	ID        string
	StartTime time.Time
	Results   map[string]model.TestResult
	Aggregate *model.AggregatedResult
}

func newRunRecord(id string, start time.Time) *RunRecord {
	return &RunRecord{
		ID:        id,
		StartTime: start,
		Results:   make(map[string]model.TestResult),
	}
}

// Completed reports whether the run has been aggregated.
func (r *RunRecord) Completed() bool {
	return r.Aggregate != nil
}

// Completion describes a run that has just been aggregated.
type Completion struct {
	RoomID      string
	RunID       string
	Config      *model.TestConfig
	StartedAt   time.Time
	CompletedAt time.Time
	Aggregate   model.AggregatedResult
	Results     map[string]model.TestResult
}

// Run converts the completion into an archived run.
func (c *Completion) Run() *model.Run {
	return &model.Run{
		ID:          c.RunID,
		RoomID:      c.RoomID,
		Config:      c.Config,
		Aggregate:   c.Aggregate,
		Results:     c.Results,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
	}
}
