package history

import (
	"context"
	"time"

	"github.com/armada-loadtest/coordinator/internal/buffer"
	"github.com/armada-loadtest/coordinator/internal/model"
)

// DefaultMemoryCapacity is the number of runs a MemoryStore keeps when no
// capacity is given.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent archived runs in memory. It backs the run
// archive API when no database is configured.
type MemoryStore struct {
	runs *buffer.Ring[*model.Run]
}

// NewMemoryStore creates a store holding at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{runs: buffer.NewRing[*model.Run](capacity)}
}

// Record implements Recorder.
func (s *MemoryStore) Record(_ context.Context, run *model.Run) error {
	s.runs.Push(run)
	return nil
}

// GetByID returns the run with the given id.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.Run, error) {
	run, ok := s.runs.Find(func(r *model.Run) bool { return r.ID == id })
	if !ok {
		return nil, model.ErrRunNotFound
	}
	return run, nil
}

// List returns up to limit runs, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*model.Run, error) {
	return s.runs.Newest(limit), nil
}

// ListByRoom returns the runs of one room, newest first.
func (s *MemoryStore) ListByRoom(_ context.Context, roomID string) ([]*model.Run, error) {
	runs := make([]*model.Run, 0)
	for _, r := range s.runs.Newest(0) {
		if r.RoomID == roomID {
			runs = append(runs, r)
		}
	}
	return runs, nil
}

// Delete removes a run.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if s.runs.RemoveFunc(func(r *model.Run) bool { return r.ID == id }) == 0 {
		return model.ErrRunNotFound
	}
	return nil
}

// DeleteBefore implements Pruner.
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	n := s.runs.RemoveFunc(func(r *model.Run) bool { return r.CompletedAt.Before(cutoff) })
	return int64(n), nil
}
