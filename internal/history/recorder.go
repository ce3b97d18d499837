// Package history archives completed runs outside of any room's critical section.
package history

import (
	"context"
	"errors"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/repository"
)

// Recorder persists or publishes a completed run.
type Recorder interface {
	Record(ctx context.Context, run *model.Run) error
}

// SQLRecorder writes runs to the run archive.
type SQLRecorder struct {
	repo *repository.RunRepository
}

// NewSQLRecorder creates a recorder backed by repo.
func NewSQLRecorder(repo *repository.RunRepository) *SQLRecorder {
	return &SQLRecorder{repo: repo}
}

// Record implements Recorder.
func (r *SQLRecorder) Record(ctx context.Context, run *model.Run) error {
	return r.repo.Create(ctx, run)
}

// MultiRecorder fans a run out to several recorders.
type MultiRecorder []Recorder

// Record calls every recorder and joins their errors.
func (m MultiRecorder) Record(ctx context.Context, run *model.Run) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
