// Package repository provides data access for archived test runs.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// RunRepository provides data access for completed runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, room_id, config, aggregate, results, started_at, completed_at`

// Create inserts a completed run.
func (r *RunRepository) Create(ctx context.Context, run *model.Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	aggregateJSON, err := json.Marshal(run.Aggregate)
	if err != nil {
		return fmt.Errorf("failed to serialize aggregate: %w", err)
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to serialize results: %w", err)
	}

	query := `
		INSERT INTO runs (id, room_id, config, aggregate, results, client_count, total_requests, throughput, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.RoomID,
		string(configJSON),
		string(aggregateJSON),
		string(resultsJSON),
		run.Aggregate.ClientCount,
		run.Aggregate.TotalRequests,
		run.Aggregate.Throughput,
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List retrieves the most recently completed runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY completed_at DESC, id DESC LIMIT ?`
	return r.query(ctx, query, limit)
}

// ListByRoom retrieves the runs completed in one room, newest first.
func (r *RunRepository) ListByRoom(ctx context.Context, roomID string) ([]*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE room_id = ? ORDER BY completed_at DESC, id DESC`
	return r.query(ctx, query, roomID)
}

// Delete removes a run from the archive.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrRunNotFound
	}

	return nil
}

// DeleteBefore removes runs completed before the cutoff and returns how many were removed.
func (r *RunRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE completed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

func (r *RunRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.Run, error) {
	run := &model.Run{}
	var configJSON sql.NullString
	var aggregateJSON, resultsJSON string

	if err := row.Scan(
		&run.ID,
		&run.RoomID,
		&configJSON,
		&aggregateJSON,
		&resultsJSON,
		&run.StartedAt,
		&run.CompletedAt,
	); err != nil {
		return nil, err
	}

	if configJSON.Valid && configJSON.String != "" && configJSON.String != "null" {
		run.Config = &model.TestConfig{}
		if err := json.Unmarshal([]byte(configJSON.String), run.Config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(aggregateJSON), &run.Aggregate); err != nil {
		return nil, fmt.Errorf("failed to parse aggregate: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	return run, nil
}
