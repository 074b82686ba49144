package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// SolveRunRepository persists versioned timetable runs.
type SolveRunRepository struct {
	db *sqlx.DB
}

// NewSolveRunRepository constructs repository.
func NewSolveRunRepository(db *sqlx.DB) *SolveRunRepository {
	return &SolveRunRepository{db: db}
}

func (r *SolveRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for the label.
func (r *SolveRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.SolveRun) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.SolveRunStatusDraft
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM solve_runs WHERE label = $1`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.Label); err != nil {
		return fmt.Errorf("compute next run version: %w", err)
	}

	const insertQuery = `
INSERT INTO solve_runs (id, label, version, status, seed, days, periods_per_day, initial_score, best_score, iterations, meta, created_at, updated_at)
VALUES (:id, :label, :version, :status, :seed, :days, :periods_per_day, :initial_score, :best_score, :iterations, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns persisted runs, optionally filtered by status, newest first.
func (r *SolveRunRepository) List(ctx context.Context, status string, limit, offset int) ([]models.SolveRun, int, error) {
	var (
		runs  []models.SolveRun
		total int
	)
	if status != "" {
		const countQuery = `SELECT COUNT(*) FROM solve_runs WHERE status = $1`
		if err := r.db.GetContext(ctx, &total, countQuery, status); err != nil {
			return nil, 0, fmt.Errorf("count runs: %w", err)
		}
		const query = `SELECT id, label, version, status, seed, days, periods_per_day, initial_score, best_score, iterations, meta, created_at, updated_at
FROM solve_runs WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		if err := r.db.SelectContext(ctx, &runs, query, status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("list runs: %w", err)
		}
		return runs, total, nil
	}

	const countQuery = `SELECT COUNT(*) FROM solve_runs`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}
	const query = `SELECT id, label, version, status, seed, days, periods_per_day, initial_score, best_score, iterations, meta, created_at, updated_at
FROM solve_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &runs, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	return runs, total, nil
}

// FindByID loads a run by its identifier.
func (r *SolveRunRepository) FindByID(ctx context.Context, id string) (*models.SolveRun, error) {
	const query = `SELECT id, label, version, status, seed, days, periods_per_day, initial_score, best_score, iterations, meta, created_at, updated_at
FROM solve_runs WHERE id = $1`
	var run models.SolveRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateStatus transitions a run between lifecycle states.
func (r *SolveRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SolveRunStatus) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `UPDATE solve_runs SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := target.ExecContext(ctx, query, status, now, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("run status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored run version.
func (r *SolveRunRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM solve_runs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
