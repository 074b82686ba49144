package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// SolveRunSlotRepository manages placements attached to persisted runs.
type SolveRunSlotRepository struct {
	db *sqlx.DB
}

// NewSolveRunSlotRepository builds repository.
func NewSolveRunSlotRepository(db *sqlx.DB) *SolveRunSlotRepository {
	return &SolveRunSlotRepository{db: db}
}

func (r *SolveRunSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores the placements of one run.
func (r *SolveRunSlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.SolveRunSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO solve_run_slots (id, solve_run_id, activity_id, day, start_hour, duration, room_id, created_at)
VALUES (:id, :solve_run_id, :activity_id, :day, :start_hour, :duration, :room_id, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert run slot: %w", err)
		}
	}
	return nil
}

// ListByRun returns placements ordered by day/start hour for a run.
func (r *SolveRunSlotRepository) ListByRun(ctx context.Context, runID string) ([]models.SolveRunSlot, error) {
	const query = `SELECT id, solve_run_id, activity_id, day, start_hour, duration, room_id, created_at
FROM solve_run_slots WHERE solve_run_id = $1 ORDER BY day ASC, start_hour ASC`
	var slots []models.SolveRunSlot
	if err := r.db.SelectContext(ctx, &slots, query, runID); err != nil {
		return nil, fmt.Errorf("list run slots: %w", err)
	}
	return slots, nil
}
