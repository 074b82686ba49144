package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Pagination carries list paging metadata in response envelopes.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// SolveRunStatus represents lifecycle phases for persisted timetables.
type SolveRunStatus string

const (
	SolveRunStatusDraft     SolveRunStatus = "DRAFT"
	SolveRunStatusPublished SolveRunStatus = "PUBLISHED"
	SolveRunStatusArchived  SolveRunStatus = "ARCHIVED"
)

// SolveRun captures a versioned, persisted timetable for an institution/term pair.
type SolveRun struct {
	ID            string         `db:"id" json:"id"`
	Label         string         `db:"label" json:"label"`
	Version       int            `db:"version" json:"version"`
	Status        SolveRunStatus `db:"status" json:"status"`
	Seed          int64          `db:"seed" json:"seed"`
	Days          int            `db:"days" json:"days"`
	PeriodsPerDay int            `db:"periods_per_day" json:"periods_per_day"`
	InitialScore  float64        `db:"initial_score" json:"initial_score"`
	BestScore     float64        `db:"best_score" json:"best_score"`
	Iterations    int            `db:"iterations" json:"iterations"`
	Meta          types.JSONText `db:"meta" json:"meta"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// SolveRunSlot is a concrete placement inside a persisted timetable.
type SolveRunSlot struct {
	ID         string    `db:"id" json:"id"`
	SolveRunID string    `db:"solve_run_id" json:"solve_run_id"`
	ActivityID string    `db:"activity_id" json:"activity_id"`
	Day        int       `db:"day" json:"day"`
	StartHour  int       `db:"start_hour" json:"start_hour"`
	Duration   int       `db:"duration" json:"duration"`
	RoomID     *string   `db:"room_id" json:"room_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SystemMetrics aggregates lightweight runtime stats for the metrics snapshot endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	SolvesTotal              uint64    `json:"solves_total"`
	AverageSolveDurationMs   float64   `json:"average_solve_duration_ms"`
	LastSolveScore           float64   `json:"last_solve_score"`
	LastSolveUnplaced        int       `json:"last_solve_unplaced"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
