package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RunRepository persists cycle run tracking rows.
type RunRepository interface {
	CreateRun(ctx context.Context, run *CycleRun) error
	UpdateRun(ctx context.Context, run *CycleRun) error
	RecentRuns(ctx context.Context, limit int) ([]CycleRun, error)
}

// Repository handles database operations for cycle tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cycle run repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRun(ctx context.Context, run *CycleRun) error {
	query := `
		INSERT INTO cycle_runs (
			id, material_id, source, status, periods, orders, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.MaterialID, run.Source, run.Status, run.Periods, run.Orders, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create cycle run: %w", err)
	}
	return nil
}

func (r *Repository) UpdateRun(ctx context.Context, run *CycleRun) error {
	query := `
		UPDATE cycle_runs
		SET status = $1, periods = $2, orders = $3, accuracy = $4,
		    completed_at = $5, error_message = $6
		WHERE id = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		run.Status, run.Periods, run.Orders, run.Accuracy,
		run.CompletedAt, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle run: %w", err)
	}
	return nil
}

func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]CycleRun, error) {
	query := `
		SELECT id, material_id, source, status, periods, orders, accuracy,
		       started_at, completed_at, error_message
		FROM cycle_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle runs: %w", err)
	}
	defer rows.Close()

	var runs []CycleRun
	for rows.Next() {
		var run CycleRun
		if err := rows.Scan(
			&run.ID, &run.MaterialID, &run.Source, &run.Status, &run.Periods, &run.Orders,
			&run.Accuracy, &run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MemoryRepository keeps the most recent runs in memory when no database is
// configured.
type MemoryRepository struct {
	mu    sync.Mutex
	limit int
	runs  []CycleRun
	index map[uuid.UUID]int
}

func NewMemoryRepository(limit int) *MemoryRepository {
	if limit <= 0 {
		limit = 500
	}
	return &MemoryRepository{limit: limit, index: make(map[uuid.UUID]int)}
}

func (r *MemoryRepository) CreateRun(_ context.Context, run *CycleRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.runs) >= r.limit {
		r.runs = append(r.runs[:0:0], r.runs[1:]...)
		r.reindex()
	}
	r.index[run.ID] = len(r.runs)
	r.runs = append(r.runs, *run)
	return nil
}

func (r *MemoryRepository) UpdateRun(_ context.Context, run *CycleRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[run.ID]
	if !ok {
		return fmt.Errorf("cycle run %s not tracked", run.ID)
	}
	r.runs[i] = *run
	return nil
}

// RecentRuns returns newest first.
func (r *MemoryRepository) RecentRuns(_ context.Context, limit int) ([]CycleRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.runs) {
		limit = len(r.runs)
	}
	out := make([]CycleRun, 0, limit)
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[i])
	}
	return out, nil
}

func (r *MemoryRepository) reindex() {
	r.index = make(map[uuid.UUID]int, len(r.runs))
	for i, run := range r.runs {
		r.index[run.ID] = i
	}
}
