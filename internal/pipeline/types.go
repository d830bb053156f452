package pipeline

import (
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/forecast"
	"github.com/google/uuid"
)

// Config holds the per-cycle policy.
type Config struct {
	Horizon      int
	LagDepth     int
	ModelName    string
	TrainRatio   float64
	TreeDepth    int
	TreeMinLeaf  int
	WorkerCount  int
	AlertChannel string
	UnitDivisor  float64
	UnitLabel    string
	// AllowStacking records new drafts even when the material already has an
	// open (pending or approved) order.
	AllowStacking bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Horizon:      4,
		LagDepth:     3,
		ModelName:    forecast.ModelLinear,
		WorkerCount:  4,
		AlertChannel: "shortage",
		UnitDivisor:  1,
	}
}

// CycleStatus represents the current state of a cycle run
type CycleStatus string

const (
	StatusRunning   CycleStatus = "running"
	StatusCompleted CycleStatus = "completed"
	StatusFailed    CycleStatus = "failed"
)

// CycleRun tracks one material's pass through the pipeline.
type CycleRun struct {
	ID           uuid.UUID   `json:"id"`
	MaterialID   string      `json:"material_id"`
	Source       string      `json:"source"`
	Status       CycleStatus `json:"status"`
	Periods      int         `json:"periods"`
	Orders       int         `json:"orders"`
	Accuracy     *float64    `json:"accuracy,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
}

// CycleResult is everything one cycle computed and persisted.
type CycleResult struct {
	RunID          uuid.UUID                `json:"run_id"`
	MaterialID     string                   `json:"material_id"`
	Source         string                   `json:"source"`
	SourceIdentity string                   `json:"source_identity"`
	Periods        []domain.PeriodAggregate `json:"periods"`
	CurrentStock   float64                  `json:"current_stock"`
	Forecast       forecast.Forecast        `json:"forecast"`
	Demand         float64                  `json:"demand"`
	Orders         []domain.Order           `json:"orders"`
	Withheld       []domain.OrderDraft      `json:"withheld,omitempty"`
	Shortage       float64                  `json:"shortage"`
	Fingerprint    string                   `json:"fingerprint,omitempty"`
	AlertDecision  string                   `json:"alert_decision"`
	CompletedAt    time.Time                `json:"completed_at"`
}

// Report collects the outcome of a multi-material run.
type Report struct {
	Results  []CycleResult     `json:"results"`
	Failures map[string]string `json:"failures,omitempty"`
}
