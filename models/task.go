package models

import (
	"time"

	"github.com/google/uuid"
)

// Analysis task statuses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// AnalysisTask tracks a bulk property refresh. Clients create one via
// POST /api/properties/update and poll GET /api/analysis/:task_id.
type AnalysisTask struct {
	TaskID      uuid.UUID  `json:"task_id"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	Progress    float64    `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
