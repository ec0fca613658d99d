package models

import (
	"time"

	"github.com/google/uuid"
)

// Import run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ImportRun is the audit record of one catalog import.
type ImportRun struct {
	ID          uuid.UUID  `json:"id"`
	Source      string     `json:"source"`
	Trigger     string     `json:"trigger"` // manual, feed, schedule
	Status      string     `json:"status"`
	RowsRead    int        `json:"rows_read"`
	RowsDropped int        `json:"rows_dropped"`
	Imported    int        `json:"imported"`
	Deactivated int        `json:"deactivated"`
	DerivedIDs  int        `json:"derived_ids"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Duration is zero while the run is still going.
func (r ImportRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
