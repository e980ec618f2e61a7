package schemas

import (
	"context"
	"time"
)

// -- Store Interface --

// RunStore persists run reports so that verification history can be queried later.
// This abstraction keeps the CLI independent of the database implementation.
type RunStore interface {
	// SaveRun records a finished run and its step results.
	SaveRun(ctx context.Context, report *RunReport) error
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, scenario string, limit int) ([]RunSummary, error)
}

// RunSummary is the stored headline of a run.
type RunSummary struct {
	ID         string    `json:"id"`
	Scenario   string    `json:"scenario"`
	Driver     string    `json:"driver"`
	State      RunState  `json:"state"`
	TargetURL  string    `json:"target_url"`
	Artifact   string    `json:"artifact,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}
