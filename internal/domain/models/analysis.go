package models

import (
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
)

// Request for submitting an analysis run.

type AnalysisRequest struct {
	Segments         int    `json:"segments" default:"2" validate:"gte=2,lte=10"`
	MinSegmentLength int    `json:"min_segment_length" default:"30" validate:"gte=2"`
	Chains           int    `json:"chains" default:"4" validate:"gte=2,lte=16"`
	Draws            int    `json:"draws" default:"2000" validate:"gte=100,lte=100000"`
	Warmup           int    `json:"warmup" default:"1000" validate:"gte=100,lte=100000"`
	Seed             int64  `json:"seed"`
	From             string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To               string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Run lifecycle states.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// AnalysisRun tracks a single submitted analysis through its lifecycle.
type AnalysisRun struct {
	ID          string               `json:"id"`
	Status      RunStatus            `json:"status"`
	Request     AnalysisRequest      `json:"request"`
	SubmittedAt time.Time            `json:"submitted_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
	Error       string               `json:"error,omitempty"`
	Result      *changepoint.Result  `json:"result,omitempty"`
}

// RunProgress is a single progress event streamed to websocket subscribers.
type RunProgress struct {
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	Chain     int       `json:"chain"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}
