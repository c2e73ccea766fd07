package quill

import (
	"time"

	"github.com/quillworks-ai/quill/ai"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusComplete    Status = "complete"
	StatusStageFailed Status = "stage_failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusStageFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to.Terminal()
	}
	return false
}

// RunState is the full lifecycle record of one pipeline execution. It is
// created pending, mutated only by its run loop, reaches exactly one
// terminal status, and is immutable thereafter. External readers receive
// snapshots, never the live value.
type RunState struct {
	RunID      string        `json:"run_id"`
	Stages     []string      `json:"stages"`
	StageIndex int           `json:"stage_index"`
	Status     Status        `json:"status"`
	Results    []StageResult `json:"results"`

	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a copy safe to hand outside the run loop. Payloads are
// shared and treated as read-only.
func (s *RunState) Snapshot() RunState {
	out := *s
	out.Stages = append([]string(nil), s.Stages...)
	out.Results = make([]StageResult, len(s.Results))
	copy(out.Results, s.Results)
	for i := range out.Results {
		out.Results[i].Warnings = append([]string(nil), s.Results[i].Warnings...)
	}
	return out
}

// Warnings collects every warning recorded across the run's results.
func (s *RunState) Warnings() []string {
	var out []string
	for _, result := range s.Results {
		out = append(out, result.Warnings...)
	}
	return out
}

// TotalUsage sums token usage across the run's results.
func (s *RunState) TotalUsage() ai.Usage {
	var total ai.Usage
	for _, result := range s.Results {
		total = total.Add(result.Usage)
	}
	return total
}
