package server

import (
	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/event"
	"github.com/quillworks-ai/quill/store"
)

// Wire event type tags, one per line of the run stream.
const (
	eventRunAccepted   = "run_accepted"
	eventStageStarted  = "stage_started"
	eventStageProgress = "stage_progress"
	eventStageFinished = "stage_finished"
	eventRunCompleted  = "run_completed"
	eventRunFailed     = "run_failed"
	eventRunCancelled  = "run_cancelled"
	eventRunState      = "run_state"
)

// wireEvent is the JSON envelope for one pipeline event.
type wireEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage,omitempty"`
	Sequence   int       `json:"sequence,omitempty"`
	Fragment   string    `json:"fragment,omitempty"`
	Status     string    `json:"status,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Usage      *ai.Usage `json:"usage,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// wireState is the final line of the run stream.
type wireState struct {
	Type string       `json:"type"`
	Run  store.Record `json:"run"`
}

func newWireEvent(ev event.Event) wireEvent {
	switch e := ev.(type) {
	case *event.StageStartedEvent:
		return wireEvent{
			Type:     eventStageStarted,
			RunID:    e.RunID,
			Stage:    e.StageID,
			Sequence: e.Sequence,
		}
	case *event.StageProgressEvent:
		return wireEvent{
			Type:     eventStageProgress,
			RunID:    e.RunID,
			Stage:    e.StageID,
			Fragment: e.Fragment,
		}
	case *event.StageFinishedEvent:
		out := wireEvent{
			Type:       eventStageFinished,
			RunID:      e.RunID,
			Stage:      e.StageID,
			Sequence:   e.Sequence,
			Status:     e.Status,
			Warnings:   e.Warnings,
			DurationMS: e.Duration.Milliseconds(),
		}
		usage := e.Usage
		out.Usage = &usage
		if e.Err != nil {
			out.Error = e.Err.Error()
		}
		return out
	case *event.RunCompletedEvent:
		usage := e.Usage
		return wireEvent{
			Type:       eventRunCompleted,
			RunID:      e.RunID,
			Warnings:   e.Warnings,
			DurationMS: e.Duration.Milliseconds(),
			Usage:      &usage,
		}
	case *event.RunFailedEvent:
		out := wireEvent{
			Type:  eventRunFailed,
			RunID: e.RunID,
			Stage: e.StageID,
		}
		if e.Err != nil {
			out.Error = e.Err.Error()
		}
		return out
	case *event.RunCancelledEvent:
		return wireEvent{
			Type:  eventRunCancelled,
			RunID: e.RunID,
		}
	default:
		return wireEvent{Type: "event", RunID: ev.ID()}
	}
}
