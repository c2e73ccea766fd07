package event

import (
	"time"

	"github.com/quillworks-ai/quill/ai"
)

// Event interface identifies types that can be sent to the event channel.
// Events notify the caller of pipeline execution progress: stage
// transitions, streamed content fragments, and the final run outcome.
//
// The caller will typically use a switch statement to handle the event type.
// For example:
//
//	 for ev := range run.Next() {
//			switch e := ev.(type) {
//			case *StageStartedEvent:
//				fmt.Println(e.StageID)
//			case *StageProgressEvent:
//				fmt.Print(e.Fragment)
//			case *StageFinishedEvent:
//				fmt.Println(e.StageID, e.Status)
//			case *RunCompletedEvent:
//				fmt.Println("done")
//			case *RunFailedEvent:
//				fmt.Println(e.Err)
//			case *RunCancelledEvent:
//				fmt.Println("cancelled")
//			}
//		}
type Event interface {
	ID() string
}

// StageStartedEvent is emitted when a stage begins executing.
type StageStartedEvent struct {
	RunID     string
	StageID   string
	Sequence  int
	Timestamp time.Time
}

func (e *StageStartedEvent) ID() string { return e.RunID }

// StageProgressEvent carries a content fragment streamed by a stage while
// it runs. Fragments concatenate, in order, to the stage's final output.
// Stages that do not stream emit no progress events.
type StageProgressEvent struct {
	RunID    string
	StageID  string
	Fragment string
}

func (e *StageProgressEvent) ID() string { return e.RunID }

// StageFinishedEvent is emitted when a stage completes, successfully or
// not. Degraded completions carry the warnings the stage accumulated.
type StageFinishedEvent struct {
	RunID    string
	StageID  string
	Sequence int
	Status   string
	Warnings []string
	Duration time.Duration
	Usage    ai.Usage
	Err      error
}

func (e *StageFinishedEvent) ID() string { return e.RunID }

// RunCompletedEvent is the terminal event of a successful run.
type RunCompletedEvent struct {
	RunID    string
	Duration time.Duration
	Usage    ai.Usage
	Warnings []string
}

func (e *RunCompletedEvent) ID() string { return e.RunID }

// RunFailedEvent is the terminal event of a failed run.
type RunFailedEvent struct {
	RunID   string
	StageID string
	Err     error
}

func (e *RunFailedEvent) ID() string { return e.RunID }

// RunCancelledEvent is the terminal event of a cancelled run.
type RunCancelledEvent struct {
	RunID string
}

func (e *RunCancelledEvent) ID() string { return e.RunID }
