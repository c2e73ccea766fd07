package quill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/event"
	"github.com/quillworks-ai/quill/trace"
)

// Run is the handle for one pipeline execution. It owns the run state,
// executes stages strictly in order on its own goroutine, and delivers
// events either to the configured sink or through Next. Callers observe
// terminal state via Wait or by polling State; Cancel stops the run
// cooperatively at the next stage boundary and aborts any in-flight model
// call.
//
// Callers that do not set a sink must drain Next or call Wait.
type Run struct {
	id      string
	brief   Brief
	profile BrandProfile
	stages  []Stage
	models  map[string]*ai.Model

	ctx        context.Context
	cancelFunc context.CancelFunc

	sink   StreamSink
	buffer *eventBuffer
	events chan event.Event
	done   chan struct{}
	trace  *trace.Run
	Logger *slog.Logger

	mu       sync.Mutex
	state    RunState
	artifact *Artifact
	err      error
}

func newRun(ctx context.Context, p *Pipeline, brief Brief, profile BrandProfile) *Run {
	runID := uuid.New().String()
	runCtx, cancelFunc := context.WithCancel(ctx)

	stages := pipelineStages()
	models := make(map[string]*ai.Model, len(stages))
	for _, stage := range stages {
		models[stage.ID()] = p.stageModel(stage.ID())
	}

	var traceRun *trace.Run
	if p.Tracer != nil {
		traceRun = p.Tracer.NewRun(runID)
	}

	now := time.Now()
	r := &Run{
		id:         runID,
		brief:      brief,
		profile:    profile,
		stages:     stages,
		models:     models,
		ctx:        runCtx,
		cancelFunc: cancelFunc,
		sink:       p.Sink,
		buffer:     newEventBuffer(defaultEventBuffer),
		events:     make(chan event.Event, defaultEventBuffer),
		done:       make(chan struct{}),
		trace:      traceRun,
		Logger:     slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: p.LogLevel})).With("run_id", runID),
		state: RunState{
			RunID:      runID,
			Stages:     append([]string(nil), StageOrder...),
			StageIndex: -1,
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	return r
}

func (r *Run) start() {
	go r.pump()
	go r.loop()
}

func (r *Run) ID() string {
	return r.id
}

// Cancel requests cooperative cancellation. The run observes it at the
// next stage boundary; an in-flight model call is aborted and its partial
// result discarded.
func (r *Run) Cancel() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
}

// Next returns the run's event channel. It is closed once the terminal
// event has been delivered. When an external sink is configured the
// channel carries no events and simply closes at the end of the run.
func (r *Run) Next() <-chan event.Event {
	return r.events
}

// State returns a snapshot of the run's current state.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

// Wait blocks until the run reaches a terminal state and all events have
// been delivered, then returns the assembled artifact or the run's
// terminal error.
func (r *Run) Wait() (*Artifact, error) {
	for range r.events {
		// drain for callers that do not consume Next themselves
	}
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.artifact, nil
}

// Artifact returns the assembled output of a complete run.
func (r *Run) Artifact() (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.artifact == nil {
		return nil, fmt.Errorf("%w: run %s is %s, artifact exists only for complete runs", ErrValidation, r.id, r.state.Status)
	}
	return r.artifact, nil
}

// TraceFilepath returns the path of the run's trace file, if tracing is
// enabled.
func (r *Run) TraceFilepath() string {
	if r.trace == nil {
		return ""
	}
	return r.trace.Filepath()
}

// pump delivers buffered events in order, to the sink when one is
// configured, otherwise to the event channel.
func (r *Run) pump() {
	defer close(r.events)
	for {
		ev, ok := r.buffer.pop()
		if !ok {
			return
		}
		if r.sink != nil {
			r.sink.Emit(ev)
			continue
		}
		r.events <- ev
	}
}

func (r *Run) queueEvent(ev event.Event) {
	r.buffer.push(ev)
}

func (r *Run) loop() {
	defer close(r.done)
	defer func() {
		if n := r.buffer.droppedCount(); n > 0 {
			r.Logger.Warn("dropped progress events on slow consumer", "count", n)
		}
		r.buffer.close()
		if r.trace != nil {
			r.trace.Close()
		}
	}()

	started := time.Now()
	r.setStatus(StatusRunning)
	r.Logger.Info("run started", "topic", r.brief.Topic, "content_type", r.brief.ContentType, "stages", len(r.stages))

	pctx := NewContext(r.brief, r.profile)

	for i, stage := range r.stages {
		if r.ctx.Err() != nil {
			r.finishCancelled(i)
			return
		}

		result, err := r.executeStage(i, stage, pctx)
		if err != nil {
			if r.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				// interrupted mid-stage: the partial result is discarded
				r.finishCancelled(i)
				return
			}
			r.appendResult(result)
			r.finishFailed(stage.ID(), err)
			return
		}

		if recordErr := pctx.Record(result); recordErr != nil {
			r.appendResult(result)
			r.finishFailed(stage.ID(), fmt.Errorf("record stage result: %w", recordErr))
			return
		}
		r.appendResult(result)
	}

	r.finishComplete(started)
}

func (r *Run) executeStage(index int, stage Stage, pctx *Context) (StageResult, error) {
	stageID := stage.ID()
	logger := r.Logger.With("stage", stageID)
	result := StageResult{StageID: stageID, StartedAt: time.Now()}

	r.setStageIndex(index)
	r.queueEvent(&event.StageStartedEvent{
		RunID:     r.id,
		StageID:   stageID,
		Sequence:  index,
		Timestamp: result.StartedAt,
	})
	logger.Info("stage started", "sequence", index)

	exec := &Execution{
		Context: pctx,
		Logger:  logger,
		stageID: stageID,
		model:   r.models[stageID],
		trace:   r.trace,
		progress: func(fragment string) {
			r.queueEvent(&event.StageProgressEvent{RunID: r.id, StageID: stageID, Fragment: fragment})
		},
	}

	err := stage.Validate(pctx)
	var payload Payload
	if err == nil {
		payload, err = stage.Execute(r.ctx, exec)
	}

	result.Warnings = exec.Warnings()
	result.Usage = exec.Usage()
	result.FinishedAt = time.Now()
	duration := result.FinishedAt.Sub(result.StartedAt)

	if err != nil {
		result.Status = StageFailed
		result.Error = err.Error()
		result.ErrorKind = ClassifyError(err)
		if r.trace != nil {
			r.trace.RecordStage(stageID, string(StageFailed), duration, err)
		}
		if r.ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			logger.Error("stage failed", "kind", result.ErrorKind, "duration", duration, "error", err)
			r.queueEvent(&event.StageFinishedEvent{
				RunID:    r.id,
				StageID:  stageID,
				Sequence: index,
				Status:   string(StageFailed),
				Warnings: result.Warnings,
				Duration: duration,
				Usage:    result.Usage,
				Err:      err,
			})
		}
		return result, err
	}

	result.Status = StageSucceeded
	result.Payload = payload
	if r.trace != nil {
		r.trace.RecordStage(stageID, string(StageSucceeded), duration, nil)
	}
	logger.Info("stage finished", "duration", duration, "warnings", len(result.Warnings), "tokens", result.Usage.TotalTokens)
	r.queueEvent(&event.StageFinishedEvent{
		RunID:    r.id,
		StageID:  stageID,
		Sequence: index,
		Status:   string(StageSucceeded),
		Warnings: result.Warnings,
		Duration: duration,
		Usage:    result.Usage,
	})
	return result, nil
}

func (r *Run) setStatus(to Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Status.canTransition(to) {
		r.Logger.Error("illegal status transition", "from", r.state.Status, "to", to)
		return
	}
	r.state.Status = to
	r.state.UpdatedAt = time.Now()
}

func (r *Run) setStageIndex(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.StageIndex = index
	r.state.UpdatedAt = time.Now()
}

func (r *Run) appendResult(result StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Results = append(r.state.Results, result)
	r.state.UpdatedAt = time.Now()
}

func (r *Run) finishComplete(started time.Time) {
	r.mu.Lock()
	tentative := r.state.Snapshot()
	tentative.Status = StatusComplete
	artifact, err := AssembleOutput(tentative)
	if err != nil {
		r.mu.Unlock()
		r.finishFailed(StageOutputGenerator, err)
		return
	}
	r.state.Status = StatusComplete
	r.state.UpdatedAt = time.Now()
	r.artifact = artifact
	warnings := r.state.Warnings()
	usage := r.state.TotalUsage()
	r.mu.Unlock()

	duration := time.Since(started)
	r.Logger.Info("run complete", "duration", duration, "tokens", usage.TotalTokens, "warnings", len(warnings))
	r.queueEvent(&event.RunCompletedEvent{
		RunID:    r.id,
		Duration: duration,
		Usage:    usage,
		Warnings: warnings,
	})
}

func (r *Run) finishFailed(stageID string, err error) {
	r.mu.Lock()
	if r.state.Status.canTransition(StatusStageFailed) {
		r.state.Status = StatusStageFailed
	}
	r.state.FailedStage = stageID
	r.state.Error = err.Error()
	r.state.ErrorKind = ClassifyError(err)
	r.state.UpdatedAt = time.Now()
	r.err = err
	r.mu.Unlock()

	r.Logger.Error("run failed", "stage", stageID, "kind", ClassifyError(err), "error", err)
	r.queueEvent(&event.RunFailedEvent{RunID: r.id, StageID: stageID, Err: err})
}

func (r *Run) finishCancelled(stageIndex int) {
	r.mu.Lock()
	if r.state.Status.canTransition(StatusCancelled) {
		r.state.Status = StatusCancelled
	}
	r.state.UpdatedAt = time.Now()
	r.err = fmt.Errorf("run cancelled before stage %d completed: %w", stageIndex, context.Canceled)
	r.mu.Unlock()

	r.Logger.Info("run cancelled", "stage_index", stageIndex)
	r.queueEvent(&event.RunCancelledEvent{RunID: r.id})
}
