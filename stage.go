package quill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/trace"
)

// Stage ids, in declared execution order.
const (
	StageBrandAnalyzer   = "brand_analyzer"
	StageContentPlanner  = "content_planner"
	StageWriter          = "writer"
	StageEditor          = "editor"
	StageSchemaGenerator = "schema_generator"
	StageOutputGenerator = "output_generator"
)

// StageOrder is the fixed sequence every run executes.
var StageOrder = []string{
	StageBrandAnalyzer,
	StageContentPlanner,
	StageWriter,
	StageEditor,
	StageSchemaGenerator,
	StageOutputGenerator,
}

type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// StageResult is the immutable record of one stage execution. The run
// appends results in stage order and never rewrites one.
type StageResult struct {
	StageID    string      `json:"stage_id"`
	Status     StageStatus `json:"status"`
	Payload    Payload     `json:"payload,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Usage      ai.Usage    `json:"usage"`
	Error      string      `json:"error,omitempty"`
	ErrorKind  ErrorKind   `json:"error_kind,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Stage is the contract every pipeline stage implements. Validate fails
// fast when required context is missing; Execute builds the model request,
// parses the response, and returns the stage's typed payload. Identical
// context must yield a semantically equivalent request.
type Stage interface {
	ID() string
	Validate(c *Context) error
	Execute(ctx context.Context, exec *Execution) (Payload, error)
}

// pipelineStages returns fresh stage values in declared order.
func pipelineStages() []Stage {
	return []Stage{
		&brandAnalyzerStage{},
		&contentPlannerStage{},
		&writerStage{},
		&editorStage{},
		&schemaGeneratorStage{},
		&outputGeneratorStage{},
	}
}

// Execution carries everything a stage needs for one run: the read-only
// context, the stage's tuned model, a progress emitter, and recorders for
// warnings and token usage. The run creates one per stage and collects
// the diagnostics afterwards.
type Execution struct {
	Context *Context
	Logger  *slog.Logger

	stageID  string
	model    *ai.Model
	trace    *trace.Run
	progress func(fragment string)

	warnings []string
	usage    ai.Usage
}

// Call makes a single model call and accounts its token usage to the
// stage.
func (e *Execution) Call(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
	response, err := e.model.Call(ctx, messages)
	e.usage = e.usage.Add(response.Response.Usage)
	if e.trace != nil {
		e.trace.RecordCall(e.stageID, e.model.ModelName, messages, response, err)
	}
	return response, err
}

// Stream makes a streaming model call, forwarding each content fragment to
// onFragment. Usage is accounted like Call.
func (e *Execution) Stream(ctx context.Context, messages []ai.Message, onFragment func(string)) (ai.AIMessage, error) {
	response, err := e.model.Stream(ctx, messages, func(chunk ai.AIMessage) error {
		if chunk.Content != "" && onFragment != nil {
			onFragment(chunk.Content)
		}
		return nil
	})
	e.usage = e.usage.Add(response.Response.Usage)
	if e.trace != nil {
		e.trace.RecordCall(e.stageID, e.model.ModelName, messages, response, err)
	}
	return response, err
}

// Progress emits a content fragment to the run's event stream. Fragments
// emitted by a stage concatenate to that stage's final payload text.
func (e *Execution) Progress(fragment string) {
	if e.progress != nil && fragment != "" {
		e.progress(fragment)
	}
}

// Warnf records a diagnostic warning on the stage result.
func (e *Execution) Warnf(format string, args ...any) {
	warning := fmt.Sprintf(format, args...)
	e.warnings = append(e.warnings, warning)
	if e.Logger != nil {
		e.Logger.Warn(warning)
	}
}

// Warnings returns the warnings recorded so far.
func (e *Execution) Warnings() []string {
	return e.warnings
}

// Usage returns the token usage accumulated so far.
func (e *Execution) Usage() ai.Usage {
	return e.usage
}
