package quill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/trace"
)

// Pipeline generates publish-ready content from a Brief and a
// BrandProfile. Configure it once and dispatch as many runs as needed;
// each run gets its own cloned, stage-tuned models and its own event
// stream.
//
//	model := openai.NewModel("gpt-4o", apiKey)
//	pipeline := quill.Pipeline{Model: model}
//	run, err := pipeline.Run(ctx, brief, profile)
//	if err != nil {
//		return err
//	}
//	for ev := range run.Next() {
//		...
//	}
//	artifact, err := run.Wait()
type Pipeline struct {
	// Model is the base model for every stage. Each stage receives a
	// clone tuned with that stage's default temperature unless the caller
	// set one.
	Model *ai.Model

	// StageModels overrides the base model for individual stages, keyed
	// by stage id.
	StageModels map[string]*ai.Model

	// Limiter bounds concurrent model calls and total token spend across
	// every run dispatched from this pipeline.
	Limiter *ai.Limiter

	// Tracer writes a per-run trace file when set.
	Tracer *trace.Tracer

	// Sink receives run events instead of the run's event channel when
	// set. Emit is called from a single goroutine per run.
	Sink StreamSink

	LogLevel slog.Level
}

// Default sampling temperature per stage. Planning and analysis run
// cooler than drafting; schema generation is near-deterministic.
var stageTemperatures = map[string]float64{
	StageBrandAnalyzer:   0.4,
	StageContentPlanner:  0.5,
	StageWriter:          0.7,
	StageEditor:          0.3,
	StageSchemaGenerator: 0.1,
	StageOutputGenerator: 0.3,
}

// Run validates the inputs and dispatches a pipeline run. Invalid inputs
// are rejected here, before any run state is allocated or any model
// called. The returned Run is already executing.
func (p *Pipeline) Run(ctx context.Context, brief Brief, profile BrandProfile) (*Run, error) {
	if p.Model == nil {
		return nil, fmt.Errorf("%w: pipeline has no model configured", ErrValidation)
	}
	if err := brief.Validate(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	r := newRun(ctx, p, brief, profile)
	r.start()
	return r, nil
}

// RunAndWait dispatches a run and blocks until it finishes, returning the
// assembled artifact or the run's terminal error.
func (p *Pipeline) RunAndWait(ctx context.Context, brief Brief, profile BrandProfile) (*Artifact, error) {
	r, err := p.Run(ctx, brief, profile)
	if err != nil {
		return nil, err
	}
	return r.Wait()
}

// stageModel clones the configured model for one stage, applying the
// stage's default temperature when the caller left it unset and attaching
// the shared limiter.
func (p *Pipeline) stageModel(stageID string) *ai.Model {
	base := p.Model
	if override, ok := p.StageModels[stageID]; ok && override != nil {
		base = override
	}
	model := base.Clone()
	if model.Temperature == nil {
		if temperature, ok := stageTemperatures[stageID]; ok {
			model = model.WithTemperature(temperature)
		}
	}
	if p.Limiter != nil {
		model = model.WithLimiter(p.Limiter)
	}
	return model
}
