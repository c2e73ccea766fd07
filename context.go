package quill

import "fmt"

// Context threads data between stages. It holds the immutable inputs and
// the append-only sequence of recorded stage results; a stage only ever
// sees the brief, the profile, and the results of stages that ran before
// it. The owning run is the sole writer, so no locking is needed.
type Context struct {
	Brief   Brief
	Profile BrandProfile

	results []StageResult
	byStage map[string]int
}

func NewContext(brief Brief, profile BrandProfile) *Context {
	return &Context{
		Brief:   brief,
		Profile: profile,
		byStage: make(map[string]int),
	}
}

// Record appends a completed stage result. Results are immutable once
// recorded; re-recording a stage is a pipeline bug and is rejected.
func (c *Context) Record(result StageResult) error {
	if _, exists := c.byStage[result.StageID]; exists {
		return fmt.Errorf("stage %q already recorded", result.StageID)
	}
	c.byStage[result.StageID] = len(c.results)
	c.results = append(c.results, result)
	return nil
}

// Result returns the recorded result for a stage id.
func (c *Context) Result(stageID string) (StageResult, bool) {
	i, ok := c.byStage[stageID]
	if !ok {
		return StageResult{}, false
	}
	return c.results[i], true
}

// Results returns a copy of the recorded results in execution order.
func (c *Context) Results() []StageResult {
	out := make([]StageResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Context) payload(stageID string) (Payload, error) {
	result, ok := c.Result(stageID)
	if !ok {
		return nil, fmt.Errorf("%w: stage %q has not run", ErrValidation, stageID)
	}
	if result.Payload == nil {
		return nil, fmt.Errorf("%w: stage %q recorded no payload", ErrValidation, stageID)
	}
	return result.Payload, nil
}

// BrandVoice projects the brand analyzer's payload.
func (c *Context) BrandVoice() (BrandVoice, error) {
	p, err := c.payload(StageBrandAnalyzer)
	if err != nil {
		return BrandVoice{}, err
	}
	voice, ok := p.(BrandVoice)
	if !ok {
		return BrandVoice{}, fmt.Errorf("%w: stage %q recorded %s, want %s", ErrValidation, StageBrandAnalyzer, p.Kind(), PayloadBrandVoice)
	}
	return voice, nil
}

// Outline projects the content planner's payload.
func (c *Context) Outline() (Outline, error) {
	p, err := c.payload(StageContentPlanner)
	if err != nil {
		return Outline{}, err
	}
	outline, ok := p.(Outline)
	if !ok {
		return Outline{}, fmt.Errorf("%w: stage %q recorded %s, want %s", ErrValidation, StageContentPlanner, p.Kind(), PayloadOutline)
	}
	return outline, nil
}

// Draft projects the writer's payload.
func (c *Context) Draft() (Draft, error) {
	p, err := c.payload(StageWriter)
	if err != nil {
		return Draft{}, err
	}
	draft, ok := p.(Draft)
	if !ok {
		return Draft{}, fmt.Errorf("%w: stage %q recorded %s, want %s", ErrValidation, StageWriter, p.Kind(), PayloadDraft)
	}
	return draft, nil
}

// Revision projects the editor's payload.
func (c *Context) Revision() (Revision, error) {
	p, err := c.payload(StageEditor)
	if err != nil {
		return Revision{}, err
	}
	revision, ok := p.(Revision)
	if !ok {
		return Revision{}, fmt.Errorf("%w: stage %q recorded %s, want %s", ErrValidation, StageEditor, p.Kind(), PayloadRevision)
	}
	return revision, nil
}

// StructuredData projects the schema generator's payload.
func (c *Context) StructuredData() (StructuredData, error) {
	p, err := c.payload(StageSchemaGenerator)
	if err != nil {
		return StructuredData{}, err
	}
	data, ok := p.(StructuredData)
	if !ok {
		return StructuredData{}, fmt.Errorf("%w: stage %q recorded %s, want %s", ErrValidation, StageSchemaGenerator, p.Kind(), PayloadStructuredData)
	}
	return data, nil
}
