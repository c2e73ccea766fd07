package quill

import (
	"context"
	"fmt"
	"strings"
)

// contentPlannerStage turns the brief and brand voice into a section
// outline with per-section word targets.
type contentPlannerStage struct{}

func (s *contentPlannerStage) ID() string { return StageContentPlanner }

func (s *contentPlannerStage) Validate(c *Context) error {
	_, err := c.BrandVoice()
	return err
}

func (s *contentPlannerStage) Execute(ctx context.Context, exec *Execution) (Payload, error) {
	voice, err := exec.Context.BrandVoice()
	if err != nil {
		return nil, err
	}

	reply, err := exec.Call(ctx, contentPlannerMessages(exec.Context, voice))
	if err != nil {
		return nil, WrapStage(nil, s.ID(), "plan outline", "", err)
	}

	var outline Outline
	if err := DecodeModelJSON(reply.Content, &outline); err != nil {
		return nil, WrapStage(nil, s.ID(), "plan outline", "", err)
	}

	outline.Title = strings.TrimSpace(outline.Title)
	if outline.Title == "" {
		outline.Title = exec.Context.Brief.Topic
	}
	if len(outline.Sections) == 0 {
		return nil, WrapStage(ErrParse, s.ID(), "plan outline", "outline has no sections", nil)
	}
	for i := range outline.Sections {
		outline.Sections[i].Heading = strings.TrimSpace(outline.Sections[i].Heading)
		if outline.Sections[i].Heading == "" {
			return nil, WrapStage(ErrParse, s.ID(), "plan outline", fmt.Sprintf("section %d has no heading", i+1), nil)
		}
	}
	s.fillWordTargets(&outline, exec)
	return outline, nil
}

// fillWordTargets splits the brief's word count evenly across sections the
// model left untargeted.
func (s *contentPlannerStage) fillWordTargets(outline *Outline, exec *Execution) {
	missing := 0
	budget := exec.Context.Brief.WordCount
	for _, section := range outline.Sections {
		if section.WordTarget > 0 {
			budget -= section.WordTarget
		} else {
			missing++
		}
	}
	if missing == 0 {
		return
	}
	share := budget / missing
	if share < 50 {
		share = 50
	}
	exec.Warnf("%d of %d sections had no word target, assigning %d words each", missing, len(outline.Sections), share)
	for i := range outline.Sections {
		if outline.Sections[i].WordTarget <= 0 {
			outline.Sections[i].WordTarget = share
		}
	}
}
