package quill

import (
	"context"
	"strings"
)

// editorStage revises the draft for clarity and brand voice. It is an
// enrichment stage: when the revision fails for a reason the run can live
// with, the draft passes through unchanged under a warning instead of
// failing the run. Budget exhaustion and cancellation still propagate.
type editorStage struct{}

func (s *editorStage) ID() string { return StageEditor }

func (s *editorStage) Validate(c *Context) error {
	if _, err := c.BrandVoice(); err != nil {
		return err
	}
	_, err := c.Draft()
	return err
}

func (s *editorStage) Execute(ctx context.Context, exec *Execution) (Payload, error) {
	voice, err := exec.Context.BrandVoice()
	if err != nil {
		return nil, err
	}
	draft, err := exec.Context.Draft()
	if err != nil {
		return nil, err
	}

	revision, err := s.revise(ctx, exec, voice, draft)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		exec.Warnf("editor pass skipped, keeping draft unchanged: %v", err)
		return Revision{Body: draft.Body}, nil
	}
	return revision, nil
}

func (s *editorStage) revise(ctx context.Context, exec *Execution, voice BrandVoice, draft Draft) (Revision, error) {
	reply, err := exec.Call(ctx, editorMessages(exec.Context, voice, draft))
	if err != nil {
		return Revision{}, WrapStage(nil, s.ID(), "revise draft", "", err)
	}

	var revision Revision
	if err := DecodeModelJSON(reply.Content, &revision); err != nil {
		return Revision{}, WrapStage(nil, s.ID(), "revise draft", "", err)
	}
	revision.Body = strings.TrimSpace(revision.Body)
	if revision.Body == "" {
		return Revision{}, WrapStage(ErrParse, s.ID(), "revise draft", "revised body is empty", nil)
	}
	return revision, nil
}
