package quill

import (
	"context"
	"strings"
)

// outputGeneratorStage assembles the publish-ready artifact: it asks the
// model for publication metadata, renders the revised markdown to HTML,
// and attaches the structured data and document metrics. Metadata failures
// degrade to values derived from the document itself.
type outputGeneratorStage struct{}

func (s *outputGeneratorStage) ID() string { return StageOutputGenerator }

func (s *outputGeneratorStage) Validate(c *Context) error {
	if _, err := c.Revision(); err != nil {
		return err
	}
	_, err := c.StructuredData()
	return err
}

type publicationMeta struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
}

func (s *outputGeneratorStage) Execute(ctx context.Context, exec *Execution) (Payload, error) {
	revision, err := exec.Context.Revision()
	if err != nil {
		return nil, err
	}
	data, err := exec.Context.StructuredData()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(revision.Body) == "" {
		return nil, WrapStage(ErrParse, s.ID(), "assemble artifact", "document body is empty", nil)
	}

	meta, err := s.publicationMeta(ctx, exec, revision)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		exec.Warnf("publication metadata derived from the document: %v", err)
		meta = publicationMeta{
			Title:           deriveTitle(revision.Body, exec.Context.Brief),
			MetaDescription: deriveDescription(revision.Body),
		}
	}

	artifact, err := buildArtifact(exec.Context.Brief, meta, revision, data)
	if err != nil {
		return nil, WrapStage(nil, s.ID(), "assemble artifact", "", err)
	}
	return artifact, nil
}

func (s *outputGeneratorStage) publicationMeta(ctx context.Context, exec *Execution, revision Revision) (publicationMeta, error) {
	reply, err := exec.Call(ctx, outputGeneratorMessages(exec.Context, revision))
	if err != nil {
		return publicationMeta{}, WrapStage(nil, s.ID(), "publication metadata", "", err)
	}

	var meta publicationMeta
	if err := DecodeModelJSON(reply.Content, &meta); err != nil {
		return publicationMeta{}, WrapStage(nil, s.ID(), "publication metadata", "", err)
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.MetaDescription = strings.TrimSpace(meta.MetaDescription)
	if meta.Title == "" {
		return publicationMeta{}, WrapStage(ErrParse, s.ID(), "publication metadata", "title is empty", nil)
	}
	if runes := []rune(meta.MetaDescription); len(runes) > metaDescriptionLimit {
		exec.Warnf("meta description truncated to %d characters", metaDescriptionLimit)
		meta.MetaDescription = strings.TrimSpace(string(runes[:metaDescriptionLimit]))
	}
	return meta, nil
}
