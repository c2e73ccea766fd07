package quill

import (
	"context"
	"fmt"
	"strings"
)

// writerStage drafts the document one outline section at a time. Each
// section is streamed from the model into a buffer, validated, and only
// then appended to the body and emitted as a progress fragment, so the
// emitted fragments always concatenate to exactly the draft body even
// when a section call is retried.
type writerStage struct{}

func (s *writerStage) ID() string { return StageWriter }

func (s *writerStage) Validate(c *Context) error {
	if _, err := c.BrandVoice(); err != nil {
		return err
	}
	_, err := c.Outline()
	return err
}

func (s *writerStage) Execute(ctx context.Context, exec *Execution) (Payload, error) {
	voice, err := exec.Context.BrandVoice()
	if err != nil {
		return nil, err
	}
	outline, err := exec.Context.Outline()
	if err != nil {
		return nil, err
	}

	var body strings.Builder
	emit := func(text string) {
		body.WriteString(text)
		exec.Progress(text)
	}

	emit("# " + outline.Title + "\n")

	sections := make([]DraftSection, 0, len(outline.Sections))
	for i, planned := range outline.Sections {
		content, err := s.draftSection(ctx, exec, voice, outline, i)
		if err != nil {
			return nil, err
		}
		emit("\n## " + planned.Heading + "\n\n" + content + "\n")
		sections = append(sections, DraftSection{Heading: planned.Heading, Content: content})
	}

	return Draft{Body: body.String(), Sections: sections}, nil
}

func (s *writerStage) draftSection(ctx context.Context, exec *Execution, voice BrandVoice, outline Outline, index int) (string, error) {
	heading := outline.Sections[index].Heading
	messages := writerSectionMessages(exec.Context, voice, outline, index)

	reply, err := exec.Stream(ctx, messages, nil)
	if err != nil {
		return "", WrapStage(nil, s.ID(), "draft section", heading, err)
	}
	content := sectionContent(reply.Content, heading)
	if content == "" {
		exec.Warnf("empty draft for section %q, requesting a rewrite", heading)
		reply, err = exec.Stream(ctx, messages, nil)
		if err != nil {
			return "", WrapStage(nil, s.ID(), "draft section", heading, err)
		}
		content = sectionContent(reply.Content, heading)
	}
	if content == "" {
		return "", WrapStage(ErrParse, s.ID(), "draft section", fmt.Sprintf("model returned no content for %q", heading), nil)
	}
	return content, nil
}

// sectionContent trims a section reply and strips a leading echo of the
// section heading, returning only the prose. Models frequently repeat the
// heading they were given, at varying levels.
func sectionContent(raw, heading string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	first, rest, found := strings.Cut(text, "\n")
	candidate := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(first), "#"))
	if strings.EqualFold(candidate, strings.TrimSpace(heading)) {
		if !found {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return text
}
