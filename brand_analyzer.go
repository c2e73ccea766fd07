package quill

import (
	"context"
	"strings"
)

// brandAnalyzerStage distills the brand profile into the voice guidance
// every later stage writes against.
type brandAnalyzerStage struct{}

func (s *brandAnalyzerStage) ID() string { return StageBrandAnalyzer }

// Validate is a no-op. The brief and profile were validated at dispatch,
// before the run existed.
func (s *brandAnalyzerStage) Validate(c *Context) error { return nil }

func (s *brandAnalyzerStage) Execute(ctx context.Context, exec *Execution) (Payload, error) {
	messages := brandAnalyzerMessages(exec.Context)
	reply, err := exec.Call(ctx, messages)
	if err != nil {
		return nil, WrapStage(nil, s.ID(), "analyze brand", "", err)
	}

	var voice BrandVoice
	if parseErr := DecodeModelJSON(reply.Content, &voice); parseErr != nil {
		exec.Warnf("brand voice reply was not valid JSON, reprompting: %v", parseErr)
		reply, err = exec.Call(ctx, brandAnalyzerReprompt(messages, reply, parseErr))
		if err != nil {
			return nil, WrapStage(nil, s.ID(), "analyze brand", "", err)
		}
		if err := DecodeModelJSON(reply.Content, &voice); err != nil {
			return nil, WrapStage(nil, s.ID(), "analyze brand", "", err)
		}
	}

	voice.Summary = strings.TrimSpace(voice.Summary)
	if voice.Summary == "" {
		return nil, WrapStage(ErrParse, s.ID(), "analyze brand", "voice summary is empty", nil)
	}
	if len(voice.Traits) == 0 {
		return nil, WrapStage(ErrParse, s.ID(), "analyze brand", "voice lists no traits", nil)
	}
	return voice, nil
}
