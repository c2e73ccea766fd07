package quill

import (
	"fmt"
	"strings"

	"github.com/quillworks-ai/quill/ai"
)

func renderBrief(b Brief) string {
	msg := "Topic: " + b.Topic + "\n"
	msg += fmt.Sprintf("Content type: %s\n", b.ContentType)
	msg += fmt.Sprintf("Target word count: %d\n", b.WordCount)
	if len(b.Keywords) > 0 {
		msg += "Keywords: " + strings.Join(b.Keywords, ", ") + "\n"
	}
	if len(b.ToneHints) > 0 {
		msg += "Tone hints: " + strings.Join(b.ToneHints, ", ") + "\n"
	}
	return msg
}

func renderProfile(p BrandProfile) string {
	msg := "Brand: " + p.Name + "\n"
	if p.Voice != "" {
		msg += "Voice: " + p.Voice + "\n"
	}
	if p.Audience != "" {
		msg += "Audience: " + p.Audience + "\n"
	}
	if p.Industry != "" {
		msg += "Industry: " + p.Industry + "\n"
	}
	if len(p.KeyMessages) > 0 {
		msg += "Key messages:\n"
		for _, keyMessage := range p.KeyMessages {
			msg += "- " + keyMessage + "\n"
		}
	}
	return msg
}

func renderBrandVoice(v BrandVoice) string {
	msg := "Voice summary: " + v.Summary + "\n"
	if len(v.Traits) > 0 {
		msg += "Traits: " + strings.Join(v.Traits, ", ") + "\n"
	}
	if len(v.Differentiators) > 0 {
		msg += "Differentiators: " + strings.Join(v.Differentiators, ", ") + "\n"
	}
	return msg
}

func brandAnalyzerMessages(c *Context) []ai.Message {
	sysMsg := "You are a brand strategist. Distill the brand profile below into concrete voice guidance a content writer can follow.\n"
	sysMsg += "Respond with a single JSON object of this shape:\n"
	sysMsg += `{"summary": string, "traits": [string], "differentiators": [string]}` + "\n"
	sysMsg += "summary is two or three sentences describing how the brand sounds. traits are short adjectives. differentiators are claims only this brand can make.\n"
	sysMsg += "Return only the JSON object.\n"

	userMsg := "<brief>\n" + renderBrief(c.Brief) + "</brief>\n\n"
	userMsg += "<brand_profile>\n" + renderProfile(c.Profile) + "</brand_profile>\n\n"
	userMsg += "Analyze the brand voice for this engagement.\n"

	return []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: sysMsg},
		ai.UserMessage{Role: ai.UserRole, Content: userMsg},
	}
}

// brandAnalyzerReprompt extends a failed exchange with a corrective turn so
// the model can repair its own malformed reply.
func brandAnalyzerReprompt(messages []ai.Message, reply ai.AIMessage, parseErr error) []ai.Message {
	correction := "Your previous reply could not be parsed: " + parseErr.Error() + "\n"
	correction += "Respond again with only the JSON object, no prose and no code fences.\n"
	return append(messages,
		ai.AIMessage{Role: ai.AssistantRole, Content: reply.Content},
		ai.UserMessage{Role: ai.UserRole, Content: correction},
	)
}

func contentPlannerMessages(c *Context, voice BrandVoice) []ai.Message {
	sysMsg := fmt.Sprintf("You are a content strategist planning %s content.\n", c.Brief.ContentType)
	sysMsg += "Produce an outline whose sections together cover the topic without overlap.\n"
	sysMsg += "Respond with a single JSON object of this shape:\n"
	sysMsg += `{"title": string, "sections": [{"heading": string, "summary": string, "word_target": number}]}` + "\n"
	sysMsg += "Section word targets must sum to roughly the brief's target word count.\n"
	sysMsg += "Return only the JSON object.\n"

	userMsg := "<brief>\n" + renderBrief(c.Brief) + "</brief>\n\n"
	userMsg += "<brand_voice>\n" + renderBrandVoice(voice) + "</brand_voice>\n\n"
	userMsg += "Plan the outline.\n"

	return []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: sysMsg},
		ai.UserMessage{Role: ai.UserRole, Content: userMsg},
	}
}

func writerSectionMessages(c *Context, voice BrandVoice, outline Outline, index int) []ai.Message {
	section := outline.Sections[index]

	sysMsg := fmt.Sprintf("You are a content writer drafting one section of %s content titled %q.\n", c.Brief.ContentType, outline.Title)
	sysMsg += "Write in the brand voice described below. Write plain markdown prose, no code fences.\n"
	sysMsg += fmt.Sprintf("Begin the section with the heading line \"## %s\" and write roughly %d words.\n", section.Heading, section.WordTarget)
	sysMsg += "\n<brand_voice>\n" + renderBrandVoice(voice) + "</brand_voice>\n"

	userMsg := "<brief>\n" + renderBrief(c.Brief) + "</brief>\n\n"
	userMsg += fmt.Sprintf("Section %d of %d.\n", index+1, len(outline.Sections))
	userMsg += "Heading: " + section.Heading + "\n"
	userMsg += "Covers: " + section.Summary + "\n"
	if index > 0 {
		userMsg += "Previous section heading: " + outline.Sections[index-1].Heading + "\n"
	}
	userMsg += "\nWrite the section.\n"

	return []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: sysMsg},
		ai.UserMessage{Role: ai.UserRole, Content: userMsg},
	}
}

func editorMessages(c *Context, voice BrandVoice, draft Draft) []ai.Message {
	sysMsg := "You are an editor reviewing a draft for clarity, flow, and brand voice consistency.\n"
	sysMsg += "Preserve the draft's structure and headings. Tighten wording, fix transitions, and align tone with the brand voice.\n"
	sysMsg += "Respond with a single JSON object of this shape:\n"
	sysMsg += `{"body": string, "changes": [string]}` + "\n"
	sysMsg += "body is the full revised markdown document. changes lists each substantive edit in one short sentence.\n"
	sysMsg += "Return only the JSON object.\n"
	sysMsg += "\n<brand_voice>\n" + renderBrandVoice(voice) + "</brand_voice>\n"

	userMsg := "<brief>\n" + renderBrief(c.Brief) + "</brief>\n\n"
	userMsg += "<draft>\n" + draft.Body + "\n</draft>\n\n"
	userMsg += "Revise the draft.\n"

	return []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: sysMsg},
		ai.UserMessage{Role: ai.UserRole, Content: userMsg},
	}
}

// Schema.org type per content type.
var schemaTypes = map[ContentType]string{
	ContentTypeArticle:     "Article",
	ContentTypeFAQ:         "FAQPage",
	ContentTypeLandingPage: "WebPage",
}

func schemaGeneratorMessages(c *Context, revision Revision) []ai.Message {
	schemaType := schemaTypes[c.Brief.ContentType]

	sysMsg := "You generate schema.org structured data for web content.\n"
	sysMsg += fmt.Sprintf("Produce a JSON-LD object of type %q describing the document below.\n", schemaType)
	sysMsg += `The object must include "@context": "https://schema.org" and "@type".` + "\n"
	sysMsg += "Return only the JSON-LD object.\n"

	userMsg := "<document>\n" + revision.Body + "\n</document>\n"

	return []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: sysMsg},
		ai.UserMessage{Role: ai.UserRole, Content: userMsg},
	}
}

func outputGeneratorMessages(c *Context, revision Revision) []ai.Message {
	sysMsg := "You finalize content for publication.\n"
	sysMsg += "Respond with a single JSON object of this shape:\n"
	sysMsg += `{"title": string, "meta_description": string}` + "\n"
	sysMsg += "title is the display title for the document. meta_description is a compelling summary of at most 160 characters.\n"
	sysMsg += "Return only the JSON object.\n"

	userMsg := "<brief>\n" + renderBrief(c.Brief) + "</brief>\n\n"
	userMsg += "<document>\n" + revision.Body + "\n</document>\n\n"
	userMsg += "Produce the publication metadata.\n"

	return []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: sysMsg},
		ai.UserMessage{Role: ai.UserRole, Content: userMsg},
	}
}
