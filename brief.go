package quill

import (
	"fmt"
	"strings"
)

// ContentType selects the shape of the artifact a run produces.
type ContentType string

const (
	ContentTypeArticle     ContentType = "article"
	ContentTypeFAQ         ContentType = "faq"
	ContentTypeLandingPage ContentType = "landing-page"
)

// Brief describes the content a run should produce. It is immutable input:
// a run never writes to its brief.
type Brief struct {
	Topic       string      `json:"topic"`
	Keywords    []string    `json:"keywords,omitempty"`
	ContentType ContentType `json:"content_type"`
	WordCount   int         `json:"word_count"`
	ToneHints   []string    `json:"tone_hints,omitempty"`
}

// Validate rejects briefs that cannot produce a meaningful run. An empty
// content type defaults to article before validation.
func (b *Brief) Validate() error {
	if strings.TrimSpace(b.Topic) == "" {
		return fmt.Errorf("%w: brief topic is required", ErrValidation)
	}
	if b.WordCount <= 0 {
		return fmt.Errorf("%w: brief word count must be positive, got %d", ErrValidation, b.WordCount)
	}
	if b.ContentType == "" {
		b.ContentType = ContentTypeArticle
	}
	switch b.ContentType {
	case ContentTypeArticle, ContentTypeFAQ, ContentTypeLandingPage:
	default:
		return fmt.Errorf("%w: unknown content type %q", ErrValidation, b.ContentType)
	}
	return nil
}

// BrandProfile is the precomputed brand analysis supplied by the caller.
// The pipeline treats it as opaque input and never fetches brand data
// itself.
type BrandProfile struct {
	Name        string   `json:"name"`
	Voice       string   `json:"voice,omitempty"`
	KeyMessages []string `json:"key_messages,omitempty"`
	Audience    string   `json:"audience,omitempty"`
	Industry    string   `json:"industry,omitempty"`
}

func (p *BrandProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: brand profile name is required", ErrValidation)
	}
	return nil
}
