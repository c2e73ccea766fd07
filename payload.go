package quill

// PayloadKind tags the concrete type of a stage payload.
type PayloadKind string

const (
	PayloadBrandVoice     PayloadKind = "brand_voice"
	PayloadOutline        PayloadKind = "outline"
	PayloadDraft          PayloadKind = "draft"
	PayloadRevision       PayloadKind = "revision"
	PayloadStructuredData PayloadKind = "structured_data"
	PayloadArtifact       PayloadKind = "artifact"
)

// Payload is the typed output a stage records into the pipeline context.
// Each stage produces exactly one payload kind; consumers project the
// concrete type through the Context getters. Payloads are treated as
// read-only once recorded.
type Payload interface {
	Kind() PayloadKind
}

var (
	_ Payload = BrandVoice{}
	_ Payload = Outline{}
	_ Payload = Draft{}
	_ Payload = Revision{}
	_ Payload = StructuredData{}
	_ Payload = Artifact{}
)

// BrandVoice is the brand analyzer's digest of the brand profile for this
// brief: how the content should sound and what sets the brand apart.
type BrandVoice struct {
	Summary         string   `json:"summary"`
	Traits          []string `json:"traits"`
	Differentiators []string `json:"differentiators,omitempty"`
}

func (BrandVoice) Kind() PayloadKind { return PayloadBrandVoice }

// Outline is the content planner's section plan.
type Outline struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

func (Outline) Kind() PayloadKind { return PayloadOutline }

type OutlineSection struct {
	Heading    string `json:"heading"`
	Summary    string `json:"summary,omitempty"`
	WordTarget int    `json:"word_target"`
}

// Draft is the writer's full markdown body, built section by section.
type Draft struct {
	Body     string         `json:"body"`
	Sections []DraftSection `json:"sections"`
}

func (Draft) Kind() PayloadKind { return PayloadDraft }

type DraftSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Revision is the editor's pass over the draft. When the editor degrades,
// Body carries the draft unchanged and Changes is empty.
type Revision struct {
	Body    string   `json:"body"`
	Changes []string `json:"changes,omitempty"`
}

func (Revision) Kind() PayloadKind { return PayloadRevision }

// StructuredData wraps the JSON-LD object emitted for the artifact.
// Schema is empty, never nil, when the stage degraded.
type StructuredData struct {
	Schema map[string]any `json:"schema"`
}

func (StructuredData) Kind() PayloadKind { return PayloadStructuredData }

// Empty reports whether the stage produced no usable structured data.
func (s StructuredData) Empty() bool { return len(s.Schema) == 0 }
