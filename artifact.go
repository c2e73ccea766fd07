package quill

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

const metaDescriptionLimit = 160

// readingTimeWPM is the words-per-minute rate behind the reading time
// metric.
const readingTimeWPM = 200

// Artifact is the publish-ready output of a complete run: the revised
// markdown, its HTML rendering, publication metadata, structured data,
// and document metrics.
type Artifact struct {
	Title           string           `json:"title"`
	MetaDescription string           `json:"meta_description,omitempty"`
	Markdown        string           `json:"markdown"`
	HTML            string           `json:"html"`
	StructuredData  map[string]any   `json:"structured_data"`
	Metadata        ArtifactMetadata `json:"metadata"`
}

func (Artifact) Kind() PayloadKind { return PayloadArtifact }

// ArtifactMetadata carries metrics computed from the final document.
type ArtifactMetadata struct {
	WordCount          int                `json:"word_count"`
	ReadingTimeMinutes int                `json:"reading_time_minutes"`
	KeywordDensity     map[string]float64 `json:"keyword_density,omitempty"`
}

// AssembleOutput extracts the artifact from a complete run's state. It is
// a pure function of the state: calling it any number of times yields an
// equal artifact and never touches a model.
func AssembleOutput(state RunState) (*Artifact, error) {
	if state.Status != StatusComplete {
		return nil, fmt.Errorf("%w: run %s is %s, artifact exists only for complete runs", ErrValidation, state.RunID, state.Status)
	}
	for i := len(state.Results) - 1; i >= 0; i-- {
		artifact, ok := state.Results[i].Payload.(Artifact)
		if !ok {
			continue
		}
		out := artifact
		out.StructuredData = maps.Clone(artifact.StructuredData)
		out.Metadata.KeywordDensity = maps.Clone(artifact.Metadata.KeywordDensity)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: run %s recorded no artifact payload", ErrValidation, state.RunID)
}

func buildArtifact(brief Brief, meta publicationMeta, revision Revision, data StructuredData) (Artifact, error) {
	html, err := renderHTML(revision.Body)
	if err != nil {
		return Artifact{}, fmt.Errorf("render html: %w", err)
	}
	words := countWords(revision.Body)
	return Artifact{
		Title:           meta.Title,
		MetaDescription: meta.MetaDescription,
		Markdown:        revision.Body,
		HTML:            html,
		StructuredData:  data.Schema,
		Metadata: ArtifactMetadata{
			WordCount:          words,
			ReadingTimeMinutes: readingTime(words),
			KeywordDensity:     keywordDensity(revision.Body, brief.Keywords, words),
		},
	}, nil
}

func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var titleLine = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// deriveTitle falls back to the document's own H1, then the brief topic.
func deriveTitle(markdown string, brief Brief) string {
	if m := titleLine.FindStringSubmatch(markdown); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return brief.Topic
}

// deriveDescription takes the first prose line of the document, clipped to
// the meta description limit.
func deriveDescription(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		runes := []rune(line)
		if len(runes) > metaDescriptionLimit {
			line = strings.TrimSpace(string(runes[:metaDescriptionLimit-3])) + "..."
		}
		return line
	}
	return ""
}

// countWords counts prose words, skipping pure markup tokens.
func countWords(markdown string) int {
	count := 0
	for _, field := range strings.Fields(markdown) {
		if strings.Trim(field, "#*->`_|") == "" {
			continue
		}
		count++
	}
	return count
}

func readingTime(words int) int {
	if words == 0 {
		return 0
	}
	return (words + readingTimeWPM - 1) / readingTimeWPM
}

// keywordDensity reports occurrences of each brief keyword per document
// word, matched case-insensitively.
func keywordDensity(markdown string, keywords []string, totalWords int) map[string]float64 {
	if len(keywords) == 0 || totalWords == 0 {
		return nil
	}
	body := strings.ToLower(markdown)
	density := make(map[string]float64, len(keywords))
	for _, keyword := range keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}
		density[keyword] = float64(strings.Count(body, needle)) / float64(totalWords)
	}
	return density
}
