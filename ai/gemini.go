package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var geminiClient = &http.Client{Timeout: 5 * time.Minute}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string              `json:"role"`
	Parts []geminiContentPart `json:"parts"`
}

type geminiContentPart struct {
	Text string `json:"text,omitempty"`
}

type geminiConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func init() {
	_ = RegisterProvider("gemini", NewGeminiModel)
}

// NewGeminiModel creates a model backed by the Gemini generateContent API.
// With an empty apiKey the GOOGLE_API_KEY environment variable is used.
func NewGeminiModel(modelName string, apiKey string, baseURLs ...string) *Model {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	url := geminiBaseURL
	if len(baseURLs) > 0 && baseURLs[0] != "" {
		url = baseURLs[0]
	}

	return &Model{
		ModelName: modelName,
		APIKey:    apiKey,
		BaseURL:   url,
		callFunc:  geminiGenerate,
	}
}

// geminiGenerate makes a single generateContent call. Retries are handled
// by the model's invoke loop; transient failures are wrapped in
// ErrTemporary so it can tell them apart.
func geminiGenerate(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
	req := &geminiGenerateContentRequest{
		Contents: geminiConvertMessages(messages),
	}
	if config := geminiConfigFor(model); config != nil {
		req.GenerationConfig = config
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent", model.BaseURL, model.ModelName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return AIMessage{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", model.APIKey)

	resp, err := geminiClient.Do(httpReq)
	if err != nil {
		return AIMessage{}, fmt.Errorf("%w: %v", ErrTemporary, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		statusErr := StatusError{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			ErrorMessage: string(respBody),
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return AIMessage{}, fmt.Errorf("%w: %v", ErrTemporary, statusErr)
		}
		return AIMessage{}, statusErr
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return AIMessage{}, fmt.Errorf("%w: read response body: %v", ErrTemporary, err)
	}

	var geminiResp geminiGenerateContentResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return AIMessage{}, fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(geminiResp.Candidates) == 0 {
		return AIMessage{}, fmt.Errorf("no candidates in response")
	}

	var content string
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		content += part.Text
	}
	content, thinkPart := ExtractThinkTags(content)

	msg := AIMessage{
		Role:    AssistantRole,
		Content: content,
		Think:   thinkPart,
	}
	if geminiResp.UsageMetadata != nil {
		msg.Response = Response{
			Model: model.ModelName,
			Usage: Usage{
				PromptTokens:     geminiResp.UsageMetadata.PromptTokenCount,
				CompletionTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      geminiResp.UsageMetadata.TotalTokenCount,
			},
		}
	}
	return msg, nil
}

// geminiConvertMessages maps chat messages to Gemini contents. Gemini has
// no system role in contents, so system text is folded into the first user
// message.
func geminiConvertMessages(messages []Message) []geminiContent {
	var system string
	contents := make([]geminiContent, 0, len(messages))

	for _, msg := range messages {
		role, content := msg.Value()
		switch role {
		case SystemRole:
			if system != "" {
				system += "\n"
			}
			system += content
		case AssistantRole:
			contents = append(contents, geminiContent{
				Role:  "model",
				Parts: []geminiContentPart{{Text: content}},
			})
		default:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiContentPart{{Text: content}},
			})
		}
	}

	if system != "" {
		for i := range contents {
			if contents[i].Role == "user" {
				contents[i].Parts = append([]geminiContentPart{{Text: system}}, contents[i].Parts...)
				return contents
			}
		}
		contents = append([]geminiContent{{
			Role:  "user",
			Parts: []geminiContentPart{{Text: system}},
		}}, contents...)
	}
	return contents
}

func geminiConfigFor(model *Model) *geminiConfig {
	config := &geminiConfig{}
	hasConfig := false

	if model.Temperature != nil {
		config.Temperature = *model.Temperature
		hasConfig = true
	}
	if model.MaxTokens != nil {
		config.MaxOutputTokens = *model.MaxTokens
		hasConfig = true
	}
	if model.TopP != nil {
		config.TopP = *model.TopP
		hasConfig = true
	}
	if model.StopSequences != nil {
		config.StopSequences = *model.StopSequences
		hasConfig = true
	}

	if !hasConfig {
		return nil
	}
	return config
}
