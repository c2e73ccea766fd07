package openai

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/quillworks-ai/quill/ai"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

func init() {
	_ = ai.RegisterProvider("openai", NewModel)
}

// NewModel creates a model backed by the OpenAI chat completions API.
// Any OpenAI-compatible endpoint works by passing its base URL.
func NewModel(modelName string, apiKey string, baseURLs ...string) *ai.Model {
	url := OpenAIBaseURL
	if len(baseURLs) > 0 && baseURLs[0] != "" {
		url = baseURLs[0]
	}

	if apiKey == "" {
		switch url {
		case OpenRouterBaseURL:
			apiKey = os.Getenv("OPENROUTER_API_KEY")
			if apiKey == "" {
				slog.Error("OPENROUTER_API_KEY is not set")
			}
		default:
			apiKey = os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				slog.Error("OPENAI_API_KEY is not set")
			}
		}
	}

	model := &ai.Model{
		ModelName:  modelName,
		APIKey:     apiKey,
		BaseURL:    url,
		Parameters: map[string]any{},
	}
	model.SetGenerateFunc(callChatAPI)
	model.SetStreamingFunc(streamChatAPI)
	return model
}

func createClient(model *ai.Model) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(model.APIKey),
	}

	if model.BaseURL != "" && model.BaseURL != OpenAIBaseURL {
		opts = append(opts, option.WithBaseURL(model.BaseURL))
	}

	return openai.NewClient(opts...)
}

func isRetryableError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "status: 502") ||
		strings.Contains(errStr, "status: 503") ||
		strings.Contains(errStr, "status: 504") ||
		strings.Contains(errStr, "status: 429") {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporary") {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}

	var apiErr interface {
		StatusCode() int
	}
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode() >= 500 || apiErr.StatusCode() == 429 {
			return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
		}
	}

	return err
}
