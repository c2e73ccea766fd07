package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiGenerateParsesResponse(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiGenerateContentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{
					Role:  "model",
					Parts: []geminiContentPart{{Text: "Hello "}, {Text: "world"}},
				},
				FinishReason: "STOP",
			}},
			UsageMetadata: &geminiUsageMetadata{
				PromptTokenCount:     12,
				CandidatesTokenCount: 5,
				TotalTokenCount:      17,
			},
		})
	}))
	defer server.Close()

	model := NewGeminiModel("gemini-2.0-flash", "test-key", server.URL)
	response, err := model.Call(context.Background(), []Message{
		SystemMessage{Role: SystemRole, Content: "You are terse."},
		UserMessage{Role: UserRole, Content: "Say hello"},
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("unexpected request path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("expected api key header 'test-key', got %q", gotKey)
	}
	if response.Role != AssistantRole {
		t.Errorf("expected assistant role, got %s", response.Role)
	}
	if response.Content != "Hello world" {
		t.Errorf("expected joined candidate parts, got %q", response.Content)
	}
	if response.Response.Usage.TotalTokens != 17 {
		t.Errorf("expected 17 total tokens, got %d", response.Response.Usage.TotalTokens)
	}

	// System text has no role of its own; it rides in front of the first
	// user message.
	if len(gotReq.Contents) != 1 {
		t.Fatalf("expected 1 content after folding system text, got %d", len(gotReq.Contents))
	}
	if gotReq.Contents[0].Role != "user" {
		t.Errorf("expected user role, got %s", gotReq.Contents[0].Role)
	}
	if len(gotReq.Contents[0].Parts) != 2 || gotReq.Contents[0].Parts[0].Text != "You are terse." {
		t.Errorf("expected system text as first part, got %+v", gotReq.Contents[0].Parts)
	}
}

func TestGeminiGenerateSendsGenerationConfig(t *testing.T) {
	var gotReq geminiGenerateContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Role: "model", Parts: []geminiContentPart{{Text: "ok"}}},
			}},
		})
	}))
	defer server.Close()

	model := NewGeminiModel("gemini-2.0-flash", "test-key", server.URL).
		WithTemperature(0.2).
		WithMaxTokens(256)

	if _, err := model.Call(context.Background(), []Message{
		UserMessage{Role: UserRole, Content: "hi"},
	}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if gotReq.GenerationConfig == nil {
		t.Fatal("expected generationConfig in request")
	}
	if gotReq.GenerationConfig.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", gotReq.GenerationConfig.Temperature)
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 256 {
		t.Errorf("expected maxOutputTokens 256, got %d", gotReq.GenerationConfig.MaxOutputTokens)
	}
}

func TestGeminiGenerateErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		temporary  bool
	}{
		{"RateLimited", http.StatusTooManyRequests, true},
		{"ServerError", http.StatusInternalServerError, true},
		{"BadRequest", http.StatusBadRequest, false},
		{"Unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "provider error", tt.statusCode)
			}))
			defer server.Close()

			maxRetries := 1
			model := NewGeminiModel("gemini-2.0-flash", "test-key", server.URL)
			model.MaxRetries = &maxRetries

			_, err := model.Call(context.Background(), []Message{
				UserMessage{Role: UserRole, Content: "hi"},
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrTemporary) != tt.temporary {
				t.Errorf("status %d: temporary=%v, want %v", tt.statusCode, !tt.temporary, tt.temporary)
			}

			// Permanent failures surface the typed status error; temporary
			// ones flatten it behind ErrTemporary.
			if !tt.temporary {
				var statusErr StatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("expected StatusError, got %T", err)
				}
				if statusErr.StatusCode != tt.statusCode {
					t.Errorf("expected status code %d, got %d", tt.statusCode, statusErr.StatusCode)
				}
			}
		})
	}
}

func TestGeminiConvertMessages(t *testing.T) {
	t.Run("AssistantBecomesModelRole", func(t *testing.T) {
		contents := geminiConvertMessages([]Message{
			UserMessage{Role: UserRole, Content: "question"},
			AIMessage{Role: AssistantRole, Content: "answer"},
			UserMessage{Role: UserRole, Content: "followup"},
		})
		if len(contents) != 3 {
			t.Fatalf("expected 3 contents, got %d", len(contents))
		}
		if contents[1].Role != "model" {
			t.Errorf("expected model role for assistant message, got %s", contents[1].Role)
		}
	})

	t.Run("SystemOnlyBecomesUserTurn", func(t *testing.T) {
		contents := geminiConvertMessages([]Message{
			SystemMessage{Role: SystemRole, Content: "rules"},
		})
		if len(contents) != 1 {
			t.Fatalf("expected 1 content, got %d", len(contents))
		}
		if contents[0].Role != "user" || contents[0].Parts[0].Text != "rules" {
			t.Errorf("expected system text as user turn, got %+v", contents[0])
		}
	})

	t.Run("MultipleSystemMessagesJoin", func(t *testing.T) {
		contents := geminiConvertMessages([]Message{
			SystemMessage{Role: SystemRole, Content: "first"},
			SystemMessage{Role: SystemRole, Content: "second"},
			UserMessage{Role: UserRole, Content: "go"},
		})
		if len(contents) != 1 {
			t.Fatalf("expected 1 content, got %d", len(contents))
		}
		if contents[0].Parts[0].Text != "first\nsecond" {
			t.Errorf("expected joined system text, got %q", contents[0].Parts[0].Text)
		}
	})
}
