package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"
)

const (
	defaultMaxRetries = 3
	baseRetryDelay    = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// CallFunc is the provider implementation for a single completion call.
type CallFunc func(ctx context.Context, model *Model, messages []Message) (AIMessage, error)

// StreamFunc is the provider implementation for a streaming completion call.
// It must invoke chunkFunction for every delta and return the assembled
// final message.
type StreamFunc func(ctx context.Context, model *Model, messages []Message, chunkFunction func(AIMessage) error) (AIMessage, error)

// RecordedResponse represents a recorded model response with error information
type RecordedResponse struct {
	AIMessage AIMessage `json:"ai_message"`
	Error     string    `json:"error,omitempty"` // Empty string if no error
	Timestamp string    `json:"timestamp"`
}

// Model represents a generic model container that uses function variables for provider-specific logic
type Model struct {
	ModelName string
	APIKey    string
	BaseURL   string

	// provider implementations
	callFunc   CallFunc
	streamFunc StreamFunc

	// Options pointer variables - use nil to represent option not set
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    *[]string
	MaxRetries       *int
	Parameters       map[string]any // additional non-standard parameters for the model

	// Limiter, when set, gates concurrency and accounts token usage for
	// every call made through this model.
	Limiter *Limiter

	// Recording functionality
	RecordFilename string // If set, record responses to this file
}

// Call makes a single completion call to the model, retrying temporary
// provider errors with exponential backoff.
func (m *Model) Call(ctx context.Context, messages []Message) (AIMessage, error) {
	return m.invoke(ctx, messages, nil)
}

// Stream makes a streaming completion call. chunkFunction receives each
// delta as it arrives; the returned message holds the assembled content.
// Temporary errors are retried the same way Call retries them, restarting
// the stream from the beginning.
func (m *Model) Stream(ctx context.Context, messages []Message, chunkFunction func(AIMessage) error) (AIMessage, error) {
	return m.invoke(ctx, messages, chunkFunction)
}

func (m *Model) invoke(ctx context.Context, messages []Message, chunkFunction func(AIMessage) error) (AIMessage, error) {
	attempts := m.maxAttempts()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if m.Limiter != nil {
			if err := m.Limiter.Acquire(ctx); err != nil {
				return AIMessage{}, err
			}
		}

		response, err := m.callOnce(ctx, messages, chunkFunction)

		if m.Limiter != nil {
			m.Limiter.Release()
			if err == nil {
				m.Limiter.Record(response.Response.Usage)
			}
		}

		if m.RecordFilename != "" {
			m.recordAIMessage(response, err)
		}

		if err == nil {
			return response, nil
		}
		lastErr = err

		if !errors.Is(err, ErrTemporary) {
			return AIMessage{}, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := m.calculateBackoffDelay(attempt)
		slog.Warn("model call failed, retrying",
			"model", m.ModelName,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay,
			"error", err.Error())

		select {
		case <-ctx.Done():
			return AIMessage{}, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return AIMessage{}, lastErr
}

func (m *Model) callOnce(ctx context.Context, messages []Message, chunkFunction func(AIMessage) error) (AIMessage, error) {
	if chunkFunction != nil && m.streamFunc != nil {
		return m.streamFunc(ctx, m, messages, chunkFunction)
	}
	if m.callFunc == nil {
		return AIMessage{}, fmt.Errorf("model %q has no provider function", m.ModelName)
	}
	return m.callFunc(ctx, m, messages)
}

// maxAttempts returns the total number of call attempts. MaxRetries counts
// attempts, not re-tries: 0 and 1 both mean a single attempt.
func (m *Model) maxAttempts() int {
	if m.MaxRetries == nil {
		return defaultMaxRetries
	}
	if *m.MaxRetries < 1 {
		return 1
	}
	return *m.MaxRetries
}

// calculateBackoffDelay returns the wait before the next attempt:
// exponential from baseRetryDelay, capped at maxRetryDelay, plus up to 10%
// jitter to avoid retry stampedes.
func (m *Model) calculateBackoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay/10) + 1))
	return delay + jitter
}

// Clone returns a copy of the model with its own option pointers, so the
// copy can be tuned without mutating the original.
func (m *Model) Clone() *Model {
	clone := *m
	clone.Temperature = clonePtr(m.Temperature)
	clone.MaxTokens = clonePtr(m.MaxTokens)
	clone.TopP = clonePtr(m.TopP)
	clone.FrequencyPenalty = clonePtr(m.FrequencyPenalty)
	clone.PresencePenalty = clonePtr(m.PresencePenalty)
	clone.StopSequences = clonePtr(m.StopSequences)
	clone.MaxRetries = clonePtr(m.MaxRetries)
	if m.Parameters != nil {
		clone.Parameters = make(map[string]any, len(m.Parameters))
		for k, v := range m.Parameters {
			clone.Parameters[k] = v
		}
	}
	return &clone
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// WithTemperature sets the temperature for the model and returns the model for chaining
func (m *Model) WithTemperature(temperature float64) *Model {
	m.Temperature = &temperature
	return m
}

// WithMaxTokens sets the maximum tokens for the model and returns the model for chaining
func (m *Model) WithMaxTokens(maxTokens int) *Model {
	m.MaxTokens = &maxTokens
	return m
}

// WithTopP sets the top_p parameter for the model and returns the model for chaining
func (m *Model) WithTopP(topP float64) *Model {
	m.TopP = &topP
	return m
}

// WithFrequencyPenalty sets the frequency penalty for the model and returns the model for chaining
func (m *Model) WithFrequencyPenalty(penalty float64) *Model {
	m.FrequencyPenalty = &penalty
	return m
}

// WithPresencePenalty sets the presence penalty for the model and returns the model for chaining
func (m *Model) WithPresencePenalty(penalty float64) *Model {
	m.PresencePenalty = &penalty
	return m
}

// WithStopSequences sets the stop sequences for the model and returns the model for chaining
func (m *Model) WithStopSequences(sequences []string) *Model {
	m.StopSequences = &sequences
	return m
}

// WithMaxRetries sets the total attempt count for the model and returns the model for chaining
func (m *Model) WithMaxRetries(maxRetries int) *Model {
	m.MaxRetries = &maxRetries
	return m
}

// WithLimiter attaches a limiter to the model and returns the model for chaining
func (m *Model) WithLimiter(limiter *Limiter) *Model {
	m.Limiter = limiter
	return m
}

func (m *Model) WithParameter(name string, value any) *Model {
	if m.Parameters == nil {
		m.Parameters = map[string]any{}
	}
	m.Parameters[name] = value
	return m
}

// SetGenerateFunc sets the completion function for the model. This is used to override the default function to use a non standard provider.
func (m *Model) SetGenerateFunc(generateFunc CallFunc) error {
	m.callFunc = generateFunc
	return nil
}

// SetStreamingFunc sets the streaming function for the model.
func (m *Model) SetStreamingFunc(streamFunc StreamFunc) error {
	m.streamFunc = streamFunc
	return nil
}

// ExtractThinkTags extracts <think>...</think> tags from the content and returns both the cleaned content and the think part
func ExtractThinkTags(content string) (cleanedContent string, thinkPart string) {
	startTag := "<think>"
	endTag := "</think>"

	start := strings.Index(content, startTag)
	if start == -1 {
		return content, "" // No think tags found
	}

	end := strings.Index(content[start:], endTag)
	if end == -1 {
		return content, "" // No closing tag found
	}
	end += start + len(endTag)

	thinkPart = content[start+len(startTag) : end-len(endTag)]
	cleanedContent = content[:start] + content[end:]

	return strings.TrimSpace(cleanedContent), strings.TrimSpace(thinkPart)
}

// recordAIMessage records a model response to the specified file
func (m *Model) recordAIMessage(response AIMessage, err error) {
	recorded := RecordedResponse{
		AIMessage: response,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		recorded.Error = err.Error()
	}

	// Compact format for JSONL
	jsonData, marshalErr := json.Marshal(recorded)
	if marshalErr != nil {
		return
	}

	file, openErr := os.OpenFile(m.RecordFilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if openErr != nil {
		return
	}
	defer file.Close()

	file.Write(jsonData)
	file.WriteString("\n")
}

// LoadRecords loads recorded responses from a file for replay in dummy models
func LoadRecords(filename string) ([]RecordedResponse, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorded responses file: %w", err)
	}
	defer file.Close()

	var records []RecordedResponse
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record RecordedResponse
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recorded response: %w", err)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading recorded responses file: %w", err)
	}

	return records, nil
}
