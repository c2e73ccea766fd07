package ai

import (
	"context"
	"fmt"
	"strings"
)

// NewDummyModel is useful for testing purposes. It allows you to mock the model's response.
// The dummy supports streaming: the response content is delivered to the
// chunk function in small fragments whose concatenation equals the content.
func NewDummyModel(responseFunc func(ctx context.Context, messages []Message) (AIMessage, error)) *Model {
	m := &Model{ModelName: "dummy"}
	m.callFunc = func(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
		return responseFunc(ctx, messages)
	}
	m.streamFunc = func(ctx context.Context, model *Model, messages []Message, chunkFunction func(AIMessage) error) (AIMessage, error) {
		response, err := responseFunc(ctx, messages)
		if err != nil {
			return AIMessage{}, err
		}
		for _, piece := range splitChunks(response.Content) {
			if err := chunkFunction(AIMessage{Role: AssistantRole, Content: piece}); err != nil {
				return AIMessage{}, err
			}
		}
		return response, nil
	}
	return m
}

// NewStreamingDummyModel streams the given chunks in order; the final
// message content is their concatenation.
func NewStreamingDummyModel(chunks []string) *Model {
	content := strings.Join(chunks, "")
	m := &Model{ModelName: "dummy"}
	m.callFunc = func(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
		return AIMessage{Role: AssistantRole, Content: content}, nil
	}
	m.streamFunc = func(ctx context.Context, model *Model, messages []Message, chunkFunction func(AIMessage) error) (AIMessage, error) {
		for _, piece := range chunks {
			if err := chunkFunction(AIMessage{Role: AssistantRole, Content: piece}); err != nil {
				return AIMessage{}, err
			}
		}
		return AIMessage{Role: AssistantRole, Content: content}, nil
	}
	return m
}

// NewReplayModel returns a dummy model that replays responses recorded with
// Model.RecordFilename, in order. It fails once the recording is exhausted.
func NewReplayModel(filename string) (*Model, error) {
	records, err := LoadRecords(filename)
	if err != nil {
		return nil, err
	}
	index := 0
	return NewDummyModel(func(ctx context.Context, messages []Message) (AIMessage, error) {
		if index >= len(records) {
			return AIMessage{}, fmt.Errorf("replay exhausted after %d responses", len(records))
		}
		record := records[index]
		index++
		if record.Error != "" {
			return AIMessage{}, fmt.Errorf("%s", record.Error)
		}
		return record.AIMessage, nil
	}), nil
}

// splitChunks breaks content on word boundaries, preserving whitespace so
// the fragments concatenate back to the original content.
func splitChunks(content string) []string {
	if content == "" {
		return nil
	}
	return strings.SplitAfter(content, " ")
}
