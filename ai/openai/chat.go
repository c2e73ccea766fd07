package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"github.com/quillworks-ai/quill/ai"
)

func callChatAPI(ctx context.Context, model *ai.Model, messages []ai.Message) (ai.AIMessage, error) {
	chatMsgs, err := toChatMessages(messages)
	if err != nil {
		return ai.AIMessage{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	params := buildChatParams(model, chatMsgs)

	client := createClient(model)
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ai.AIMessage{}, isRetryableError(err)
	}

	aiMsg := fromChatResponse(resp, 0)
	content, thinkPart := ai.ExtractThinkTags(aiMsg.Content)
	aiMsg.Content = content
	aiMsg.Think = thinkPart

	return aiMsg, nil
}

func streamChatAPI(ctx context.Context, model *ai.Model, messages []ai.Message, chunkFunction func(ai.AIMessage) error) (ai.AIMessage, error) {
	chatMsgs, err := toChatMessages(messages)
	if err != nil {
		return ai.AIMessage{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	params := buildChatParams(model, chatMsgs)

	client := createClient(model)
	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var finalMessage ai.AIMessage
	var accumulatedContent strings.Builder
	var accumulatedThink strings.Builder
	var responseID string
	var responseCreated int64
	var responseModel string
	var usage ai.Usage
	parser := &streamingThinkParser{}

	for stream.Next() {
		chunk := stream.Current()
		if chunk.ID != "" && responseID == "" {
			responseID = chunk.ID
		}
		if chunk.Created != 0 && responseCreated == 0 {
			responseCreated = chunk.Created
		}
		if chunk.Model != "" && responseModel == "" {
			responseModel = string(chunk.Model)
		}
		if chunk.Usage.TotalTokens != 0 {
			usage = ai.Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}

		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			delta := choice.Delta
			if delta.Content != "" {
				contentForChunk, thinkForChunk := parser.addChunk(delta.Content)
				accumulatedContent.WriteString(contentForChunk)
				accumulatedThink.WriteString(thinkForChunk)

				if contentForChunk != "" || thinkForChunk != "" {
					partialMessage := ai.AIMessage{
						Role:    ai.AssistantRole,
						Content: contentForChunk,
						Think:   thinkForChunk,
					}
					if err := chunkFunction(partialMessage); err != nil {
						return ai.AIMessage{}, err
					}
				}
			}

			if delta.Role != "" && finalMessage.Role == "" {
				finalMessage.Role = ai.MessageRole(delta.Role)
			}

			if choice.FinishReason != "" {
				break
			}
		}
	}

	if err := stream.Err(); err != nil {
		return ai.AIMessage{}, isRetryableError(err)
	}

	flushContent, flushThink := parser.flush()
	if flushContent != "" {
		accumulatedContent.WriteString(flushContent)
	}
	if flushThink != "" {
		accumulatedThink.WriteString(flushThink)
	}

	if finalMessage.Role == "" {
		finalMessage.Role = ai.AssistantRole
	}
	finalMessage.Content = accumulatedContent.String()
	finalMessage.Think = accumulatedThink.String()

	if responseID != "" {
		finalMessage.Response = ai.Response{
			ID:      responseID,
			Object:  "chat.completion",
			Created: responseCreated,
			Model:   responseModel,
			Usage:   usage,
		}
	}

	return finalMessage, nil
}

func buildChatParams(model *ai.Model, chatMsgs []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model.ModelName),
		Messages: chatMsgs,
	}

	if model.Temperature != nil {
		params.Temperature = openai.Opt(*model.Temperature)
	}
	if model.MaxTokens != nil {
		params.MaxTokens = openai.Opt(int64(*model.MaxTokens))
	}
	if model.TopP != nil {
		params.TopP = openai.Opt(*model.TopP)
	}
	if model.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Opt(*model.FrequencyPenalty)
	}
	if model.PresencePenalty != nil {
		params.PresencePenalty = openai.Opt(*model.PresencePenalty)
	}
	if model.StopSequences != nil && len(*model.StopSequences) > 0 {
		stopSeqs := *model.StopSequences
		if len(stopSeqs) == 1 {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{
				OfString: openai.Opt(stopSeqs[0]),
			}
		} else {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{
				OfStringArray: stopSeqs,
			}
		}
	}

	return params
}

// streamingThinkParser splits <think>...</think> sections out of a delta
// stream so reasoning traces never reach the content channel.
type streamingThinkParser struct {
	buffer     string
	inThinkTag bool
}

func (p *streamingThinkParser) addChunk(rawChunk string) (contentChunk string, thinkChunk string) {
	p.buffer += rawChunk

	for {
		if !p.inThinkTag {
			startIdx := strings.Index(p.buffer, "<think>")
			if startIdx == -1 {
				contentChunk = p.buffer
				p.buffer = ""
				return contentChunk, ""
			}

			if startIdx > 0 {
				contentChunk = p.buffer[:startIdx]
				p.buffer = p.buffer[startIdx:]
				return contentChunk, ""
			}

			if len(p.buffer) >= len("<think>") {
				p.inThinkTag = true
				p.buffer = p.buffer[len("<think>"):]
				continue
			}

			return "", ""
		} else {
			endIdx := strings.Index(p.buffer, "</think>")
			if endIdx == -1 {
				if len(p.buffer) > 0 {
					thinkChunk = p.buffer
					p.buffer = ""
				}
				return "", thinkChunk
			}

			thinkChunk = p.buffer[:endIdx]
			p.buffer = p.buffer[endIdx+len("</think>"):]
			p.inThinkTag = false
			return "", thinkChunk
		}
	}
}

func (p *streamingThinkParser) flush() (contentChunk string, thinkChunk string) {
	if p.inThinkTag {
		return "", p.buffer
	}
	return p.buffer, ""
}
