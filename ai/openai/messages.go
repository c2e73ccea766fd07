package openai

import (
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/quillworks-ai/quill/ai"
)

func toChatMessages(msgs []ai.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch m := msg.(type) {
		case ai.UserMessage:
			result = append(result, toChatUserMessage(m))
		case ai.SystemMessage:
			result = append(result, toChatSystemMessage(m))
		case ai.AIMessage:
			result = append(result, toChatAssistantMessage(m))
		default:
			return nil, fmt.Errorf("unsupported message type: %T", msg)
		}
	}
	return result, nil
}

func toChatUserMessage(msg ai.UserMessage) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(msg.Content),
			},
		},
	}
}

func toChatSystemMessage(msg ai.SystemMessage) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfSystem: &openai.ChatCompletionSystemMessageParam{
			Content: openai.ChatCompletionSystemMessageParamContentUnion{
				OfString: openai.Opt(msg.Content),
			},
		},
	}
}

func toChatAssistantMessage(msg ai.AIMessage) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Content: openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.Opt(msg.Content),
			},
		},
	}
}

func fromChatResponse(resp *openai.ChatCompletion, choiceIndex int) ai.AIMessage {
	if len(resp.Choices) <= choiceIndex {
		return ai.AIMessage{}
	}
	choice := resp.Choices[choiceIndex]

	return ai.AIMessage{
		Role:    ai.AssistantRole,
		Content: choice.Message.Content,
		Response: ai.Response{
			ID:      resp.ID,
			Object:  string(resp.Object),
			Created: resp.Created,
			Model:   string(resp.Model),
			Usage: ai.Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		},
	}
}
