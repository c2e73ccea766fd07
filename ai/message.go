package ai

type MessageRole string

const (
	UserRole      MessageRole = "user"
	AssistantRole MessageRole = "assistant"
	SystemRole    MessageRole = "system"
)

type Message interface {
	Value() (role MessageRole, content string)
}

var (
	_ Message = UserMessage{}
	_ Message = AIMessage{}
	_ Message = SystemMessage{}
)

type AIMessage struct {
	Role     MessageRole
	Content  string
	Think    string
	Response Response
}

func (m AIMessage) Value() (MessageRole, string) {
	return m.Role, m.Content
}

type UserMessage struct {
	Role    MessageRole
	Content string
}

func (m UserMessage) Value() (MessageRole, string) {
	return m.Role, m.Content
}

type SystemMessage struct {
	Role    MessageRole
	Content string
}

func (m SystemMessage) Value() (MessageRole, string) {
	return m.Role, m.Content
}

// Response carries provider metadata for a completed call.
type Response struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}
