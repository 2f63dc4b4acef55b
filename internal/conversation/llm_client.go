package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// turnsToMessages converts stored history into chat messages.
func turnsToMessages(turns []Turn) []ChatMessage {
	out := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		role := ChatRoleUser
		if t.Role == ChatRoleAssistant {
			role = ChatRoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: t.Content})
	}
	return out
}
