package adapter

import "context"

// Chat roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of an advisor conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting a provider reports for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the LLM port the advisor talks to.
type AIServiceAdapter interface {
	// Name labels the provider in logs and metrics.
	Name() string

	// CountTokens returns the prompt size of messages for model. Adapters
	// without an exact tokenizer may estimate.
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// ChatWithUsage returns the assistant reply and the provider's usage.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}
