package providers

import "context"

// Message is one entry in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a single completion call.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// UsageInfo mirrors the API's token accounting.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completer is the model surface the agent, summarizer and reflection
// jobs call through. Tests substitute a scripted implementation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}
