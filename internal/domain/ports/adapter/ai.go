package adapter

import "context"

// Message mirrors the chat-completion wire shape used by all providers.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type ModelInfo struct {
	Name        string
	Description string
	MaxTokens   int
	Supports    []string
}

// GenerationAdapter is the external text-generation collaborator. Calls may
// take tens of seconds and deliver output incrementally through onDelta. The
// queue core performs zero retries of GenerateStream; a returned error is a
// terminal processing failure for the job that triggered it.
type GenerationAdapter interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(model string) (ModelInfo, error)

	// CountTokens estimates prompt tokens for metrics/accounting.
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// GenerateStream produces a reply for messages, invoking onDelta for each
	// output fragment in order. A non-nil error from onDelta aborts the call.
	GenerateStream(ctx context.Context, model string, messages []Message, onDelta func(delta string) error) (Usage, error)
}
