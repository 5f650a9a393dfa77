package ai

import (
	"context"
	"strings"
	"time"

	"whatsapp-ai-bridge/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.GenerationAdapter for local/dev runs.
// It streams a canned reply word by word instead of calling a provider.
type NoopAIAdapter struct {
	Reply string
	Delay time.Duration
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{
		Reply: "This is a noop AI response.",
		Delay: 10 * time.Millisecond,
	}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-ai-model"}, nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        "noop-ai-model",
		Description: "Noop AI model for testing",
		MaxTokens:   1024,
		Supports:    []string{"text"},
	}, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n, nil
}

func (a *NoopAIAdapter) GenerateStream(ctx context.Context, model string, messages []adapter.Message, onDelta func(delta string) error) (adapter.Usage, error) {
	words := strings.SplitAfter(a.Reply, " ")
	for _, w := range words {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return adapter.Usage{}, ctx.Err()
		}
		if err := onDelta(w); err != nil {
			return adapter.Usage{}, err
		}
	}
	in, _ := a.CountTokens(ctx, model, messages)
	return adapter.Usage{
		PromptTokens:     in,
		CompletionTokens: len(words),
		TotalTokens:      in + len(words),
	}, nil
}
