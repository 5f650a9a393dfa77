package ai

import (
	"context"

	"whatsapp-ai-bridge/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GenerationAdapter = (*limitedAI)(nil)

// limitedAI caps in-flight provider calls with a semaphore. Generation can
// take tens of seconds; without a cap a busy worker pool could open one
// upstream connection per worker.
type limitedAI struct {
	inner adapter.GenerationAdapter
	sem   chan struct{}
}

func NewLimitedAI(inner adapter.GenerationAdapter, maxConcurrent int) adapter.GenerationAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return l.inner.GetModelInfo(model)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, model, messages)
}

func (l *limitedAI) GenerateStream(ctx context.Context, model string, messages []adapter.Message, onDelta func(delta string) error) (adapter.Usage, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Usage{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.GenerateStream(ctx, model, messages, onDelta)
}
