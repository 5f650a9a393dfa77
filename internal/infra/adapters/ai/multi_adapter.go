package ai

import (
	"context"
	"errors"
	"strings"

	"whatsapp-ai-bridge/internal/domain/ports/adapter"
)

var errNoProvider = errors.New("ai: no provider configured")

var _ adapter.GenerationAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each call to the provider owning the requested
// model, with failover between providers when generation fails before any
// output has been produced.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.GenerationAdapter
	modelToProvider map[string]string
	order           []string // failover order
}

// NewMultiAIAdapter does not inject any default model; it only knows a
// default provider. Each provider adapter keeps its own default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.GenerationAdapter,
	modelToProvider map[string]string,
	order []string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
		order:           order,
	}
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) adapter.GenerationAdapter {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return a
	}
	for _, p := range m.order {
		if a := m.byProvider[p]; a != nil {
			return a
		}
	}
	return nil
}

// fallbacks returns the adapters after the primary, in configured order.
func (m *MultiAIAdapter) fallbacks(primary string) []adapter.GenerationAdapter {
	var out []adapter.GenerationAdapter
	for _, p := range m.order {
		if p == primary {
			continue
		}
		if a := m.byProvider[p]; a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (m *MultiAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(m.modelToProvider)+4)

	for model := range m.modelToProvider {
		if _, ok := seen[model]; !ok {
			seen[model] = struct{}{}
			out = append(out, model)
		}
	}
	for _, a := range m.byProvider {
		list, _ := a.ListModels(ctx)
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	return out, nil
}

func (m *MultiAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	a := m.pick(model)
	if a == nil {
		return adapter.ModelInfo{Name: model}, nil
	}
	return a.GetModelInfo(model)
}

func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	a := m.pick(model)
	if a == nil {
		return 0, nil
	}
	return a.CountTokens(ctx, model, messages)
}

// GenerateStream tries the primary provider first. A fallback provider is
// consulted only when the primary failed before emitting a single delta;
// once output has reached the caller, switching providers would duplicate
// or contradict it.
func (m *MultiAIAdapter) GenerateStream(ctx context.Context, model string, messages []adapter.Message, onDelta func(delta string) error) (adapter.Usage, error) {
	primary := m.resolveProvider(model)
	a := m.byProvider[primary]
	if a == nil {
		fbs := m.fallbacks(primary)
		if len(fbs) == 0 {
			return adapter.Usage{}, errNoProvider
		}
		a, fbs = fbs[0], fbs[1:]
		return m.streamWithFallback(ctx, a, fbs, model, messages, onDelta)
	}
	return m.streamWithFallback(ctx, a, m.fallbacks(primary), model, messages, onDelta)
}

func (m *MultiAIAdapter) streamWithFallback(ctx context.Context, primary adapter.GenerationAdapter, fbs []adapter.GenerationAdapter, model string, messages []adapter.Message, onDelta func(delta string) error) (adapter.Usage, error) {
	emitted := false
	wrapped := func(delta string) error {
		emitted = true
		return onDelta(delta)
	}

	u, err := primary.GenerateStream(ctx, model, messages, wrapped)
	if err == nil || emitted || ctx.Err() != nil {
		return u, err
	}
	for _, fb := range fbs {
		// Fallback providers pick their own default model.
		u, err = fb.GenerateStream(ctx, "", messages, wrapped)
		if err == nil || emitted || ctx.Err() != nil {
			return u, err
		}
	}
	return u, err
}
