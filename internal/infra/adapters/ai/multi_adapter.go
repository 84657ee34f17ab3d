package ai

import (
	"context"
	"errors"
	"strings"

	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes by model name and falls back to the remaining
// providers, in order, when the chosen one fails.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.AIServiceAdapter
	order           []string
}

// NewMultiAIAdapter does not inject any default model; each provider adapter
// is responsible for its own. order lists provider names in fallback order.
func NewMultiAIAdapter(defaultProvider string, byProvider map[string]adapter.AIServiceAdapter, order []string) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		order:           order,
	}
}

func (m *MultiAIAdapter) Name() string { return "multi" }

func (m *MultiAIAdapter) resolveProvider(model string) string {
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

// chain returns the routed provider first, then the rest in fallback order.
func (m *MultiAIAdapter) chain(model string) []string {
	first := m.resolveProvider(model)
	out := make([]string, 0, len(m.order)+1)
	if m.byProvider[first] != nil {
		out = append(out, first)
	}
	for _, p := range m.order {
		if p != first && m.byProvider[p] != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	chain := m.chain(model)
	if len(chain) == 0 {
		return estimateMessages(messages), nil
	}
	return m.byProvider[chain[0]].CountTokens(ctx, model, messages)
}

func (m *MultiAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	chain := m.chain(model)
	if len(chain) == 0 {
		return "", adapter.Usage{}, errors.New("ai: no provider configured")
	}
	var errs []error
	for i, p := range chain {
		// a fallback provider gets its own default model
		mdl := model
		if i > 0 {
			mdl = ""
		}
		reply, u, err := m.byProvider[p].ChatWithUsage(ctx, mdl, messages)
		if err == nil {
			return reply, u, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", adapter.Usage{}, errors.Join(errs...)
}

func estimateMessages(msgs []adapter.Message) int {
	n := 0
	for _, m := range msgs {
		n += 4 + estimateTokens(m.Content)
	}
	return n
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
