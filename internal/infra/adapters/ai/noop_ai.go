package ai

import (
	"context"
	"time"

	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers every chat with a canned reply. Used when no provider
// key is configured and in tests.
type NoopAIAdapter struct {
	Reply string
	Delay time.Duration
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{Reply: "This is a noop AI response."}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return estimateMessages(messages), nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return "", adapter.Usage{}, ctx.Err()
		}
	}
	prompt := estimateMessages(messages)
	completion := estimateTokens(a.Reply)
	return a.Reply, adapter.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}, nil
}
