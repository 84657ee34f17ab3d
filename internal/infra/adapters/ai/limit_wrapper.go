package ai

import (
	"context"

	"golang.org/x/sync/semaphore"

	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

// limitedAI bounds in-flight provider calls across all advisor requests.
type limitedAI struct {
	inner adapter.AIServiceAdapter
	slots *semaphore.Weighted
}

// NewLimitedAI caps concurrent provider calls at maxConcurrent. A caller
// waiting for a slot gives up when its ctx ends. maxConcurrent <= 0 disables
// the cap.
func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{inner: inner, slots: semaphore.NewWeighted(int64(maxConcurrent))}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return "", adapter.Usage{}, err
	}
	defer l.slots.Release(1)
	return l.inner.ChatWithUsage(ctx, model, messages)
}

// CountTokens goes over the network for Gemini, so it takes a slot too.
func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer l.slots.Release(1)
	return l.inner.CountTokens(ctx, model, messages)
}
