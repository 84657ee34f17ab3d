//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
)

type countingRepo struct {
	calls atomic.Int32
	err   error
}

func (r *countingRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[model.TierID]int, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return map[model.TierID]int{model.TierFree: 3, model.TierPremium: 1}, nil
}

func TestStatsWorker_RefreshesUntilCanceled(t *testing.T) {
	// --- Arrange ---
	logger := zerolog.Nop()
	repo := &countingRepo{}
	var poolCalls atomic.Int32
	pool := func() (int32, int32, int32) {
		poolCalls.Add(1)
		return 10, 7, 3
	}
	w := NewStatsWorker(10*time.Millisecond, repo, pool, &logger)
	ctx, cancel := context.WithCancel(context.Background())

	// --- Act ---
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(55 * time.Millisecond)
	cancel()

	// --- Assert ---
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	if repo.calls.Load() < 2 {
		t.Errorf("expected several refreshes, got %d", repo.calls.Load())
	}
	if poolCalls.Load() != repo.calls.Load() {
		t.Errorf("expected pool stats on every tick, got %d vs %d", poolCalls.Load(), repo.calls.Load())
	}
}

func TestStatsWorker_SurvivesRepositoryErrors(t *testing.T) {
	logger := zerolog.Nop()
	repo := &countingRepo{err: errors.New("db down")}
	w := NewStatsWorker(5*time.Millisecond, repo, nil, &logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if repo.calls.Load() < 2 {
		t.Errorf("expected the worker to keep ticking after errors, got %d calls", repo.calls.Load())
	}
}
