//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestUsageRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewUsageRepo(testPool)
	end := time.Now().Add(24 * time.Hour)

	t.Run("missing bucket reads as zero", func(t *testing.T) {
		cleanup(t)
		n, err := repo.Get(ctx, nil, "u1", "chat_messages", "day:2026-01-01")
		if err != nil || n != 0 {
			t.Errorf("expected 0, got %d (%v)", n, err)
		}
	})

	t.Run("increments accumulate per bucket", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Increment(ctx, nil, "u1", "chat_messages", "day:2026-01-01", 1, end); err != nil {
			t.Fatal(err)
		}
		n, err := repo.Increment(ctx, nil, "u1", "chat_messages", "day:2026-01-01", 2, end)
		if err != nil || n != 3 {
			t.Errorf("expected 3, got %d (%v)", n, err)
		}
		other, _ := repo.Get(ctx, nil, "u1", "chat_messages", "day:2026-01-02")
		if other != 0 {
			t.Errorf("expected next day bucket to be empty, got %d", other)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		cleanup(t)
		const workers = 50
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Increment(ctx, nil, "u2", "quiz_attempts", "day:2026-01-01", 1, end); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("increment failed: %v", err)
		}
		n, err := repo.Get(ctx, nil, "u2", "quiz_attempts", "day:2026-01-01")
		if err != nil || n != workers {
			t.Errorf("expected %d, got %d (%v)", workers, n, err)
		}
	})
}
