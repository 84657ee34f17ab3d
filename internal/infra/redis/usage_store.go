package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/ports/repository"
)

// usageGrace keeps a bucket readable for a day after its period closes.
const usageGrace = 24 * time.Hour

var _ repository.UsageRepository = (*UsageStore)(nil)

// UsageStore keeps usage counters in Redis. The tx argument is ignored;
// INCRBY is atomic on its own.
type UsageStore struct {
	client RedisClient
}

func NewUsageStore(client RedisClient) *UsageStore {
	return &UsageStore{client: client}
}

func usageKey(userID, metric, periodKey string) string {
	return fmt.Sprintf("usage:%s:%s:%s", userID, metric, periodKey)
}

func (s *UsageStore) Increment(ctx context.Context, _ repository.Tx, userID, metric, periodKey string, delta int64, periodEnd time.Time) (int64, error) {
	if delta < 1 {
		return 0, domain.ErrInvalidArgument
	}
	key := usageKey(userID, metric, periodKey)
	n, err := s.client.IncrBy(ctx, key, delta)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	if n == delta {
		if err := s.client.ExpireAt(ctx, key, periodEnd.Add(usageGrace)); err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
	}
	return n, nil
}

func (s *UsageStore) Get(ctx context.Context, _ repository.Tx, userID, metric, periodKey string) (int64, error) {
	v, err := s.client.Get(ctx, usageKey(userID, metric, periodKey))
	if IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return n, nil
}
