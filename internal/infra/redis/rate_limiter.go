package redis

import (
	"context"
	"strconv"
	"time"
)

// RateLimiter counts hits in fixed windows aligned to the clock, so every
// caller sharing a key agrees on where a window starts. The bucket key
// expires when its window closes.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow records one hit for key and reports whether it is within limit for
// the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	start := r.now().Truncate(window)
	bucket := key + ":" + strconv.FormatInt(start.Unix(), 10)

	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.ExpireAt(ctx, bucket, start.Add(window)); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
