package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"career-advisor-platform/internal/config"
)

// RedisClient is the command subset the usage store and rate limiter use.
type RedisClient interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	ExpireAt(ctx context.Context, key string, at time.Time) error
	Close() error
}

var _ RedisClient = (*Client)(nil)

// Client wraps go-redis with error-only returns.
type Client struct {
	rdb *redis.Client
}

// NewClient accepts either a redis:// URL or a bare host:port. Password and
// DB from config apply on top of the URL.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(ctx, redis.NewClient(opts))
}

func options(cfg *config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.URL}
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = parsed
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return opts, nil
}

// Wrap verifies connectivity of an existing go-redis client; tests pass one
// pointed at miniredis.
func Wrap(ctx context.Context, rdb *redis.Client) (*Client, error) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.rdb.IncrBy(ctx, key, delta).Result()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *Client) ExpireAt(ctx context.Context, key string, at time.Time) error {
	return c.rdb.ExpireAt(ctx, key, at).Err()
}

func (c *Client) Close() error { return c.rdb.Close() }

// IsNil reports whether err is the "key does not exist" reply.
func IsNil(err error) bool { return errors.Is(err, redis.Nil) }
