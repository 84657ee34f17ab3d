package logging

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimited emits at most one warning per key per cooldown. State lives in
// the value, and time comes from the injected clock.
type RateLimited struct {
	log      *zerolog.Logger
	cooldown time.Duration
	now      func() time.Time

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	suppressed map[string]int
}

func NewRateLimited(logger *zerolog.Logger, cooldown time.Duration, now func() time.Time) *RateLimited {
	if now == nil {
		now = time.Now
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &RateLimited{
		log:        logger,
		cooldown:   cooldown,
		now:        now,
		limiters:   map[string]*rate.Limiter{},
		suppressed: map[string]int{},
	}
}

// Warn returns a warning event for key, or nil when key is cooling down.
// zerolog events are nil-safe, so callers chain fields and Msg unconditionally.
func (r *RateLimited) Warn(key string) *zerolog.Event {
	r.mu.Lock()
	lim, ok := r.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.cooldown), 1)
		r.limiters[key] = lim
	}
	if !lim.AllowN(r.now(), 1) {
		r.suppressed[key]++
		r.mu.Unlock()
		return nil
	}
	dropped := r.suppressed[key]
	r.suppressed[key] = 0
	r.mu.Unlock()

	ev := r.log.Warn().Str("throttle_key", key)
	if dropped > 0 {
		ev = ev.Int("suppressed", dropped)
	}
	return ev
}
