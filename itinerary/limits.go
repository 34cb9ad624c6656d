package itinerary

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrLimitReached signals that the usage collaborator denied another
// generation run. It maps to a distinct, non-retryable terminal state.
var ErrLimitReached = errors.New("itinerary generation limit reached")

// Usage reports the counters behind an allow/deny decision.
type Usage struct {
	Used    int
	Limit   int
	Allowed bool
}

// UsageLimiter rate-limits regeneration per (trip, member). Allow both
// checks and, when permitted, consumes one unit.
type UsageLimiter interface {
	Allow(ctx context.Context, tripId, memberId string) (Usage, error)
}

// CacheLimiter counts generation runs per (trip, member) in an expiring
// in-process cache. Counters reset when the window expires.
type CacheLimiter struct {
	counts *cache.Cache
	limit  int
}

// NewCacheLimiter allows up to limit runs per key within the window.
func NewCacheLimiter(limit int, window time.Duration) *CacheLimiter {
	return &CacheLimiter{
		counts: cache.New(window, window/2),
		limit:  limit,
	}
}

func (l *CacheLimiter) Allow(_ context.Context, tripId, memberId string) (Usage, error) {
	key := tripId + ":" + memberId

	used := 0
	if v, ok := l.counts.Get(key); ok {
		used = v.(int)
	}
	if used >= l.limit {
		return Usage{Used: used, Limit: l.limit, Allowed: false}, nil
	}
	l.counts.SetDefault(key, used+1)
	return Usage{Used: used + 1, Limit: l.limit, Allowed: true}, nil
}
