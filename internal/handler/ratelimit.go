package handler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 15 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per client key. Idle buckets are
// swept on access rather than by a background goroutine.
type limiterStore struct {
	mu        sync.Mutex
	perMinute int
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterStore(perMinute int) *limiterStore {
	return &limiterStore{
		perMinute: perMinute,
		entries:   make(map[string]*limiterEntry),
	}
}

func (s *limiterStore) interval() time.Duration {
	return time.Minute / time.Duration(s.perMinute)
}

func (s *limiterStore) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > time.Minute {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(s.interval()), s.perMinute)}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
