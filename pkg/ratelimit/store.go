package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"traderhub.com/pkg/metrics"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen int64 // unix nano
}

type limit struct {
	r     rate.Limit
	burst int
}

// Store 按 key 维护令牌桶：HTTP 按 ip+route，provider 按 provider 名
type Store struct {
	scope   string
	mu      sync.Mutex
	entries map[string]*entry
	rate    rate.Limit
	burst   int
	ttl     time.Duration

	overrides map[string]limit
}

func NewStore(scope string, r rate.Limit, burst int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		scope:     scope,
		entries:   make(map[string]*entry, 1024),
		rate:      r,
		burst:     burst,
		ttl:       ttl,
		overrides: make(map[string]limit),
	}
}

// SetLimit 给某个 key 单独配速率（比如免费档 API 每天 200 次）
func (s *Store) SetLimit(key string, r rate.Limit, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = limit{r: r, burst: burst}
	if e, ok := s.entries[key]; ok {
		e.limiter.SetLimit(r)
		e.limiter.SetBurst(burst)
	}
}

func (s *Store) get(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		r, b := s.rate, s.burst
		if o, ok := s.overrides[key]; ok {
			r, b = o.r, o.burst
		}
		e = &entry{limiter: rate.NewLimiter(r, b), lastSeen: now}
		s.entries[key] = e
		return e.limiter
	}
	atomic.StoreInt64(&e.lastSeen, now)
	return e.limiter
}

// Allow 判断是否允许通过。允许则返回 true。
func (s *Store) Allow(key string) bool {
	if s.get(key).Allow() {
		return true
	}
	metrics.RateLimitBlockTotal.WithLabelValues(s.scope, key).Inc()
	return false
}

func (s *Store) Wait(ctx context.Context, key string) error {
	return s.get(key).Wait(ctx)
}

func (s *Store) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup(time.Now())
			}
		}
	}()
}

func (s *Store) cleanup(now time.Time) {
	cut := now.Add(-s.ttl).UnixNano()

	s.mu.Lock()
	for k, e := range s.entries {
		if atomic.LoadInt64(&e.lastSeen) < cut {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// Len 当前活跃的 key 数
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
