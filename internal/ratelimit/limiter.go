// Package ratelimit throttles API clients with one token bucket per client key.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config sizes the per-client buckets.
type Config struct {
	RPS             float64       // refill rate, tokens per second
	Burst           int           // bucket capacity
	CleanupInterval time.Duration // sweep period, and how long a bucket may sit idle
}

// DefaultConfig is used when RATE_LIMIT_* is unset.
var DefaultConfig = Config{
	RPS:             20,
	Burst:           40,
	CleanupInterval: 10 * time.Minute,
}

// Decision is the outcome of Take.
type Decision struct {
	Allowed    bool
	Remaining  int           // whole tokens left after an allowed request
	RetryAfter time.Duration // wait until a token is available, when not allowed
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	return max(secs, 1)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out buckets by key and sweeps idle ones in the background.
type RateLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	stopOnce sync.Once
	sweeper  sync.WaitGroup
}

// NewRateLimiter starts a limiter and its sweeper goroutine. Call Stop when done.
func NewRateLimiter(cfg Config) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig.CleanupInterval
	}
	rl := &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	rl.sweeper.Add(1)
	go rl.sweep()
	return rl
}

// GetLimiter returns the bucket for key, creating it on first use.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = rl.now()
	return b.limiter
}

// Take spends one token from key's bucket if one is available.
// A refused request does not consume anything.
func (rl *RateLimiter) Take(key string) Decision {
	lim := rl.GetLimiter(key)
	now := rl.now()

	if lim.AllowN(now, 1) {
		return Decision{Allowed: true, Remaining: max(int(lim.TokensAt(now)), 0)}
	}
	if lim.Limit() <= 0 {
		return Decision{RetryAfter: time.Second}
	}
	missing := 1 - lim.TokensAt(now)
	return Decision{RetryAfter: time.Duration(missing / float64(lim.Limit()) * float64(time.Second))}
}

// Allow is Take reduced to its verdict.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.Take(key).Allowed
}

// Cleanup drops buckets unused for longer than the cleanup interval.
func (rl *RateLimiter) Cleanup() {
	cutoff := rl.now().Add(-rl.cfg.CleanupInterval)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) sweep() {
	defer rl.sweeper.Done()

	t := time.NewTicker(rl.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.Cleanup()
		}
	}
}

// Stop ends the sweeper and waits for it. Repeated calls are no-ops.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
	rl.sweeper.Wait()
}

// Len is the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
