package worker

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter rate-limits calls per scope: a bucket name, an LLM provider, or
// "local" for filesystem sources
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter. requestsPerSecond <= 0 disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	r := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		r = rate.Inf
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until scope may proceed
func (l *Limiter) Wait(ctx context.Context, scope string) error {
	return l.getLimiter(scope).Wait(ctx)
}

// Allow reports whether scope may proceed now without waiting
func (l *Limiter) Allow(scope string) bool {
	return l.getLimiter(scope).Allow()
}

func (l *Limiter) getLimiter(scope string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[scope]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[scope]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[scope] = limiter
	return limiter
}

// SetRate overrides the rate for one scope. requestsPerSecond <= 0 removes
// the limit.
func (l *Limiter) SetRate(scope string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if burst <= 0 {
		burst = l.defaultBurst
	}
	r := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		r = rate.Inf
	}
	l.limiters[scope] = rate.NewLimiter(r, burst)
}

// Scope maps a source reference to its limiter scope: the bucket of an
// s3:// reference, otherwise "local"
func Scope(ref string) string {
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		bucket, _, _ := strings.Cut(rest, "/")
		return "s3:" + bucket
	}
	return "local"
}
