package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter tracks request counts per subject in fixed
// one-minute windows, entirely in memory. Suited to a single-instance
// deployment; a multi-replica setup needs a shared limiter in front.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu      sync.Mutex
	buckets map[string]*bucket
}

// bucket is one subject's count within the current window.
type bucket struct {
	count     int
	startedAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
// Tiers missing from the map fall back to defaultRPM; a non-positive
// limit means unlimited.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		buckets:    make(map[string]*bucket),
	}
}

// Allow reports whether the identity may make another request in the
// current window. Returns ErrTooManyRequests once the tier's limit is
// exhausted.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if tc, ok := l.tiers[tier]; ok {
		rpm = tc.RequestsPerMinute
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.startedAt) >= time.Minute {
		l.buckets[key] = &bucket{count: 1, startedAt: now}
		return nil
	}

	b.count++
	if b.count > rpm {
		return ErrTooManyRequests
	}
	return nil
}
