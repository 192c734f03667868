package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avekoy/portier/pkg/principal"
)

// ErrTooManyRequests is returned by a RateLimiter when a principal exceeds
// its allowance.
var ErrTooManyRequests = errors.New("rate limit exceeded")

// RateLimiter checks whether an authenticated request should be allowed
// based on the principal's tier claim.
type RateLimiter interface {
	Allow(ctx context.Context, p *principal.Principal) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter is a fixed-window rate limiter that tracks request
// counts per subject in memory. The window key combines the principal's
// subject and tier claims; the window resets wholesale once a minute has
// elapsed.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int
	mu         sync.Mutex
	counters   map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		counters:   make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
// Fails open: a principal without a subject claim is not limited.
func (l *InProcessLimiter) Allow(_ context.Context, p *principal.Principal) error {
	subject := p.Subject()
	if subject == "" {
		return nil
	}

	tier := p.StringClaim(principal.TierClaim)
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if tc, ok := l.tiers[tier]; ok {
		rpm = tc.RequestsPerMinute
	}

	if rpm <= 0 {
		return nil // no limit
	}

	key := subject + ":" + tier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		// New window.
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return ErrTooManyRequests
	}

	return nil
}
