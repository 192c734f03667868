package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/avekoy/portier/pkg/principal"
)

func tierPrincipal(subject, tier string) *principal.Principal {
	p := principal.New()
	p.Set(principal.SubjectClaim, principal.String(subject))
	if tier != "" {
		p.Set(principal.TierClaim, principal.String(tier))
	}
	return p
}

func TestInProcessLimiter_TierLimits(t *testing.T) {
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"free": {RequestsPerMinute: 3},
		"pro":  {RequestsPerMinute: 5},
	}, 2)

	ctx := context.Background()

	// Free tier: 3 allowed, 4th rejected.
	free := tierPrincipal("alice", "free")
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, free); err != nil {
			t.Fatalf("free request %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, free); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("free request 4: err = %v, want ErrTooManyRequests", err)
	}

	// Different subject on the same tier has its own window.
	if err := limiter.Allow(ctx, tierPrincipal("bob", "free")); err != nil {
		t.Errorf("bob's first request: %v", err)
	}

	// Unknown tier falls back to the default limit.
	other := tierPrincipal("carol", "enterprise")
	for i := 0; i < 2; i++ {
		if err := limiter.Allow(ctx, other); err != nil {
			t.Fatalf("default-limit request %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, other); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("default-limit request 3: err = %v, want ErrTooManyRequests", err)
	}
}

func TestInProcessLimiter_NoSubjectNotLimited(t *testing.T) {
	limiter := NewInProcessLimiter(nil, 1)
	p := principal.New()

	for i := 0; i < 5; i++ {
		if err := limiter.Allow(context.Background(), p); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
}

func TestInProcessLimiter_ZeroRPMMeansUnlimited(t *testing.T) {
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"internal": {RequestsPerMinute: 0},
	}, 1)

	p := tierPrincipal("service", "internal")
	for i := 0; i < 10; i++ {
		if err := limiter.Allow(context.Background(), p); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
}
