package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avekoy/portier/pkg/debug"
	"github.com/avekoy/portier/pkg/observability"
	"github.com/avekoy/portier/pkg/principal"
)

// Authorizer decides whether an authenticated request may proceed. A nil
// response means allowed; a non-nil response is the challenge or forbid
// descriptor to send instead. Errors are configuration defects
// (*SchemeError), not authorization denials.
//
// authz.Policy implements this interface.
type Authorizer interface {
	Authorize(ctx context.Context) (*Response, error)
}

// Middleware creates HTTP middleware from an authentication service, an
// optional authorizer, and an optional rate limiter. It checks the bypass
// list, runs authentication, attaches the outcome to the request context,
// runs the authorizer, and either forwards the enriched request or writes
// the terminal response descriptor.
func Middleware(svc *Service, authorize Authorizer, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check bypass list.
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// Run authentication and attach the outcome.
			start := time.Now()
			ctx := svc.Authenticate(r.Context(), r)
			p := PrincipalFromContext(ctx)

			outcome := observability.OutcomeSuccess
			if p == nil {
				outcome = observability.OutcomeFailed
				if errors.Is(FailureFromContext(ctx), ErrNoCredential) {
					outcome = observability.OutcomeNoCredential
				}
			}
			observability.AuthAttemptsTotal.WithLabelValues(outcome).Inc()
			observability.AuthDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

			r = r.WithContext(ctx)

			// Run authorization.
			if authorize != nil {
				resp, err := authorize.Authorize(ctx)
				if err != nil {
					slog.Error("authorization misconfigured", "path", r.URL.Path, "error", err)
					http.Error(w, `{"error":{"type":"server_error","message":"internal authorization error"}}`, http.StatusInternalServerError)
					return
				}
				if resp != nil {
					debug.Log("policy", "request denied",
						"path", r.URL.Path,
						"status", resp.Status,
						"remote_addr", r.RemoteAddr,
					)
					resp.Write(w)
					return
				}
			}

			// Rate limiting applies to authenticated callers only.
			if limiter != nil && p != nil {
				if err := limiter.Allow(ctx, p); err != nil {
					tier := p.StringClaim(principal.TierClaim)
					slog.Warn("rate limit exceeded", "subject", p.Subject(), "tier", tier)
					observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
					http.Error(w, `{"error":{"type":"too_many_requests","message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
