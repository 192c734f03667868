package authz

import (
	"context"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/observability"
)

// Policy binds an authentication service to a composed requirement. It holds
// no per-request state: given a request context it either allows the request
// or produces the challenge/forbid descriptor, depending on whether
// authentication or authorization is what failed. Policies share the service
// by reference and are cheap to hand around.
type Policy struct {
	service     *auth.Service
	requirement Requirement
}

// Authorize evaluates the policy against the authentication outcome attached
// to ctx.
//
// No successful authentication attached: the caller never proved an
// identity, so the default scheme's challenge is returned and the
// requirement is not evaluated. Requirement false: the caller is
// authenticated but not allowed, so the default scheme's forbid is returned.
// Otherwise nil, nil: the downstream handler may run.
//
// The error return is a *auth.SchemeError configuration defect, never an
// authorization denial.
func (p *Policy) Authorize(ctx context.Context) (*auth.Response, error) {
	prin := auth.PrincipalFromContext(ctx)
	if prin == nil {
		resp, err := p.service.Challenge(ctx, "")
		if err != nil {
			return nil, err
		}
		observability.ChallengesTotal.WithLabelValues(p.service.DefaultScheme()).Inc()
		return &resp, nil
	}

	if !p.requirement.Authorize(ctx, prin) {
		resp, err := p.service.Forbid(ctx, "")
		if err != nil {
			return nil, err
		}
		observability.ForbidsTotal.WithLabelValues(p.service.DefaultScheme()).Inc()
		return &resp, nil
	}

	return nil, nil
}

// PolicyBuilder assembles a requirement tree and binds it to a service.
type PolicyBuilder struct {
	reqs []Requirement
}

// NewPolicyBuilder creates a builder with no requirements; built as-is it
// yields a policy that only demands successful authentication.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{}
}

// Require adds a requirement.
func (b *PolicyBuilder) Require(r Requirement) *PolicyBuilder {
	b.reqs = append(b.reqs, r)
	return b
}

// RequireRole adds a role-membership requirement.
func (b *PolicyBuilder) RequireRole(role string) *PolicyBuilder {
	return b.Require(RequireRole(role))
}

// RequireClaim adds a claim-value requirement.
func (b *PolicyBuilder) RequireClaim(name, value string) *PolicyBuilder {
	return b.Require(RequireClaim(name, value))
}

// Build binds the composed requirement to the authentication service.
func (b *PolicyBuilder) Build(svc *auth.Service) *Policy {
	return &Policy{service: svc, requirement: And(b.reqs...)}
}
