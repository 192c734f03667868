// Package authz provides the authorization side of the pipeline: a
// composable requirement algebra over principals and the policy that binds a
// requirement tree to an authentication service.
package authz

import (
	"context"

	"github.com/avekoy/portier/pkg/principal"
)

// Requirement is a boolean predicate over a principal. Requirements must be
// independent and side-effect-free; composition imposes no evaluation order.
type Requirement interface {
	Authorize(ctx context.Context, p *principal.Principal) bool
}

// always is the neutral identity requirement.
type always struct{}

func (always) Authorize(context.Context, *principal.Principal) bool { return true }

// Always returns the requirement that admits every principal. It is the
// identity element of And.
func Always() Requirement { return always{} }

// conjunction evaluates every child, even after one has returned false.
// Requirements are checks, not fail-fast validations, so all of them run.
type conjunction struct {
	children []Requirement
}

func (c conjunction) Authorize(ctx context.Context, p *principal.Principal) bool {
	ok := true
	for _, r := range c.children {
		if !r.Authorize(ctx, p) {
			ok = false
		}
	}
	return ok
}

// And composes requirements conjunctively. Composition is associative and
// And() with no arguments is Always.
func And(reqs ...Requirement) Requirement {
	if len(reqs) == 0 {
		return Always()
	}
	if len(reqs) == 1 {
		return reqs[0]
	}
	children := make([]Requirement, len(reqs))
	copy(children, reqs)
	return conjunction{children: children}
}

// roleRequirement admits principals whose "role" claim equals or contains
// the target role.
type roleRequirement struct {
	role string
}

func (r roleRequirement) Authorize(_ context.Context, p *principal.Principal) bool {
	return p.IsInRole(r.role)
}

// RequireRole returns a requirement for membership in role. Matching is
// exact and case-sensitive against the "role" claim, scalar or array.
func RequireRole(role string) Requirement {
	return roleRequirement{role: role}
}

// claimRequirement admits principals whose named claim equals or contains
// the target string value.
type claimRequirement struct {
	name  string
	value string
}

func (r claimRequirement) Authorize(_ context.Context, p *principal.Principal) bool {
	v, ok := p.Get(r.name)
	return ok && v.Contains(r.value)
}

// RequireClaim returns a requirement that the named claim equals or contains
// value.
func RequireClaim(name, value string) Requirement {
	return claimRequirement{name: name, value: value}
}
