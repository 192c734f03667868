package auth

import (
	"context"

	"github.com/avekoy/portier/pkg/principal"
)

// principalKey is a private type for the principal context key.
type principalKey struct{}

// failureKey is a private type for the authentication-failure context key.
type failureKey struct{}

// WithPrincipal stores a successfully authenticated principal in the context.
func WithPrincipal(ctx context.Context, p *principal.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal. Returns nil
// when authentication never ran or did not succeed.
func PrincipalFromContext(ctx context.Context) *principal.Principal {
	if p, ok := ctx.Value(principalKey{}).(*principal.Principal); ok {
		return p
	}
	return nil
}

// WithFailure records the authentication failure for diagnostics. Absence of
// a principal, not the presence of a failure, is what authorization keys on.
func WithFailure(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, failureKey{}, err)
}

// FailureFromContext retrieves the recorded authentication failure, or nil.
func FailureFromContext(ctx context.Context) error {
	if err, ok := ctx.Value(failureKey{}).(error); ok {
		return err
	}
	return nil
}
