package auth

import (
	"context"
	"net/http"

	"github.com/avekoy/portier/pkg/principal"
)

// Handler is one scheme's verification logic.
//
// Authenticate must be side-effect-free on failure and return either the
// verified principal, ErrNoCredential when the request carries nothing the
// scheme recognizes, or a *VerificationError when a credential is present
// but invalid. Challenge produces the response sent when no scheme
// authenticated the request (typically 401 plus a scheme-advertising
// header); Forbid the response sent when this scheme refuses outright
// (typically a bare 403).
type Handler interface {
	Authenticate(ctx context.Context, r *http.Request) (*principal.Principal, error)
	Challenge(ctx context.Context) Response
	Forbid(ctx context.Context) Response
}

// SessionHandler is the optional capability for schemes backed by a
// persistent session artifact, such as a cookie. Handlers without the
// capability simply do not implement it; the service reports ErrNotSupported
// instead of defaulting to a silent no-op.
type SessionHandler interface {
	Handler

	// SignIn establishes a session for the principal and returns the
	// response that materializes it (typically a Set-Cookie header).
	SignIn(ctx context.Context, r *http.Request, p *principal.Principal) (Response, error)

	// SignOut tears down the session identified by the request and returns
	// the response that clears the client-side artifact.
	SignOut(ctx context.Context, r *http.Request) (Response, error)
}
