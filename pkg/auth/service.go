package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/avekoy/portier/pkg/debug"
	"github.com/avekoy/portier/pkg/principal"
)

// Service owns a compound handler and a default scheme name. It is built
// once at startup through ServiceBuilder, immutable afterwards, and safe to
// share across concurrent requests. Multiple authorization policies may hold
// the same service.
type Service struct {
	handler       *Compound
	defaultScheme string
}

// Authenticate runs the compound handler and returns a context with the
// outcome attached: the principal on success, the failure kind otherwise.
// Failure is a normal outcome; downstream authorization reacts to the
// missing principal by issuing a challenge.
func (s *Service) Authenticate(ctx context.Context, r *http.Request) context.Context {
	p, err := s.handler.Authenticate(ctx, r)
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			debug.Log("schemes", "authentication failed", "path", r.URL.Path, "error", err)
		}
		return WithFailure(ctx, err)
	}

	debug.Log("schemes", "authentication succeeded", "subject", p.Subject(), "path", r.URL.Path)
	return WithPrincipal(ctx, p)
}

// DefaultScheme returns the configured default scheme name.
func (s *Service) DefaultScheme() string { return s.defaultScheme }

// Schemes returns the registered scheme names in registration order.
func (s *Service) Schemes() []string { return s.handler.Schemes() }

// resolve substitutes the default scheme for an empty name.
func (s *Service) resolve(scheme string) string {
	if scheme == "" {
		return s.defaultScheme
	}
	return scheme
}

// Challenge returns the named scheme's challenge response, using the default
// scheme when name is empty. An unknown scheme is a configuration defect:
// logged at error level and returned as a *SchemeError.
func (s *Service) Challenge(ctx context.Context, scheme string) (Response, error) {
	scheme = s.resolve(scheme)
	resp, ok := s.handler.Challenge(ctx, scheme)
	if !ok {
		return Response{}, s.configError(scheme, "challenge", ErrSchemeNotConfigured)
	}
	return resp, nil
}

// Forbid returns the named scheme's forbid response, using the default
// scheme when name is empty.
func (s *Service) Forbid(ctx context.Context, scheme string) (Response, error) {
	scheme = s.resolve(scheme)
	resp, ok := s.handler.Forbid(ctx, scheme)
	if !ok {
		return Response{}, s.configError(scheme, "forbid", ErrSchemeNotConfigured)
	}
	return resp, nil
}

// SignIn establishes a session under the named scheme for the principal.
// The scheme must exist and implement SessionHandler; "scheme unknown" and
// "scheme lacks the capability" are distinct errors.
func (s *Service) SignIn(ctx context.Context, r *http.Request, scheme string, p *principal.Principal) (Response, error) {
	scheme = s.resolve(scheme)
	sh, err := s.session(ctx, scheme, "sign-in")
	if err != nil {
		return Response{}, err
	}
	return sh.SignIn(ctx, r, p)
}

// SignOut tears down the session under the named scheme.
func (s *Service) SignOut(ctx context.Context, r *http.Request, scheme string) (Response, error) {
	scheme = s.resolve(scheme)
	sh, err := s.session(ctx, scheme, "sign-out")
	if err != nil {
		return Response{}, err
	}
	return sh.SignOut(ctx, r)
}

func (s *Service) session(ctx context.Context, scheme, op string) (SessionHandler, error) {
	h, ok := s.handler.Handler(ctx, scheme)
	if !ok {
		return nil, s.configError(scheme, op, ErrSchemeNotConfigured)
	}
	sh, ok := h.(SessionHandler)
	if !ok {
		return nil, s.configError(scheme, op, ErrNotSupported)
	}
	return sh, nil
}

func (s *Service) configError(scheme, op string, cause error) error {
	err := &SchemeError{Scheme: scheme, Op: op, Err: cause}
	slog.Error("authentication scheme misconfigured", "scheme", scheme, "op", op, "error", cause)
	return err
}

// ServiceBuilder assembles a Service. Handlers are registered with unique
// scheme names; evaluation order is registration order. Build fails on
// duplicate names, an empty handler set, or a missing or unregistered
// default scheme.
type ServiceBuilder struct {
	compound *Compound
	seen     map[string]bool
	deflt    string
	errs     []error
}

// NewServiceBuilder creates an empty builder.
func NewServiceBuilder() *ServiceBuilder {
	return &ServiceBuilder{
		compound: NewCompound(),
		seen:     make(map[string]bool),
	}
}

// AddHandler registers a handler under the scheme name. Problems are
// collected and surfaced by Build.
func (b *ServiceBuilder) AddHandler(scheme string, h Handler) *ServiceBuilder {
	switch {
	case scheme == "":
		b.errs = append(b.errs, fmt.Errorf("empty scheme name"))
	case h == nil:
		b.errs = append(b.errs, fmt.Errorf("scheme %q: nil handler", scheme))
	case b.seen[scheme]:
		b.errs = append(b.errs, fmt.Errorf("scheme %q registered twice", scheme))
	default:
		b.seen[scheme] = true
		b.compound.Add(scheme, h)
	}
	return b
}

// DefaultScheme sets the scheme used when challenge, forbid, sign-in, or
// sign-out is invoked without an explicit scheme name.
func (b *ServiceBuilder) DefaultScheme(scheme string) *ServiceBuilder {
	b.deflt = scheme
	return b
}

// Build validates the configuration and returns the immutable Service.
func (b *ServiceBuilder) Build() (*Service, error) {
	errs := b.errs
	if len(b.seen) == 0 {
		errs = append(errs, fmt.Errorf("no authentication handlers registered"))
	}
	if b.deflt == "" {
		errs = append(errs, fmt.Errorf("no default scheme configured"))
	} else if len(b.seen) > 0 && !b.seen[b.deflt] {
		errs = append(errs, fmt.Errorf("default scheme %q has no registered handler", b.deflt))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("building authentication service: %w", errors.Join(errs...))
	}

	return &Service{handler: b.compound, defaultScheme: b.deflt}, nil
}
