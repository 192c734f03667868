package auth

import (
	"context"
	"net/http"

	"github.com/avekoy/portier/pkg/principal"
	"github.com/avekoy/portier/pkg/seq"
)

// schemeHandler tags a handler with its scheme name.
type schemeHandler struct {
	scheme  string
	handler Handler
}

// Compound dispatches across the registered scheme handlers. Authentication
// walks them in registration order and stops at the first success, so a
// later handler never observes a request an earlier one already claimed.
// Named lookups probe in the same order and take the first scheme-name
// match.
//
// A Compound performs no name validation; ServiceBuilder rejects duplicate
// scheme names before one is constructed.
type Compound struct {
	handlers []schemeHandler
}

// NewCompound creates an empty compound dispatcher.
func NewCompound() *Compound {
	return &Compound{}
}

// Add appends a scheme handler. Registration order is the evaluation order.
func (c *Compound) Add(scheme string, h Handler) *Compound {
	c.handlers = append(c.handlers, schemeHandler{scheme: scheme, handler: h})
	return c
}

// Schemes returns the registered scheme names in registration order.
func (c *Compound) Schemes() []string {
	names := make([]string, len(c.handlers))
	for i, sh := range c.handlers {
		names[i] = sh.scheme
	}
	return names
}

// Authenticate tries each handler in order. The first success wins and ends
// the walk; any error, whether ErrNoCredential or a verification failure,
// falls through to the next handler. When every handler fails, the last
// handler's error is returned verbatim. An empty compound reports
// ErrNoCredential.
func (c *Compound) Authenticate(ctx context.Context, r *http.Request) (*principal.Principal, error) {
	if len(c.handlers) == 0 {
		return nil, ErrNoCredential
	}

	attempts := make([]func(context.Context) (*principal.Principal, error), len(c.handlers))
	for i, sh := range c.handlers {
		h := sh.handler
		attempts[i] = func(ctx context.Context) (*principal.Principal, error) {
			return h.Authenticate(ctx, r)
		}
	}

	return seq.FirstOK(ctx, attempts...)
}

// Handler returns the handler registered under scheme. When two handlers
// share a name the earlier registration wins, matching the dispatch order.
func (c *Compound) Handler(ctx context.Context, scheme string) (Handler, bool) {
	probes := make([]func(context.Context) (Handler, bool), len(c.handlers))
	for i, sh := range c.handlers {
		sh := sh
		probes[i] = func(context.Context) (Handler, bool) {
			if sh.scheme == scheme {
				return sh.handler, true
			}
			return nil, false
		}
	}

	return seq.FirstSome(ctx, probes...)
}

// Challenge returns the named scheme's challenge response, reporting absence
// when no handler owns the name.
func (c *Compound) Challenge(ctx context.Context, scheme string) (Response, bool) {
	h, ok := c.Handler(ctx, scheme)
	if !ok {
		return Response{}, false
	}
	return h.Challenge(ctx), true
}

// Forbid returns the named scheme's forbid response, reporting absence when
// no handler owns the name.
func (c *Compound) Forbid(ctx context.Context, scheme string) (Response, bool) {
	h, ok := c.Handler(ctx, scheme)
	if !ok {
		return Response{}, false
	}
	return h.Forbid(ctx), true
}
