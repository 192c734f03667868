package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/avekoy/portier/pkg/principal"
)

// stubHandler is a test handler with configurable behavior and call counting.
type stubHandler struct {
	principal *principal.Principal
	err       error
	calls     int
	marker    string // distinguishes responses in named-lookup tests
}

func (s *stubHandler) Authenticate(_ context.Context, _ *http.Request) (*principal.Principal, error) {
	s.calls++
	return s.principal, s.err
}

func (s *stubHandler) Challenge(_ context.Context) Response {
	resp := NewResponse(http.StatusUnauthorized)
	resp.Header.Set("WWW-Authenticate", s.marker)
	return resp
}

func (s *stubHandler) Forbid(_ context.Context) Response {
	resp := NewResponse(http.StatusForbidden)
	resp.Header.Set("X-Marker", s.marker)
	return resp
}

// stubSessionHandler adds the session capability to stubHandler.
type stubSessionHandler struct {
	stubHandler
	signIns  int
	signOuts int
}

func (s *stubSessionHandler) SignIn(_ context.Context, _ *http.Request, _ *principal.Principal) (Response, error) {
	s.signIns++
	resp := NewResponse(http.StatusOK)
	resp.Header.Add("Set-Cookie", "session=stub")
	return resp, nil
}

func (s *stubSessionHandler) SignOut(_ context.Context, _ *http.Request) (Response, error) {
	s.signOuts++
	return NewResponse(http.StatusOK), nil
}

func testPrincipal(subject string) *principal.Principal {
	p := principal.New()
	p.Set(principal.SubjectClaim, principal.String(subject))
	return p
}

func testRequest() *http.Request {
	r, _ := http.NewRequest("GET", "/", nil)
	return r
}

func TestCompound_FirstSuccessStops(t *testing.T) {
	first := &stubHandler{principal: testPrincipal("alice")}
	second := &stubHandler{principal: testPrincipal("bob")}

	c := NewCompound().Add("one", first).Add("two", second)

	p, err := c.Authenticate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Subject() != "alice" {
		t.Errorf("Subject = %q, want %q", p.Subject(), "alice")
	}
	if second.calls != 0 {
		t.Errorf("second handler called %d times after first success, want 0", second.calls)
	}
}

func TestCompound_FallsThroughOnAnyError(t *testing.T) {
	// Fallthrough is unconditional on error: a malformed credential under
	// one scheme must not block the next scheme.
	tests := []struct {
		name     string
		firstErr error
	}{
		{"no credential", ErrNoCredential},
		{"verification failure", VerificationFailed(errors.New("bad signature"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := &stubHandler{err: tt.firstErr}
			second := &stubHandler{principal: testPrincipal("bob")}

			c := NewCompound().Add("one", first).Add("two", second)

			p, err := c.Authenticate(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if p.Subject() != "bob" {
				t.Errorf("Subject = %q, want %q", p.Subject(), "bob")
			}
			if first.calls != 1 || second.calls != 1 {
				t.Errorf("calls = %d, %d, want 1, 1", first.calls, second.calls)
			}
		})
	}
}

func TestCompound_LastFailureVerbatim(t *testing.T) {
	// When every handler fails, the result is the last handler's, failure
	// kind included.
	cause := errors.New("expired")
	first := &stubHandler{err: ErrNoCredential}
	second := &stubHandler{err: VerificationFailed(cause)}

	c := NewCompound().Add("one", first).Add("two", second)

	_, err := c.Authenticate(context.Background(), testRequest())

	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *VerificationError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved through fallthrough")
	}
	if errors.Is(err, ErrNoCredential) {
		t.Error("earlier handler's failure kind leaked")
	}
}

func TestCompound_Empty(t *testing.T) {
	c := NewCompound()
	_, err := c.Authenticate(context.Background(), testRequest())
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestCompound_RegistrationOrder(t *testing.T) {
	// Handlers run in registration order, regardless of how many there are.
	var order []string
	mk := func(name string) Handler {
		return &orderHandler{name: name, order: &order}
	}

	c := NewCompound()
	for i := 0; i < 5; i++ {
		c.Add(fmt.Sprintf("scheme-%d", i), mk(fmt.Sprintf("scheme-%d", i)))
	}

	c.Authenticate(context.Background(), testRequest())

	for i, name := range order {
		if want := fmt.Sprintf("scheme-%d", i); name != want {
			t.Errorf("order[%d] = %q, want %q", i, name, want)
		}
	}
	if len(order) != 5 {
		t.Errorf("ran %d handlers, want 5", len(order))
	}
}

type orderHandler struct {
	name  string
	order *[]string
}

func (o *orderHandler) Authenticate(_ context.Context, _ *http.Request) (*principal.Principal, error) {
	*o.order = append(*o.order, o.name)
	return nil, ErrNoCredential
}

func (o *orderHandler) Challenge(_ context.Context) Response { return NewResponse(http.StatusUnauthorized) }
func (o *orderHandler) Forbid(_ context.Context) Response    { return NewResponse(http.StatusForbidden) }

func TestCompound_NamedLookup(t *testing.T) {
	one := &stubHandler{marker: "one"}
	two := &stubHandler{marker: "two"}

	c := NewCompound().Add("one", one).Add("two", two)

	resp, ok := c.Challenge(context.Background(), "two")
	if !ok {
		t.Fatal("Challenge(two) not found")
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "two" {
		t.Errorf("challenge from %q, want %q", got, "two")
	}

	resp, ok = c.Forbid(context.Background(), "one")
	if !ok {
		t.Fatal("Forbid(one) not found")
	}
	if got := resp.Header.Get("X-Marker"); got != "one" {
		t.Errorf("forbid from %q, want %q", got, "one")
	}

	if _, ok := c.Challenge(context.Background(), "three"); ok {
		t.Error("Challenge(three) found, want not found")
	}
	if _, ok := c.Forbid(context.Background(), "three"); ok {
		t.Error("Forbid(three) found, want not found")
	}
}

func TestCompound_AuthenticateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &stubHandler{principal: testPrincipal("alice")}
	c := NewCompound().Add("one", h)

	_, err := c.Authenticate(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if h.calls != 0 {
		t.Errorf("handler ran %d times under a cancelled context, want 0", h.calls)
	}
}
