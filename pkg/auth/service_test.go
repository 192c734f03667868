package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestServiceBuilder_Build(t *testing.T) {
	svc, err := NewServiceBuilder().
		AddHandler("one", &stubHandler{marker: "one"}).
		AddHandler("two", &stubHandler{marker: "two"}).
		DefaultScheme("one").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if svc.DefaultScheme() != "one" {
		t.Errorf("DefaultScheme = %q, want %q", svc.DefaultScheme(), "one")
	}
	if got := svc.Schemes(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Schemes = %v, want [one two]", got)
	}
}

func TestServiceBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (*Service, error)
		wantMsg string
	}{
		{
			name: "no handlers",
			build: func() (*Service, error) {
				return NewServiceBuilder().DefaultScheme("one").Build()
			},
			wantMsg: "no authentication handlers",
		},
		{
			name: "no default scheme",
			build: func() (*Service, error) {
				return NewServiceBuilder().AddHandler("one", &stubHandler{}).Build()
			},
			wantMsg: "no default scheme",
		},
		{
			name: "default scheme unregistered",
			build: func() (*Service, error) {
				return NewServiceBuilder().
					AddHandler("one", &stubHandler{}).
					DefaultScheme("missing").
					Build()
			},
			wantMsg: `default scheme "missing"`,
		},
		{
			name: "duplicate scheme name",
			build: func() (*Service, error) {
				return NewServiceBuilder().
					AddHandler("one", &stubHandler{}).
					AddHandler("one", &stubHandler{}).
					DefaultScheme("one").
					Build()
			},
			wantMsg: `scheme "one" registered twice`,
		},
		{
			name: "empty scheme name",
			build: func() (*Service, error) {
				return NewServiceBuilder().
					AddHandler("", &stubHandler{}).
					DefaultScheme("one").
					Build()
			},
			wantMsg: "empty scheme name",
		},
		{
			name: "nil handler",
			build: func() (*Service, error) {
				return NewServiceBuilder().
					AddHandler("one", nil).
					DefaultScheme("one").
					Build()
			},
			wantMsg: "nil handler",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build()
			if err == nil {
				t.Fatal("Build succeeded, want error")
			}
			if svc != nil {
				t.Error("Build returned a service alongside an error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestServiceBuilder_CollectsAllErrors(t *testing.T) {
	_, err := NewServiceBuilder().
		AddHandler("", &stubHandler{}).
		AddHandler("one", nil).
		Build()
	if err == nil {
		t.Fatal("Build succeeded, want error")
	}
	for _, want := range []string{"empty scheme name", "nil handler", "no default scheme"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestService_AuthenticateAttachesPrincipal(t *testing.T) {
	svc, err := NewServiceBuilder().
		AddHandler("one", &stubHandler{principal: testPrincipal("alice")}).
		DefaultScheme("one").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx := svc.Authenticate(context.Background(), testRequest())

	p := PrincipalFromContext(ctx)
	if p == nil {
		t.Fatal("no principal in context")
	}
	if p.Subject() != "alice" {
		t.Errorf("Subject = %q, want %q", p.Subject(), "alice")
	}
	if FailureFromContext(ctx) != nil {
		t.Error("failure attached alongside principal")
	}
}

func TestService_AuthenticateAttachesFailure(t *testing.T) {
	cause := errors.New("bad token")
	svc, err := NewServiceBuilder().
		AddHandler("one", &stubHandler{err: VerificationFailed(cause)}).
		DefaultScheme("one").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx := svc.Authenticate(context.Background(), testRequest())

	if PrincipalFromContext(ctx) != nil {
		t.Error("principal attached after failed authentication")
	}
	if !errors.Is(FailureFromContext(ctx), cause) {
		t.Errorf("failure = %v, want wrapped %v", FailureFromContext(ctx), cause)
	}
}

func TestService_ChallengeDefaultScheme(t *testing.T) {
	svc, err := NewServiceBuilder().
		AddHandler("one", &stubHandler{marker: "one"}).
		AddHandler("two", &stubHandler{marker: "two"}).
		DefaultScheme("two").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Empty name resolves to the default.
	resp, err := svc.Challenge(context.Background(), "")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "two" {
		t.Errorf("default challenge from %q, want %q", got, "two")
	}

	// Explicit name wins over the default.
	resp, err = svc.Challenge(context.Background(), "one")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "one" {
		t.Errorf("named challenge from %q, want %q", got, "one")
	}
}

func TestService_ChallengeUnknownScheme(t *testing.T) {
	svc, err := NewServiceBuilder().
		AddHandler("one", &stubHandler{}).
		DefaultScheme("one").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, err = svc.Challenge(context.Background(), "ghost")

	var serr *SchemeError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SchemeError", err)
	}
	if serr.Scheme != "ghost" || serr.Op != "challenge" {
		t.Errorf("SchemeError = %+v, want scheme ghost, op challenge", serr)
	}
	if !errors.Is(err, ErrSchemeNotConfigured) {
		t.Error("error does not wrap ErrSchemeNotConfigured")
	}
}

func TestService_ForbidUnknownScheme(t *testing.T) {
	svc, err := NewServiceBuilder().
		AddHandler("one", &stubHandler{}).
		DefaultScheme("one").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := svc.Forbid(context.Background(), "ghost"); !errors.Is(err, ErrSchemeNotConfigured) {
		t.Errorf("err = %v, want ErrSchemeNotConfigured", err)
	}
	if resp, err := svc.Forbid(context.Background(), ""); err != nil {
		t.Errorf("Forbid(default): %v", err)
	} else if resp.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", resp.Status)
	}
}

func TestService_SignInSession(t *testing.T) {
	session := &stubSessionHandler{}
	svc, err := NewServiceBuilder().
		AddHandler("stateless", &stubHandler{}).
		AddHandler("session", session).
		DefaultScheme("stateless").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	resp, err := svc.SignIn(context.Background(), testRequest(), "session", testPrincipal("alice"))
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if resp.Header.Get("Set-Cookie") == "" {
		t.Error("SignIn response carries no Set-Cookie")
	}
	if session.signIns != 1 {
		t.Errorf("signIns = %d, want 1", session.signIns)
	}

	if _, err := svc.SignOut(context.Background(), testRequest(), "session"); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if session.signOuts != 1 {
		t.Errorf("signOuts = %d, want 1", session.signOuts)
	}
}

func TestService_SignInErrorKinds(t *testing.T) {
	// "scheme unknown" and "scheme lacks the capability" must stay distinct.
	svc, err := NewServiceBuilder().
		AddHandler("stateless", &stubHandler{}).
		DefaultScheme("stateless").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, err = svc.SignIn(context.Background(), testRequest(), "ghost", testPrincipal("alice"))
	if !errors.Is(err, ErrSchemeNotConfigured) {
		t.Errorf("unknown scheme: err = %v, want ErrSchemeNotConfigured", err)
	}

	_, err = svc.SignIn(context.Background(), testRequest(), "stateless", testPrincipal("alice"))
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("stateless scheme: err = %v, want ErrNotSupported", err)
	}
	if errors.Is(err, ErrSchemeNotConfigured) {
		t.Error("capability error conflated with missing scheme")
	}

	_, err = svc.SignOut(context.Background(), testRequest(), "stateless")
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("sign-out on stateless scheme: err = %v, want ErrNotSupported", err)
	}
}
