// Package cookie provides the session-cookie authentication scheme, the one
// scheme in the engine with sign-in/sign-out capability. Sign-in stores the
// principal server-side and hands the client an HMAC-signed session id;
// authenticate verifies the signature in constant time and loads the
// principal back.
package cookie

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/debug"
	"github.com/avekoy/portier/pkg/principal"
)

// DefaultName is the session cookie name.
const DefaultName = "portier_session"

// Config holds the cookie handler configuration.
type Config struct {
	// Name is the cookie name. Default: "portier_session".
	Name string

	// Secret keys the HMAC over session ids. Required.
	Secret []byte

	// TTL bounds both the cookie and the server-side session. Default: 24h.
	TTL time.Duration

	// Path scopes the cookie. Default: "/".
	Path string

	// Secure marks the cookie HTTPS-only.
	Secure bool
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Path == "" {
		c.Path = "/"
	}
}

// Handler is the session-cookie scheme handler.
type Handler struct {
	config Config
	store  Store
}

// The cookie scheme is the session-capable one; both interface checks are
// load-bearing.
var (
	_ auth.Handler        = (*Handler)(nil)
	_ auth.SessionHandler = (*Handler)(nil)
)

// New creates a cookie handler. The secret is required; sessions live in
// store (NewMemoryStore for single-process deployments).
func New(cfg Config, store Store) (*Handler, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("cookie: secret is required")
	}
	cfg.applyDefaults()
	return &Handler{config: cfg, store: store}, nil
}

// Authenticate verifies the session cookie and loads the stored principal.
// A missing cookie is auth.ErrNoCredential; a tampered signature or an
// unknown/expired session is a verification failure.
func (h *Handler) Authenticate(ctx context.Context, r *http.Request) (*principal.Principal, error) {
	c, err := r.Cookie(h.config.Name)
	if err != nil {
		return nil, auth.ErrNoCredential
	}

	id, err := h.verify(c.Value)
	if err != nil {
		return nil, auth.VerificationFailed(err)
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, auth.VerificationFailed(fmt.Errorf("session expired or unknown"))
		}
		return nil, auth.VerificationFailed(fmt.Errorf("session lookup: %w", err))
	}

	return p, nil
}

// Challenge points the caller at the cookie scheme.
func (h *Handler) Challenge(_ context.Context) auth.Response {
	resp := auth.NewResponse(http.StatusUnauthorized)
	resp.Header.Set("WWW-Authenticate", fmt.Sprintf("Cookie cookie-name=%q", h.config.Name))
	return resp
}

// Forbid refuses without identifying the scheme.
func (h *Handler) Forbid(_ context.Context) auth.Response {
	return auth.NewResponse(http.StatusForbidden)
}

// SignIn creates a session for the principal and returns the Set-Cookie
// response that materializes it. The session is stored before the response
// descriptor is produced, so a cancelled sign-in never hands out a cookie
// for a session that was not written.
func (h *Handler) SignIn(ctx context.Context, _ *http.Request, p *principal.Principal) (auth.Response, error) {
	if p == nil {
		return auth.Response{}, errors.New("cookie: sign-in requires a principal")
	}

	id, err := newSessionID()
	if err != nil {
		return auth.Response{}, fmt.Errorf("generating session id: %w", err)
	}

	expiresAt := time.Now().Add(h.config.TTL)
	if err := h.store.Put(ctx, id, p, expiresAt); err != nil {
		return auth.Response{}, fmt.Errorf("storing session: %w", err)
	}
	debug.Log("sessions", "session created", "subject", p.Subject(), "expires_at", expiresAt)

	resp := auth.NewResponse(http.StatusOK)
	resp.Header.Add("Set-Cookie", h.cookie(h.sign(id), int(h.config.TTL.Seconds())).String())
	return resp, nil
}

// SignOut deletes the session named by the request's cookie, if any, and
// returns a response that expires the client-side cookie either way.
func (h *Handler) SignOut(ctx context.Context, r *http.Request) (auth.Response, error) {
	if c, err := r.Cookie(h.config.Name); err == nil {
		if id, verr := h.verify(c.Value); verr == nil {
			if err := h.store.Delete(ctx, id); err != nil {
				return auth.Response{}, fmt.Errorf("deleting session: %w", err)
			}
			debug.Log("sessions", "session deleted")
		}
	}

	resp := auth.NewResponse(http.StatusOK)
	resp.Header.Add("Set-Cookie", h.cookie("", -1).String())
	return resp, nil
}

// cookie builds the session cookie with the handler's scoping settings.
func (h *Handler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.config.Name,
		Value:    value,
		Path:     h.config.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// sign produces the cookie value: the session id plus its MAC.
func (h *Handler) sign(id string) string {
	return id + "." + h.mac(id)
}

// verify checks the cookie value's MAC in constant time and returns the
// session id.
func (h *Handler) verify(value string) (string, error) {
	id, mac, ok := strings.Cut(value, ".")
	if !ok || id == "" || mac == "" {
		return "", errors.New("malformed session cookie")
	}
	if !hmac.Equal([]byte(mac), []byte(h.mac(id))) {
		return "", errors.New("session cookie signature mismatch")
	}
	return id, nil
}

func (h *Handler) mac(id string) string {
	m := hmac.New(sha256.New, h.config.Secret)
	m.Write([]byte(id))
	return hex.EncodeToString(m.Sum(nil))
}

// newSessionID returns 32 bytes of hex-encoded randomness.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
