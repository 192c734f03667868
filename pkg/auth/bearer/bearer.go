// Package bearer provides the JWT bearer-token authentication scheme. It
// validates RSA-signed tokens against a JWKS endpoint or a statically
// configured public key and maps the verified claim set onto a typed
// principal.
package bearer

import (
	"context"
	"crypto/rsa"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/debug"
	"github.com/avekoy/portier/pkg/principal"
)

// Config holds the bearer handler configuration.
type Config struct {
	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// JWKSURL is the URL to fetch the JSON Web Key Set for signature verification.
	// Mutually exclusive with PublicKey.
	JWKSURL string

	// PublicKey pins a single RSA public key instead of a JWKS endpoint.
	PublicKey *rsa.PublicKey

	// Realm is advertised in the WWW-Authenticate challenge header. Default: "portier".
	Realm string

	// SubjectClaim is the JWT claim required as the identity subject. Default: "sub".
	SubjectClaim string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Realm == "" {
		c.Realm = "portier"
	}
	if c.SubjectClaim == "" {
		c.SubjectClaim = principal.SubjectClaim
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 1 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Handler is the bearer-token scheme handler.
type Handler struct {
	config Config
	keys   *keyCache
}

// Compile-time capability check: bearer is a stateless scheme, it must not
// accidentally grow session support.
var _ auth.Handler = (*Handler)(nil)

// New creates a bearer handler with the given configuration.
func New(cfg Config) *Handler {
	cfg.applyDefaults()
	h := &Handler{config: cfg}
	if cfg.PublicKey == nil {
		h.keys = &keyCache{
			keys:    make(map[string]*rsa.PublicKey),
			ttl:     cfg.CacheTTL,
			jwksURL: cfg.JWKSURL,
			client:  cfg.HTTPClient,
		}
	}
	return h
}

// Authenticate extracts a bearer token from the Authorization header and
// validates it.
//
// Outcomes:
//   - auth.ErrNoCredential: no Authorization header or not a Bearer scheme
//   - *auth.VerificationError: token present but invalid (expired, wrong
//     issuer, bad signature, unknown key)
//   - principal on success, with all representable claims mapped
func (h *Handler) Authenticate(ctx context.Context, r *http.Request) (*principal.Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, auth.ErrNoCredential
	}

	// Must be a Bearer token.
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, auth.ErrNoCredential
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return nil, auth.VerificationFailed(fmt.Errorf("empty bearer token"))
	}
	debug.Trace("schemes", "bearer token received", "token", debug.Truncate(tokenStr, 16))

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		// Ensure the signing method is RSA.
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		if h.config.PublicKey != nil {
			return h.config.PublicKey, nil
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		key, fetchErr := h.keys.getKey(ctx, kid)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, fetchErr)
		}

		return key, nil
	}, h.parserOptions()...)
	if err != nil {
		return nil, auth.VerificationFailed(fmt.Errorf("invalid JWT: %w", err))
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, auth.VerificationFailed(fmt.Errorf("invalid JWT claims"))
	}

	p := principalFromClaims(claims)
	if p.StringClaim(h.config.SubjectClaim) == "" {
		return nil, auth.VerificationFailed(fmt.Errorf("JWT missing %q claim", h.config.SubjectClaim))
	}

	return p, nil
}

// Challenge advertises the bearer scheme per RFC 6750.
func (h *Handler) Challenge(_ context.Context) auth.Response {
	resp := auth.NewResponse(http.StatusUnauthorized)
	resp.Header.Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", h.config.Realm))
	return resp
}

// Forbid refuses without identifying the scheme.
func (h *Handler) Forbid(_ context.Context) auth.Response {
	return auth.NewResponse(http.StatusForbidden)
}

// parserOptions builds JWT parser options based on the configuration.
func (h *Handler) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}

	if h.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(h.config.Issuer))
	}

	if h.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(h.config.Audience))
	}

	return opts
}

// principalFromClaims maps a verified claim set onto typed principal claims.
// Scalars map directly; homogeneous scalar arrays become array claims;
// claims with no representable value (nested objects, empty arrays) are
// dropped.
func principalFromClaims(claims jwtlib.MapClaims) *principal.Principal {
	p := principal.New()
	for name, raw := range claims {
		if v, ok := claimValue(raw); ok {
			p.Set(name, v)
		}
	}
	return p
}

// claimValue converts a decoded JSON claim into a principal value.
func claimValue(raw interface{}) (principal.Value, bool) {
	switch val := raw.(type) {
	case string:
		return principal.String(val), true
	case bool:
		return principal.Bool(val), true
	case float64:
		// JSON numbers decode as float64; keep integral values (exp, iat,
		// custom counters) as int64 claims.
		if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
			return principal.Int64(int64(val)), true
		}
		return principal.Float64(val), true
	case []interface{}:
		elems := make([]principal.Value, 0, len(val))
		for _, item := range val {
			if e, ok := claimValue(item); ok && e.Kind() != principal.KindArray {
				elems = append(elems, e)
			}
		}
		arr, err := principal.Array(elems...)
		if err != nil {
			return principal.Value{}, false
		}
		return arr, true
	}
	return principal.Value{}, false
}
