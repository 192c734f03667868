// Package apikey provides the API key authentication scheme. Keys are
// SHA-256 hashed on arrival and resolved through a KeyStore; plaintext keys
// are never retained.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/principal"
)

// DefaultHeader is the request header carrying the API key.
const DefaultHeader = "X-Api-Key"

// ErrKeyNotFound is returned by a KeyStore when no entry matches the hash.
var ErrKeyNotFound = errors.New("api key not found")

// Identity describes the caller bound to an API key.
type Identity struct {
	Subject string
	Roles   []string
	Tier    string
}

// principal builds the typed principal for the identity.
func (id Identity) principal() *principal.Principal {
	p := principal.New()
	p.Set(principal.SubjectClaim, principal.String(id.Subject))
	if len(id.Roles) > 0 {
		if roles, err := principal.Strings(id.Roles...); err == nil {
			p.Set(principal.RoleClaim, roles)
		}
	}
	if id.Tier != "" {
		p.Set(principal.TierClaim, principal.String(id.Tier))
	}
	return p
}

// KeyStore resolves a key hash to the identity it authenticates.
type KeyStore interface {
	Lookup(ctx context.Context, keyHash [sha256.Size]byte) (Identity, error)
}

// Config holds the API key handler configuration.
type Config struct {
	// Header is the request header carrying the key. Default: "X-Api-Key".
	Header string

	// Realm is advertised in the WWW-Authenticate challenge header. Default: "portier".
	Realm string
}

func (c *Config) applyDefaults() {
	if c.Header == "" {
		c.Header = DefaultHeader
	}
	if c.Realm == "" {
		c.Realm = "portier"
	}
}

// Handler is the API key scheme handler.
type Handler struct {
	config Config
	store  KeyStore
}

var _ auth.Handler = (*Handler)(nil)

// New creates an API key handler backed by the given store.
func New(cfg Config, store KeyStore) *Handler {
	cfg.applyDefaults()
	return &Handler{config: cfg, store: store}
}

// Authenticate hashes the presented key and resolves it through the store.
// A missing header is auth.ErrNoCredential; an unknown key is a
// verification failure.
func (h *Handler) Authenticate(ctx context.Context, r *http.Request) (*principal.Principal, error) {
	key := r.Header.Get(h.config.Header)
	if key == "" {
		return nil, auth.ErrNoCredential
	}

	id, err := h.store.Lookup(ctx, sha256.Sum256([]byte(key)))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, auth.VerificationFailed(fmt.Errorf("unknown api key"))
		}
		return nil, auth.VerificationFailed(fmt.Errorf("api key lookup: %w", err))
	}

	return id.principal(), nil
}

// Challenge advertises the scheme and its header.
func (h *Handler) Challenge(_ context.Context) auth.Response {
	resp := auth.NewResponse(http.StatusUnauthorized)
	resp.Header.Set("WWW-Authenticate", fmt.Sprintf("ApiKey realm=%q, header=%q", h.config.Realm, h.config.Header))
	return resp
}

// Forbid refuses without identifying the scheme.
func (h *Handler) Forbid(_ context.Context) auth.Response {
	return auth.NewResponse(http.StatusForbidden)
}

// RawKey is the configuration format for static API keys.
type RawKey struct {
	Key      string
	Identity Identity
}

// entry maps a key hash to an identity.
type entry struct {
	keyHash  [sha256.Size]byte
	identity Identity
}

// StaticStore resolves keys against a fixed in-memory list using
// constant-time comparison. Keys are hashed at construction.
type StaticStore struct {
	entries []entry
}

var _ KeyStore = (*StaticStore)(nil)

// NewStaticStore creates a store from raw key entries.
func NewStaticStore(keys []RawKey) *StaticStore {
	s := &StaticStore{}
	for _, k := range keys {
		s.entries = append(s.entries, entry{
			keyHash:  sha256.Sum256([]byte(k.Key)),
			identity: k.Identity,
		})
	}
	return s
}

// Lookup scans every entry regardless of matches, comparing hashes in
// constant time.
func (s *StaticStore) Lookup(_ context.Context, keyHash [sha256.Size]byte) (Identity, error) {
	var found Identity
	ok := false
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(keyHash[:], e.keyHash[:]) == 1 {
			found = e.identity
			ok = true
		}
	}
	if !ok {
		return Identity{}, ErrKeyNotFound
	}
	return found, nil
}
