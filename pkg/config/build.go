package config

import (
	"context"
	"fmt"

	"github.com/avekoy/portier/pkg/auth"
	"github.com/avekoy/portier/pkg/auth/apikey"
	"github.com/avekoy/portier/pkg/auth/apikey/postgres"
	"github.com/avekoy/portier/pkg/auth/bearer"
	"github.com/avekoy/portier/pkg/auth/cookie"
	"github.com/avekoy/portier/pkg/authz"
)

// BuildService constructs the authentication service described by the auth
// configuration. The returned cleanup function closes any resources the
// schemes opened (database pools); call it on shutdown.
func BuildService(ctx context.Context, cfg AuthConfig) (*auth.Service, func(), error) {
	builder := auth.NewServiceBuilder().DefaultScheme(cfg.DefaultScheme)

	var cleanups []func()
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	for _, sc := range cfg.Schemes {
		h, closer, err := buildHandler(ctx, sc)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("scheme %q: %w", sc.Name, err)
		}
		if closer != nil {
			cleanups = append(cleanups, closer)
		}
		builder.AddHandler(sc.Name, h)
	}

	svc, err := builder.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

// buildHandler constructs one scheme handler from its configuration.
func buildHandler(ctx context.Context, sc SchemeConfig) (auth.Handler, func(), error) {
	switch sc.Type {
	case "bearer":
		return bearer.New(bearer.Config{
			Issuer:       sc.Bearer.Issuer,
			Audience:     sc.Bearer.Audience,
			JWKSURL:      sc.Bearer.JWKSURL,
			Realm:        sc.Bearer.Realm,
			SubjectClaim: sc.Bearer.SubjectClaim,
			CacheTTL:     sc.Bearer.CacheTTL,
		}), nil, nil

	case "apikey":
		store, closer, err := buildKeyStore(ctx, sc.APIKey)
		if err != nil {
			return nil, nil, err
		}
		h := apikey.New(apikey.Config{
			Header: sc.APIKey.Header,
			Realm:  sc.APIKey.Realm,
		}, store)
		return h, closer, nil

	case "cookie":
		h, err := cookie.New(cookie.Config{
			Name:   sc.Cookie.Name,
			Secret: []byte(sc.Cookie.Secret),
			TTL:    sc.Cookie.TTL,
			Secure: sc.Cookie.Secure,
		}, cookie.NewMemoryStore())
		if err != nil {
			return nil, nil, err
		}
		return h, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown scheme type %q", sc.Type)
}

// buildKeyStore constructs the API key store, static or Postgres-backed.
func buildKeyStore(ctx context.Context, cfg APIKeyConfig) (apikey.KeyStore, func(), error) {
	if cfg.Store == "postgres" {
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	keys := make([]apikey.RawKey, len(cfg.Keys))
	for i, k := range cfg.Keys {
		keys[i] = apikey.RawKey{
			Key: k.Key,
			Identity: apikey.Identity{
				Subject: k.Subject,
				Roles:   k.Roles,
				Tier:    k.Tier,
			},
		}
	}
	return apikey.NewStaticStore(keys), nil, nil
}

// BuildPolicies constructs the named authorization policies bound to the
// service.
func BuildPolicies(cfgs []PolicyConfig, svc *auth.Service) map[string]*authz.Policy {
	policies := make(map[string]*authz.Policy, len(cfgs))
	for _, pc := range cfgs {
		b := authz.NewPolicyBuilder()
		for _, role := range pc.Roles {
			b.RequireRole(role)
		}
		for _, cm := range pc.Claims {
			b.RequireClaim(cm.Name, cm.Value)
		}
		policies[pc.Name] = b.Build(svc)
	}
	return policies
}

// BuildLimiter constructs the rate limiter, or nil when disabled.
func BuildLimiter(cfg RateLimitConfig) auth.RateLimiter {
	if !cfg.Enabled {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(cfg.Tiers))
	for name, rpm := range cfg.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	return auth.NewInProcessLimiter(tiers, cfg.DefaultRPM)
}
