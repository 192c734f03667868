package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// At least one scheme and a default are required.
	if len(c.Auth.Schemes) == 0 {
		errs = append(errs, fmt.Errorf("auth.schemes must list at least one scheme"))
	}
	if c.Auth.DefaultScheme == "" {
		errs = append(errs, fmt.Errorf("auth.default_scheme is required"))
	}

	names := make(map[string]bool, len(c.Auth.Schemes))
	for i, s := range c.Auth.Schemes {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("auth.schemes[%d].name is required", i))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("auth.schemes[%d]: duplicate scheme name %q", i, s.Name))
		}
		names[s.Name] = true

		switch s.Type {
		case "bearer":
			if s.Bearer.JWKSURL == "" {
				errs = append(errs, fmt.Errorf("auth.schemes[%d].bearer.jwks_url is required", i))
			}
		case "apikey":
			switch s.APIKey.Store {
			case "", "static":
				if len(s.APIKey.Keys) == 0 {
					errs = append(errs, fmt.Errorf("auth.schemes[%d].apikey.keys must list at least one key", i))
				}
				for j, k := range s.APIKey.Keys {
					if k.Key == "" {
						errs = append(errs, fmt.Errorf("auth.schemes[%d].apikey.keys[%d].key or key_file is required", i, j))
					}
					if k.Subject == "" {
						errs = append(errs, fmt.Errorf("auth.schemes[%d].apikey.keys[%d].subject is required", i, j))
					}
				}
			case "postgres":
				if s.APIKey.Postgres.DSN == "" {
					errs = append(errs, fmt.Errorf("auth.schemes[%d].apikey.postgres.dsn or dsn_file is required", i))
				}
			default:
				errs = append(errs, fmt.Errorf("auth.schemes[%d].apikey.store must be \"static\" or \"postgres\", got %q", i, s.APIKey.Store))
			}
		case "cookie":
			if s.Cookie.Secret == "" {
				errs = append(errs, fmt.Errorf("auth.schemes[%d].cookie.secret or secret_file is required", i))
			}
		default:
			errs = append(errs, fmt.Errorf("auth.schemes[%d].type must be \"bearer\", \"apikey\", or \"cookie\", got %q", i, s.Type))
		}
	}

	if c.Auth.DefaultScheme != "" && len(c.Auth.Schemes) > 0 && !names[c.Auth.DefaultScheme] {
		errs = append(errs, fmt.Errorf("auth.default_scheme %q does not name a configured scheme", c.Auth.DefaultScheme))
	}
	if c.Auth.SessionScheme != "" && !names[c.Auth.SessionScheme] {
		errs = append(errs, fmt.Errorf("auth.session_scheme %q does not name a configured scheme", c.Auth.SessionScheme))
	}

	// Policies need names; empty requirement lists are legal (authentication-only).
	policyNames := make(map[string]bool, len(c.Policies))
	for i, p := range c.Policies {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("policies[%d].name is required", i))
			continue
		}
		if policyNames[p.Name] {
			errs = append(errs, fmt.Errorf("policies[%d]: duplicate policy name %q", i, p.Name))
		}
		policyNames[p.Name] = true
		for j, cm := range p.Claims {
			if cm.Name == "" || cm.Value == "" {
				errs = append(errs, fmt.Errorf("policies[%d].claims[%d]: name and value are required", i, j))
			}
		}
	}

	return errors.Join(errs...)
}
