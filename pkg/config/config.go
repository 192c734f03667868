// Package config provides unified configuration for the portier gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (PORTIER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the portier gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Policies      []PolicyConfig      `yaml:"policies"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 60s
}

// AuthConfig holds authentication settings: the registered schemes, the
// default scheme, the optional session scheme, and rate limiting.
type AuthConfig struct {
	// DefaultScheme resolves challenge/forbid/sign-in/sign-out calls made
	// without an explicit scheme name. Required.
	DefaultScheme string `yaml:"default_scheme"`

	// SessionScheme names the scheme serving the sign-in/sign-out endpoints.
	// Optional; the named scheme must support sessions (type "cookie").
	SessionScheme string `yaml:"session_scheme"`

	// Schemes are evaluated in listed order.
	Schemes []SchemeConfig `yaml:"schemes"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// SchemeConfig describes one named authentication scheme.
type SchemeConfig struct {
	Name   string       `yaml:"name"`
	Type   string       `yaml:"type"` // "bearer", "apikey", or "cookie"
	Bearer BearerConfig `yaml:"bearer"`
	APIKey APIKeyConfig `yaml:"apikey"`
	Cookie CookieConfig `yaml:"cookie"`
}

// BearerConfig holds JWT bearer scheme settings.
type BearerConfig struct {
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	JWKSURL      string        `yaml:"jwks_url"`
	Realm        string        `yaml:"realm"`
	SubjectClaim string        `yaml:"subject_claim"` // default: "sub"
	CacheTTL     time.Duration `yaml:"cache_ttl"`     // default: 1h
}

// APIKeyConfig holds API key scheme settings.
type APIKeyConfig struct {
	Header   string         `yaml:"header"` // default: "X-Api-Key"
	Realm    string         `yaml:"realm"`
	Store    string         `yaml:"store"` // "static" or "postgres", default: "static"
	Keys     []APIKeyEntry  `yaml:"keys"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// APIKeyEntry describes a single static API key.
type APIKeyEntry struct {
	Key     string   `yaml:"key"`
	KeyFile string   `yaml:"key_file"` // _file variant for key
	Subject string   `yaml:"subject"`
	Roles   []string `yaml:"roles"`
	Tier    string   `yaml:"tier"`
}

// PostgresConfig holds PostgreSQL-specific settings for the API key store.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// CookieConfig holds session-cookie scheme settings.
type CookieConfig struct {
	Name       string        `yaml:"name"` // default: "portier_session"
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	TTL        time.Duration `yaml:"ttl"`         // default: 24h
	Secure     bool          `yaml:"secure"`
}

// RateLimitConfig holds per-tier rate limit settings.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"` // tier name -> requests per minute
}

// PolicyConfig describes a named authorization policy: every listed role
// and claim must hold.
type PolicyConfig struct {
	Name   string       `yaml:"name"`
	Roles  []string     `yaml:"roles"`
	Claims []ClaimMatch `yaml:"claims"`
}

// ClaimMatch requires a claim to equal or contain a string value.
type ClaimMatch struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds log level and debug category settings. Both can be
// overridden by the PORTIER_LOG_LEVEL and PORTIER_DEBUG environment
// variables.
type LoggingConfig struct {
	Level string `yaml:"level"` // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Auth: AuthConfig{
			RateLimit: RateLimitConfig{
				DefaultRPM: 600,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
