package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, PORTIER_CONFIG env, ./config.yaml, /etc/portier/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. PORTIER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/portier/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check PORTIER_CONFIG env var.
	if envPath := os.Getenv("PORTIER_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/portier/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTIER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PORTIER_DEFAULT_SCHEME"); v != "" {
		cfg.Auth.DefaultScheme = v
	}
	if v := os.Getenv("PORTIER_SESSION_SCHEME"); v != "" {
		cfg.Auth.SessionScheme = v
	}
	if v := os.Getenv("PORTIER_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PORTIER_RATE_LIMIT_ENABLED"); v != "" {
		cfg.Auth.RateLimit.Enabled = v == "true" || v == "1"
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Auth.Schemes {
		s := &cfg.Auth.Schemes[i]

		// schemes[*].apikey.postgres.dsn_file -> dsn
		if s.APIKey.Postgres.DSNFile != "" && s.APIKey.Postgres.DSN == "" {
			val, err := readSecretFile(s.APIKey.Postgres.DSNFile)
			if err != nil {
				return fmt.Errorf("schemes[%d].apikey.postgres.dsn_file: %w", i, err)
			}
			s.APIKey.Postgres.DSN = val
		}

		// schemes[*].apikey.keys[*].key_file -> key
		for j := range s.APIKey.Keys {
			k := &s.APIKey.Keys[j]
			if k.KeyFile != "" && k.Key == "" {
				val, err := readSecretFile(k.KeyFile)
				if err != nil {
					return fmt.Errorf("schemes[%d].apikey.keys[%d].key_file: %w", i, j, err)
				}
				k.Key = val
			}
		}

		// schemes[*].cookie.secret_file -> secret
		if s.Cookie.SecretFile != "" && s.Cookie.Secret == "" {
			val, err := readSecretFile(s.Cookie.SecretFile)
			if err != nil {
				return fmt.Errorf("schemes[%d].cookie.secret_file: %w", i, err)
			}
			s.Cookie.Secret = val
		}
	}

	return nil
}

// readSecretFile reads a secret from a file, trimming surrounding whitespace.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
