// Package postgres provides a PostgreSQL-backed API key store. It uses
// pgx/v5 for connection pooling and keeps only SHA-256 key hashes at rest.
package postgres

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avekoy/portier/pkg/auth/apikey"
)

// Store is a PostgreSQL-backed KeyStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements apikey.KeyStore at compile time.
var _ apikey.KeyStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Lookup resolves a key hash to its identity. Revoked keys resolve as
// not found.
func (s *Store) Lookup(ctx context.Context, keyHash [sha256.Size]byte) (apikey.Identity, error) {
	var id apikey.Identity
	err := s.pool.QueryRow(ctx,
		`SELECT subject, COALESCE(roles, '{}'), COALESCE(tier, '')
		 FROM api_keys
		 WHERE key_hash = $1 AND NOT revoked`,
		keyHash[:],
	).Scan(&id.Subject, &id.Roles, &id.Tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apikey.Identity{}, apikey.ErrKeyNotFound
		}
		return apikey.Identity{}, fmt.Errorf("querying api key: %w", err)
	}
	return id, nil
}

// Add stores a new key for the identity. The plaintext key is hashed before
// it reaches the database.
func (s *Store) Add(ctx context.Context, key string, id apikey.Identity) error {
	hash := sha256.Sum256([]byte(key))
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (key_hash, subject, roles, tier)
		 VALUES ($1, $2, $3, $4)`,
		hash[:], id.Subject, id.Roles, id.Tier,
	)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}

// Revoke disables a key without deleting its audit trail.
func (s *Store) Revoke(ctx context.Context, key string) error {
	hash := sha256.Sum256([]byte(key))
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET revoked = TRUE WHERE key_hash = $1`,
		hash[:],
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apikey.ErrKeyNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
