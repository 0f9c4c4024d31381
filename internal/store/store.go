package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps access to the database via a shared pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New creates a new Store on a shared *pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// NewPool opens a pgx connection pool and pings it.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// APIKey is a stored API key row. KeyHash is the SHA-256 hex of the raw key.
type APIKey struct {
	ID                 uuid.UUID
	KeyHash            string
	Label              string
	IsAdmin            bool
	RateLimitPerMinute *int32
	TenantID           *uuid.UUID
	CreatedAt          time.Time
}

// hashAPIKey hashes a raw API key string using SHA-256 and returns a hex string.
func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func scanAPIKey(row pgx.Row) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.KeyHash, &k.Label, &k.IsAdmin, &k.RateLimitPerMinute, &k.TenantID, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrNotFound
	}
	return k, err
}

// GetAPIKeyByRawKey looks up an API key by its raw value.
func (s *Store) GetAPIKeyByRawKey(ctx context.Context, rawKey string) (APIKey, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, key_hash, label, is_admin, rate_limit_per_minute, tenant_id, created_at
		FROM api_keys WHERE key_hash = $1`, hashAPIKey(rawKey))
	return scanAPIKey(row)
}

// EnsureAdminAPIKey ensures that there is an admin API key for the given raw key and label.
// If it already exists, it is returned; otherwise, it is created.
func (s *Store) EnsureAdminAPIKey(ctx context.Context, rawKey, label string) (APIKey, error) {
	hash := hashAPIKey(rawKey)
	row := s.Pool.QueryRow(ctx, `
		SELECT id, key_hash, label, is_admin, rate_limit_per_minute, tenant_id, created_at
		FROM api_keys WHERE key_hash = $1`, hash)
	key, err := scanAPIKey(row)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return APIKey{}, err
	}

	row = s.Pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, key_hash, label, is_admin)
		VALUES ($1, $2, $3, true)
		RETURNING id, key_hash, label, is_admin, rate_limit_per_minute, tenant_id, created_at`,
		uuid.New(), hash, label)
	return scanAPIKey(row)
}

// CreateRandomAPIKey creates a new random API key (with sw_ prefix).
// It returns the raw key plus the stored record.
func (s *Store) CreateRandomAPIKey(ctx context.Context, label string, isAdmin bool, rateLimitPerMinute *int, tenantID *uuid.UUID) (string, APIKey, error) {
	raw := "sw_" + uuid.New().String()

	var rl *int32
	if rateLimitPerMinute != nil && *rateLimitPerMinute > 0 {
		v := int32(*rateLimitPerMinute)
		rl = &v
	}

	row := s.Pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, key_hash, label, is_admin, rate_limit_per_minute, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, key_hash, label, is_admin, rate_limit_per_minute, tenant_id, created_at`,
		uuid.New(), hashAPIKey(raw), label, isAdmin, rl, tenantID)
	key, err := scanAPIKey(row)
	if err != nil {
		return "", APIKey{}, err
	}
	return raw, key, nil
}
