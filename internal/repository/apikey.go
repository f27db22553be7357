package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/bizpermit/permitdesk/internal/model"
)

// ErrAPIKeyNotFound is returned for unknown or already revoked keys.
var ErrAPIKeyNotFound = errors.New("API key not found")

const apiKeyColumns = `k.id, k.user_id, k.key_hash, k.key_prefix, k.scopes, k.rate_limit_tier,
	k.name, k.revoked_at, k.last_used_at, k.created_at`

// CreateAPIKey stores a newly issued key. Only the hash is persisted.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, scopes, rate_limit_tier, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, pq.Array(key.Scopes),
		key.RateLimitTier, key.Name, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByID returns the key record, revoked or not.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys k WHERE k.id = $1`, id)
	key, err := scanAPIKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

// GetAPIKeysByPrefix returns the active candidates for a presented key.
// Each carries its owner's current role, so a promotion or demotion takes
// effect on the next uncached request.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apiKeyColumns+`, u.role
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE k.key_prefix = $1 AND k.revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("query api keys by prefix: %w", err)
	}

	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.APIKey, error) {
		var role string
		key, err := scanAPIKey(row, &role)
		if err != nil {
			return nil, err
		}
		key.UserRole = model.Role(role)
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan api keys by prefix: %w", err)
	}
	return keys, nil
}

// ListAPIKeysByUserID returns every key the user has been issued, newest first.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys k
		WHERE k.user_id = $1
		ORDER BY k.created_at DESC, k.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.APIKey, error) {
		return scanAPIKey(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey stamps revoked_at. Revoking twice reports ErrAPIKeyNotFound.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed records a successful authentication.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1`,
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// scanAPIKey reads apiKeyColumns, followed by any extra destinations.
func scanAPIKey(row pgx.Row, extra ...any) (*model.APIKey, error) {
	var key model.APIKey
	var scopes []string
	dest := append([]any{
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, pq.Array(&scopes),
		&key.RateLimitTier, &key.Name, &key.RevokedAt, &key.LastUsedAt, &key.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	key.Scopes = scopes
	return &key, nil
}
