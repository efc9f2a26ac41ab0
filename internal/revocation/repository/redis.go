package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cermont-atg/authcore/internal/revocation/domain"
)

const revocationKeyPrefix = "revoked_jti"

// RedisRepository keeps the revocation list in Redis. Entries carry a TTL equal
// to the remaining token lifetime, so Redis expires them on its own and
// PruneExpired has nothing to do.
type RedisRepository struct {
	client *redis.Client
	nowF   func() time.Time
}

// NewRedisRepository returns a revocation list backed by the given Redis client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, nowF: time.Now}
}

func revocationKey(jti string) string {
	return revocationKeyPrefix + ":" + jti
}

// Revoke records the jti until the token's expiry. Revoking an already-expired
// token is a no-op.
func (r *RedisRepository) Revoke(ctx context.Context, t *domain.RevokedAccessToken) error {
	ttl := t.ExpiresAt.Sub(r.nowF())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revocationKey(t.JTI), t.Reason, ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is on the revocation list.
func (r *RedisRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("is revoked: %w", err)
	}
	return n > 0, nil
}

// PruneExpired is a no-op; Redis TTLs expire entries automatically.
func (r *RedisRepository) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}
