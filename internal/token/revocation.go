package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"planify/internal/cache"
)

// RevocationList records token ids that must no longer be accepted. Entries
// expire together with the token they refer to.
type RevocationList struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRevocationList returns a Redis-backed list, or nil when rdb is nil.
// A nil list revokes nothing.
func NewRevocationList(rdb *redis.Client) *RevocationList {
	if rdb == nil {
		return nil
	}
	return &RevocationList{rdb: rdb, now: time.Now}
}

// Revoke stores claims' token id until the token would have expired anyway.
// A nil list discards the request.
func (l *RevocationList) Revoke(ctx context.Context, claims *Claims) error {
	if l == nil {
		return nil
	}
	if claims == nil || claims.ID == "" {
		return errors.New("token: cannot revoke token without id")
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(l.now())
	}
	if ttl <= 0 {
		return nil
	}

	if err := l.rdb.Set(ctx, cache.RevokedTokenKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (l *RevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if l == nil || jti == "" {
		return false, nil
	}
	n, err := l.rdb.Exists(ctx, cache.RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}
