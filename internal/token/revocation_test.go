package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocationList(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	list := NewRevocationList(rdb)
	ctx := context.Background()

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, claims))

	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL("revoked:jti-1")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl=%s", ttl)

	mr.FastForward(time.Hour + time.Second)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocationList_EdgeCases(t *testing.T) {
	disabled := NewRevocationList(nil)
	assert.Nil(t, disabled)
	assert.NoError(t, disabled.Revoke(context.Background(), &Claims{}))
	revoked, err := disabled.IsRevoked(context.Background(), "jti")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	list := NewRevocationList(rdb)
	ctx := context.Background()

	assert.Error(t, list.Revoke(ctx, nil))
	assert.Error(t, list.Revoke(ctx, &Claims{}))

	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "old",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	require.NoError(t, list.Revoke(ctx, expired))
	assert.False(t, mr.Exists("revoked:old"))

	revoked, err = list.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
