package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		addr    string
		wantNil bool
	}{
		{"host and port", mr.Addr(), false},
		{"url", "redis://" + mr.Addr() + "/0", false},
		{"empty", "", true},
		{"invalid url", "redis://%zz", true},
		{"unreachable", "127.0.0.1:1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := Connect(tt.addr)
			if tt.wantNil {
				assert.Nil(t, client)
				return
			}
			require.NotNil(t, client)
			defer client.Close()
			assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		})
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ratelimit:auth:10.0.0.1", RateLimitKey("auth", "10.0.0.1"))
	assert.Equal(t, "revoked:abc", RevokedTokenKey("abc"))
}
