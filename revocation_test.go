package auth_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-app-auth"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRevocationList_IsRevoked(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	list := auth.NewRedisRevocationList(client, "", time.Second)

	t.Run("missing key is not revoked", func(t *testing.T) {
		revoked, err := list.IsRevoked(ctx, "user-1", "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("listed token is revoked", func(t *testing.T) {
		require.NoError(t, mr.Set("blacklist:user-2", `["jti-a","jti-b"]`))

		revoked, err := list.IsRevoked(ctx, "user-2", "jti-b")
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = list.IsRevoked(ctx, "user-2", "jti-c")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("undecodable value is an error", func(t *testing.T) {
		require.NoError(t, mr.Set("blacklist:user-3", "not json"))

		_, err := list.IsRevoked(ctx, "user-3", "jti-1")
		assert.Error(t, err)
	})

	t.Run("unreachable redis is an error", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()

		_, err := auth.NewRedisRevocationList(down, "", 100*time.Millisecond).IsRevoked(ctx, "user-1", "jti-1")
		assert.Error(t, err)
	})
}

func TestRedisRevocationList_Revoke(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	list := auth.NewRedisRevocationList(client, "revoked:", time.Second)

	require.NoError(t, list.Revoke(ctx, "user-1", "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, list.Revoke(ctx, "user-1", "jti-2", time.Now().Add(time.Minute)))
	require.NoError(t, list.Revoke(ctx, "user-1", "jti-1", time.Now().Add(time.Minute)))

	assert.Equal(t, "revoked:user-1", list.Key("user-1"))

	raw, err := mr.Get("revoked:user-1")
	require.NoError(t, err)

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(raw), &ids))
	assert.Equal(t, []string{"jti-1", "jti-2"}, ids)

	ttl := mr.TTL("revoked:user-1")
	assert.Greater(t, ttl, 50*time.Minute, "the longest expiry wins")

	for _, id := range ids {
		revoked, err := list.IsRevoked(ctx, "user-1", id)
		require.NoError(t, err)
		assert.True(t, revoked)
	}

	mr.FastForward(2 * time.Hour)
	revoked, err := list.IsRevoked(ctx, "user-1", "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationList_RevokeExpiredIsNoop(t *testing.T) {
	mr, client := newRedis(t)
	list := auth.NewRedisRevocationList(client, "", 0)

	require.NoError(t, list.Revoke(context.Background(), "user-1", "jti-1", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(list.Key("user-1")))
}
