package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRevocationPrefix is the key prefix of the per-user revocation list.
const DefaultRevocationPrefix = "blacklist:"

const revokeMaxRetries = 5

// RedisRevocationList stores revoked token ids per user as a JSON array under
// <prefix><userID>.
type RedisRevocationList struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisRevocationList creates a revocation list. An empty prefix uses
// DefaultRevocationPrefix and a zero timeout disables the per-call deadline.
func NewRedisRevocationList(client redis.UniversalClient, prefix string, timeout time.Duration) *RedisRevocationList {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocationList{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		now:     time.Now,
	}
}

// Key returns the cache key holding userID's revoked token ids
func (r *RedisRevocationList) Key(userID string) string {
	return r.prefix + userID
}

// IsRevoked reports whether tokenID is listed for userID. A missing key means
// not revoked. Lookup and decode failures are returned to the caller.
func (r *RedisRevocationList) IsRevoked(ctx context.Context, userID, tokenID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	raw, err := r.client.Get(ctx, r.Key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revocation lookup: %w", err)
	}

	ids, err := decodeTokenIDs(raw)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, tokenID), nil
}

// Revoke adds tokenID to userID's list. The key expires at the later of the
// current expiry and until.
func (r *RedisRevocationList) Revoke(ctx context.Context, userID, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	key := r.Key(userID)

	txf := func(tx *redis.Tx) error {
		ids := []string{}
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if ids, err = decodeTokenIDs(raw); err != nil {
				return err
			}
		}

		current, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if current > ttl {
			ttl = current
		}

		if !slices.Contains(ids, tokenID) {
			ids = append(ids, tokenID)
		}
		payload, err := json.Marshal(ids)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < revokeMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("revoke token %s: too many concurrent updates", tokenID)
}

func (r *RedisRevocationList) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func decodeTokenIDs(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode revocation list: %w", err)
	}
	return ids, nil
}

var _ RevocationStore = (*RedisRevocationList)(nil)
