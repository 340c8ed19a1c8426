package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// TokenBlacklist records revoked token ids until their natural expiry.
// A nil Redis client turns every call into a no-op and nothing is ever revoked.
type TokenBlacklist struct {
	rdb *redis.Client
}

// NewTokenBlacklist wraps rdb, which may be nil.
func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

// Enabled reports whether revocations are persisted.
func (b *TokenBlacklist) Enabled() bool {
	return b != nil && b.rdb != nil
}

// Revoke blacklists jti for ttl. Non-positive ttls are skipped since the token
// has already expired.
func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if !b.Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether jti was blacklisted. Lookup failures are returned
// alongside false so the caller decides whether to fail open.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if !b.Enabled() || jti == "" {
		return false, nil
	}
	err := b.rdb.Get(ctx, blacklistPrefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
