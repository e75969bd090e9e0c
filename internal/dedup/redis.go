package dedup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces warm tier keys.
const DefaultRedisPrefix = "smt:seen:"

// RedisWarmTier keeps marked keys in one sorted set per chain, scored by
// the time they were marked. Members older than the TTL are trimmed on
// every mark and the set itself expires when idle.
type RedisWarmTier struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	maxKeys int64
	now     func() time.Time
}

// NewRedisWarmTier creates a Redis-backed warm tier. maxKeys bounds each
// chain's set (0 = unbounded).
func NewRedisWarmTier(client redis.Cmdable, prefix string, ttl time.Duration, maxKeys int) *RedisWarmTier {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisWarmTier{client: client, prefix: prefix, ttl: ttl, maxKeys: int64(maxKeys), now: time.Now}
}

var _ WarmTier = (*RedisWarmTier)(nil)

func (r *RedisWarmTier) key(chainID string) string {
	return r.prefix + chainID
}

func (r *RedisWarmTier) cutoff() string {
	return strconv.FormatInt(r.now().Add(-r.ttl).UnixMilli(), 10)
}

// Read returns the live keys for a chain, oldest first.
func (r *RedisWarmTier) Read(ctx context.Context, chainID string) ([]string, error) {
	keys, err := r.client.ZRangeByScore(ctx, r.key(chainID), &redis.ZRangeBy{
		Min: "(" + r.cutoff(),
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis warm tier read: %w", err)
	}
	return keys, nil
}

// Mark trims expired members, then adds key with ZADD NX. A zero added
// count means another invocation already holds it.
func (r *RedisWarmTier) Mark(ctx context.Context, chainID, key string) (bool, error) {
	k := r.key(chainID)
	if err := r.client.ZRemRangeByScore(ctx, k, "-inf", r.cutoff()).Err(); err != nil {
		return false, fmt.Errorf("redis warm tier trim: %w", err)
	}
	added, err := r.client.ZAddNX(ctx, k, &redis.Z{Score: float64(r.now().UnixMilli()), Member: key}).Result()
	if err != nil {
		return false, fmt.Errorf("redis warm tier mark: %w", err)
	}
	if added == 0 {
		return true, nil
	}
	if r.maxKeys > 0 {
		if err := r.client.ZRemRangeByRank(ctx, k, 0, -r.maxKeys-1).Err(); err != nil {
			return false, fmt.Errorf("redis warm tier cap: %w", err)
		}
	}
	if err := r.client.Expire(ctx, k, r.ttl).Err(); err != nil {
		return false, fmt.Errorf("redis warm tier expire: %w", err)
	}
	return false, nil
}

// Unmark removes a key.
func (r *RedisWarmTier) Unmark(ctx context.Context, chainID, key string) error {
	if err := r.client.ZRem(ctx, r.key(chainID), key).Err(); err != nil {
		return fmt.Errorf("redis warm tier unmark: %w", err)
	}
	return nil
}
