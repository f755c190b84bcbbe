package repositories

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

type RedisTokenRevocationRepository struct {
	redis *redis.Client
}

func NewRedisTokenRevocationRepository(redisClient *redis.Client) *RedisTokenRevocationRepository {
	return &RedisTokenRevocationRepository{redis: redisClient}
}

func revokedTokenKey(tokenID string) string {
	return "auth:revoked:" + tokenID
}

func (r *RedisTokenRevocationRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.redis.Set(ctx, revokedTokenKey(tokenID), 1, ttl).Err()
}

func (r *RedisTokenRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, revokedTokenKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LRUTokenRevocationRepository keeps revocations in process memory. Entries
// expire after the longest token lifetime; once the cache is full the oldest
// revocations are evicted first.
type LRUTokenRevocationRepository struct {
	cache *expirable.LRU[string, time.Time]
}

func NewLRUTokenRevocationRepository(capacity int, ttl time.Duration) *LRUTokenRevocationRepository {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LRUTokenRevocationRepository{
		cache: expirable.NewLRU[string, time.Time](capacity, nil, ttl),
	}
}

func (r *LRUTokenRevocationRepository) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.cache.Add(tokenID, time.Now().Add(ttl))
	return nil
}

func (r *LRUTokenRevocationRepository) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	until, ok := r.cache.Get(tokenID)
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}
