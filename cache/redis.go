package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "tunemux:resp:"

// RedisBackend shares cached responses between processes through Redis.
// Keys are hashed so long search URLs stay within sane key sizes.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func redisKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (r *RedisBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get Redis key: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return e, true, nil
}

// Set stores the entry. Redis is asked to expire it after a few TTLs so an
// abandoned key does not live forever; freshness is still judged by StoredAt.
func (r *RedisBackend) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(key), raw, 4*TTL).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}
	return nil
}

// Clear deletes every key under the response prefix.
func (r *RedisBackend) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete Redis keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan Redis keys: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete Redis keys: %w", err)
		}
	}
	return nil
}
