package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed Cache, grounded on the original system's
// cache_service.py: every method degrades to a no-op on connection
// failure rather than propagating an error, so the orchestrator's
// "cache is optional" contract holds regardless of backend.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed Cache against addr (host:port).
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache: redis get degraded to miss", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("cache: redis set silently failed", "key", key, "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("cache: redis delete silently failed", "key", key, "error", err)
	}
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, bool) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func (r *Redis) List(ctx context.Context, prefix string) []string {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("cache: redis list degraded to empty", "prefix", prefix, "error", err)
		return nil
	}
	return keys
}
