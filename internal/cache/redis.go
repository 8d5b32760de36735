package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "statuswatch:cache:"

// Redis is a Redis-backed cache store. It lets multiple statuswatch
// processes share one cache, so an invalidation applied by one watcher
// is visible to all of them.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis cache store from a redis:// URL.
// Returns an error if the connection cannot be established.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key.String(), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, keys ...Key) error {
	for _, key := range keys {
		canonical := redisKeyPrefix + key.String()

		// Collect the key itself plus everything nested under it.
		toDelete := []string{canonical}
		iter := r.client.Scan(ctx, 0, canonical+"/*", 0).Iterator()
		for iter.Next(ctx) {
			toDelete = append(toDelete, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}

		if err := r.client.Del(ctx, toDelete...).Err(); err != nil {
			return fmt.Errorf("cache invalidate: %w", err)
		}
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
