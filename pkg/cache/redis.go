package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Cache on top of a go-redis client. TTLs are enforced by
// the server, so expiry behaves identically across instances.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing redis client. The caller keeps ownership of the
// client's lifecycle unless Close is used.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Clear(ctx context.Context, prefix string) (int, error) {
	return r.scanApply(ctx, prefix, func(keys []string) error {
		return r.client.Del(ctx, keys...).Err()
	})
}

func (r *Redis) Count(ctx context.Context, prefix string) (int, error) {
	return r.scanApply(ctx, prefix, nil)
}

// scanApply iterates keys under prefix with SCAN and optionally applies fn to
// each batch. It returns the number of keys seen.
func (r *Redis) scanApply(ctx context.Context, prefix string, fn func(keys []string) error) (int, error) {
	var cursor uint64
	total := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			if fn != nil {
				if err := fn(keys); err != nil {
					return total, err
				}
			}
			total += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
