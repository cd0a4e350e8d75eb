package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the session keys.
const DefaultRedisPrefix = "catalog-admin:"

// RedisStore keeps the session as three plain string keys in Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) keys() []string {
	keys := make([]string, len(Keys))
	for i, k := range Keys {
		keys[i] = r.prefix + k
	}
	return keys
}

func (r *RedisStore) Get(ctx context.Context) (*Session, error) {
	results, err := r.client.MGet(ctx, r.keys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("get redis session: %w", err)
	}

	values := make(map[string]string, len(Keys))
	for i, v := range results {
		if s, ok := v.(string); ok {
			values[Keys[i]] = s
		}
	}
	return decodeValues(values), nil
}

func (r *RedisStore) Set(ctx context.Context, s Session) error {
	values, err := encodeValues(s)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range Keys {
			if v, ok := values[k]; ok {
				pipe.Set(ctx, r.prefix+k, v, 0)
			} else {
				pipe.Del(ctx, r.prefix+k)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set redis session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.keys()...).Err(); err != nil {
		return fmt.Errorf("clear redis session: %w", err)
	}
	return nil
}
