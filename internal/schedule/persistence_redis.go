package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersistence stores snapshots as plain string values under "study:<kind>:<user>".
type RedisPersistence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPersistence creates a Redis-backed persistence. A zero ttl keeps snapshots forever.
func NewRedisPersistence(client *redis.Client, ttl time.Duration) (*RedisPersistence, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisPersistence{client: client, ttl: ttl}, nil
}

func (r *RedisPersistence) Load(ctx context.Context, key Key) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisPersistence) Save(ctx context.Context, key Key, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key.String(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (r *RedisPersistence) Delete(ctx context.Context, key Key) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := r.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
