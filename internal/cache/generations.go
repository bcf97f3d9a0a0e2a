package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// DefaultGenerationKey holds the shared listing generation in Redis.
const DefaultGenerationKey = "medibook:admin:listing:generation"

// Generations counts listing invalidations.
type Generations interface {
	Current(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
}

// LocalGenerations is enough for a single API instance.
type LocalGenerations struct {
	n atomic.Int64
}

func NewLocalGenerations() *LocalGenerations {
	return &LocalGenerations{}
}

func (g *LocalGenerations) Current(context.Context) (int64, error) {
	return g.n.Load(), nil
}

func (g *LocalGenerations) Bump(context.Context) error {
	g.n.Add(1)
	return nil
}

// RedisGenerations keeps the counter in Redis so a write on one instance
// invalidates the listing cached by every other instance.
type RedisGenerations struct {
	client redis.UniversalClient
	key    string
}

func NewRedisGenerations(client redis.UniversalClient, key string) *RedisGenerations {
	if key == "" {
		key = DefaultGenerationKey
	}
	return &RedisGenerations{client: client, key: key}
}

func (g *RedisGenerations) Current(ctx context.Context) (int64, error) {
	n, err := g.client.Get(ctx, g.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read listing generation: %w", err)
	}
	return n, nil
}

func (g *RedisGenerations) Bump(ctx context.Context) error {
	if err := g.client.Incr(ctx, g.key).Err(); err != nil {
		return fmt.Errorf("failed to bump listing generation: %w", err)
	}
	return nil
}
