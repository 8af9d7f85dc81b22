package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited means a window is already past its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps any failure reported by a [Counter]; the
	// limiter treats it as a denial.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)

// Counter stores fixed-window counters.
type Counter interface {
	// Get returns the counter value, or zero when the key is absent.
	Get(ctx context.Context, key string) (int64, error)
	// Incr adds one and starts the window with ttl when the key is new.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisCounter keeps counters in Redis so limits hold across instances.
type RedisCounter struct {
	redis redis.UniversalClient
}

// NewRedisCounter wraps client.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	count, err := c.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Incr runs INCR and EXPIRE NX in one MULTI/EXEC, so the window starts on
// the first hit and a counter is never left without a TTL.
func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return incr.Val(), nil
}

func (c *RedisCounter) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
