package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisContextCache shares contexts across API replicas. Entries carry a
// native TTL so Redis does the eviction.
type RedisContextCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisContextCache creates a Redis-backed cache.
func NewRedisContextCache(client *redis.Client, ttl time.Duration) *RedisContextCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisContextCache{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("pharmacy.internal.conversation.cache"),
	}
}

func (s *RedisContextCache) Get(ctx context.Context, customerID string) (*Context, bool, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.cache_get")
	defer span.End()

	data, err := s.redis.Get(ctx, contextKey(customerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: load cached context: %w", err)
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: decode cached context: %w", err)
	}
	return &c, true, nil
}

func (s *RedisContextCache) Set(ctx context.Context, c *Context) error {
	if c == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "conversation.cache_set")
	defer span.End()

	data, err := json.Marshal(c)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: marshal context: %w", err)
	}
	if err := s.redis.Set(ctx, contextKey(c.CustomerID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: cache context: %w", err)
	}
	return nil
}

func (s *RedisContextCache) Delete(ctx context.Context, customerID string) error {
	if err := s.redis.Del(ctx, contextKey(customerID)).Err(); err != nil {
		return fmt.Errorf("conversation: delete cached context: %w", err)
	}
	return nil
}

// Sweep is a no-op; keys expire on their own TTL.
func (s *RedisContextCache) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func contextKey(customerID string) string {
	return fmt.Sprintf("conversation:context:%s", customerID)
}
