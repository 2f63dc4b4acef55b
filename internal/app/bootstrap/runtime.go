package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/pharmacy-ai-platform/internal/config"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildContextCache picks the conversation cache tier. CONTEXT_CACHE=redis
// shares contexts across replicas; anything else, or an unreachable Redis,
// keeps them in process memory. The returned client is nil for the memory tier.
func BuildContextCache(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.ContextCache, *redis.Client) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil && cfg.ContextCache == "redis" {
		if client := BuildRedisClient(ctx, cfg, logger, true); client != nil {
			logger.Info("using redis context cache", "addr", cfg.RedisAddr, "ttl", cfg.ContextCacheTTL.String())
			return conversation.NewRedisContextCache(client, cfg.ContextCacheTTL), client
		}
		logger.Warn("falling back to in-memory context cache")
	}
	return conversation.NewMemoryContextCache(), nil
}
