package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/pharmacy-ai-platform/internal/config"
	"github.com/wolfman30/pharmacy-ai-platform/internal/conversation"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

func staticAWS(context.Context, *appconfig.Config) (aws.Config, error) {
	return aws.Config{Region: "us-east-1"}, nil
}

func TestBuildLLMChainRequiresConfig(t *testing.T) {
	_, err := BuildLLMChain(context.Background(), nil, staticAWS, logging.Discard())
	assert.Error(t, err)
}

func TestBuildLLMChainNoProvider(t *testing.T) {
	_, err := BuildLLMChain(context.Background(), &appconfig.Config{}, staticAWS, logging.Discard())
	assert.ErrorIs(t, err, ErrNoLLMProvider)
}

func TestBuildLLMChainBedrockOnly(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: ProviderBedrock, BedrockModelID: "anthropic.claude-3-haiku"}
	chain, err := BuildLLMChain(context.Background(), cfg, staticAWS, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, chain.Client)
	assert.Equal(t, "anthropic.claude-3-haiku", chain.Model)
	assert.Contains(t, chain.Breakers, ProviderBedrock)
	assert.Equal(t, "closed", chain.Breakers[ProviderBedrock].State())
	assert.NoError(t, chain.Close())
}

func TestBuildLLMChainAWSFailure(t *testing.T) {
	cfg := &appconfig.Config{BedrockModelID: "m"}
	_, err := BuildLLMChain(context.Background(), cfg, func(context.Context, *appconfig.Config) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	}, logging.Discard())
	assert.ErrorContains(t, err, "no credentials")
}

func TestBuildContextCacheDefaultsToMemory(t *testing.T) {
	cache, client := BuildContextCache(context.Background(), &appconfig.Config{ContextCache: "memory"}, logging.Discard())
	assert.Nil(t, client)
	_, ok := cache.(*conversation.MemoryContextCache)
	assert.True(t, ok)
}

func TestBuildContextCacheRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{ContextCache: "redis", RedisAddr: mr.Addr()}

	cache, client := BuildContextCache(context.Background(), cfg, logging.Discard())
	require.NotNil(t, client)
	defer client.Close()
	_, ok := cache.(*conversation.RedisContextCache)
	assert.True(t, ok)
}

func TestBuildContextCacheRedisUnreachableFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cache, client := BuildContextCache(context.Background(), &appconfig.Config{ContextCache: "redis", RedisAddr: addr}, logging.Discard())
	assert.Nil(t, client)
	_, ok := cache.(*conversation.MemoryContextCache)
	assert.True(t, ok)
}
