package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContextCache_SweepRemovesOnlyStale(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryContextCache()
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "old", LastUpdated: base.Add(-2 * time.Hour)}))
	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "fresh", LastUpdated: base}))
	// Reloaded from storage with an old timestamp after a fresh write.
	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "reloaded", LastUpdated: base.Add(-90 * time.Minute)}))

	removed, err := cache.Sweep(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Len())

	_, ok, _ := cache.Get(ctx, "fresh")
	assert.True(t, ok)
	_, ok, _ = cache.Get(ctx, "reloaded")
	assert.False(t, ok)
}

func TestMemoryContextCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryContextCache()
	orig := &Context{CustomerID: "C1", Turns: []Turn{{Role: ChatRoleUser, Content: "hi"}}}
	require.NoError(t, cache.Set(ctx, orig))

	orig.Turns[0].Content = "mutated"
	got, ok, err := cache.Get(ctx, "C1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", got.Turns[0].Content)

	got.Turns = append(got.Turns, Turn{Content: "extra"})
	again, _, _ := cache.Get(ctx, "C1")
	assert.Len(t, again.Turns, 1)

	require.NoError(t, cache.Delete(ctx, "C1"))
	_, ok, _ = cache.Get(ctx, "C1")
	assert.False(t, ok)
}

func TestMemoryContextCache_UpdateReordersEntry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryContextCache()
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "A", LastUpdated: base.Add(-3 * time.Hour)}))
	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "B", LastUpdated: base.Add(-2 * time.Hour)}))
	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "A", LastUpdated: base}))

	removed, err := cache.Sweep(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, ok, _ := cache.Get(ctx, "A")
	assert.True(t, ok)
}

func TestRedisContextCache_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisContextCache(client, time.Hour)

	_, ok, err := cache.Get(ctx, "C1")
	require.NoError(t, err)
	assert.False(t, ok)

	stamp := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Set(ctx, &Context{
		CustomerID:  "C1",
		Turns:       []Turn{{Role: ChatRoleUser, Content: "hello", Timestamp: stamp}},
		LastIntent:  IntentGeneralInquiry,
		LastUpdated: stamp,
	}))
	assert.True(t, mr.Exists("conversation:context:C1"))

	got, ok, err := cache.Get(ctx, "C1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Turns[0].Content)
	assert.Equal(t, IntentGeneralInquiry, got.LastIntent)

	removed, err := cache.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)

	mr.FastForward(61 * time.Minute)
	_, ok, err = cache.Get(ctx, "C1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisContextCache_Delete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisContextCache(client, 0)
	require.NoError(t, cache.Set(ctx, &Context{CustomerID: "C1"}))
	require.NoError(t, cache.Delete(ctx, "C1"))
	assert.False(t, mr.Exists("conversation:context:C1"))
}
