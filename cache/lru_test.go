package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, -1)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	_, _ = c.Get("a")
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpiresEntries(t *testing.T) {
	c := NewLRU[string](4, time.Minute).(*lruCache[string])
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("k", "v", 0)
	c.Set("short", "v", time.Second)
	now = now.Add(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRU[int](0, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Delete("a")
	assert.Equal(t, 1, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestRedisVectorStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisVectorStore(config.CacheConfig{Provider: "redis"})
	assert.Error(t, err)
}

func TestRedisVectorStoreUnreachable(t *testing.T) {
	s, err := NewRedisVectorStore(config.CacheConfig{Redis: config.RedisConfig{Address: "127.0.0.1:1"}})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "convrag:emb:q", s.key("q"))

	_, ok, err := s.Get(context.Background(), "q")
	assert.False(t, ok)
	assert.Error(t, err)
}
