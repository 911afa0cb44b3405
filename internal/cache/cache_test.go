package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"intelliquery/internal/config"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, New(&config.CacheConfig{Enabled: false}))
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	_, ok := c.GetExpansion(ctx, "query")
	assert.False(t, ok)
	_, ok = c.GetAnswer(ctx, "question")
	assert.False(t, ok)

	c.SetExpansion(ctx, "query", "terms")
	c.SetAnswer(ctx, "question", "answer")
	c.Flush(ctx)
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	c := New(&config.CacheConfig{Enabled: true, Addr: "localhost:6379"})
	t.Cleanup(func() { _ = c.Close() })

	k1 := c.Key("answer", "what is revenue")
	k2 := c.Key("answer", "what is revenue")
	k3 := c.Key("answer", "what is profit")
	k4 := c.Key("expansion", "what is revenue")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.True(t, strings.HasPrefix(k1, "intelliquery:answer:"))
	assert.Len(t, strings.TrimPrefix(k1, "intelliquery:answer:"), 32)
}
