package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"intelliquery/internal/config"
)

// Cache is a redis-backed cache for expansion terms and generated answers.
// A nil *Cache is valid and means caching is off; every method no-ops.
type Cache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

const (
	categoryExpansion = "expansion"
	categoryAnswer    = "answer"
)

// New connects to redis per the config, or returns nil when caching is
// disabled.
func New(cfg *config.CacheConfig) *Cache {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{
		client:    client,
		ttl:       time.Duration(cfg.TTLSecs) * time.Second,
		keyPrefix: "intelliquery",
	}
}

// Key builds a category-scoped key from a hash of the input text.
func (c *Cache) Key(category, text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.keyPrefix + ":" + category + ":" + hex.EncodeToString(sum[:16])
}

func (c *Cache) get(ctx context.Context, category, text string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, c.Key(category, text)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("Cache get failed")
		}
		return "", false
	}
	return val, true
}

func (c *Cache) set(ctx context.Context, category, text, value string) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, c.Key(category, text), value, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Cache set failed")
	}
}

// GetExpansion returns cached related terms for a query.
func (c *Cache) GetExpansion(ctx context.Context, query string) (string, bool) {
	return c.get(ctx, categoryExpansion, query)
}

// SetExpansion caches related terms for a query.
func (c *Cache) SetExpansion(ctx context.Context, query, terms string) {
	c.set(ctx, categoryExpansion, query, terms)
}

// GetAnswer returns a cached answer for a question.
func (c *Cache) GetAnswer(ctx context.Context, question string) (string, bool) {
	return c.get(ctx, categoryAnswer, question)
}

// SetAnswer caches an answer for a question.
func (c *Cache) SetAnswer(ctx context.Context, question, answer string) {
	c.set(ctx, categoryAnswer, question, answer)
}

// Flush drops all cached entries, used when the index is rebuilt.
func (c *Cache) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.keyPrefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("Cache flush failed")
	}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
