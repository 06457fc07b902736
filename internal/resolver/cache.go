/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/models"
)

// DefaultSearchTTL bounds how long provider search results stay fresh.
const DefaultSearchTTL = 30 * time.Minute

// KeySearch prefixes cached search results, keyed by normalized query.
const KeySearch = "bragi:cache:search:"

// CacheConfig contains search cache configuration.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SearchTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RedisAddr:      "localhost:6379",
		SearchTTL:      DefaultSearchTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed search result caching with graceful fallback.
// A Redis outage never fails a lookup; the resolver just hits the provider.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config CacheConfig

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// NewCache creates a new cache instance.
func NewCache(cfg CacheConfig, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without search caching")
		return &Cache{
			logger:   logger.With().Str("component", "search_cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("search cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "search_cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling search cache due to Redis error")
	}
}

// GetCandidates retrieves cached search results for a query.
func (c *Cache) GetCandidates(ctx context.Context, query string) ([]models.Candidate, bool) {
	if !c.IsAvailable() {
		return nil, false
	}

	data, err := c.client.Get(ctx, searchKey(query)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}

	var candidates []models.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		c.logger.Debug().Err(err).Str("query", query).Msg("failed to unmarshal cached candidates")
		return nil, false
	}

	c.logger.Debug().Str("query", query).Int("count", len(candidates)).Msg("search cache hit")
	return candidates, true
}

// SetCandidates caches search results for a query.
func (c *Cache) SetCandidates(ctx context.Context, query string, candidates []models.Candidate) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}

	if err := c.client.Set(ctx, searchKey(query), data, c.config.SearchTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

func searchKey(query string) string {
	return KeySearch + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
