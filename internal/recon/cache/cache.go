// Package cache provides the optional read-through cache of serialized
// candidate sets. Only the immutable serialized form is cached; candidates
// themselves are recomputed per request. Entries expire by TTL and are never
// partially invalidated.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"vocab-reconciler/internal/common/database"
	"vocab-reconciler/internal/common/logger"
	"vocab-reconciler/internal/common/metrics"
	"vocab-reconciler/internal/models"
)

// CandidateCache is safe to use with a nil Redis client; it then disables
// itself and every lookup is a miss.
type CandidateCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

// New creates a candidate cache. Pass a nil client to disable caching.
func New(redis *database.RedisClient, ttl time.Duration, log logger.Logger) *CandidateCache {
	return &CandidateCache{redis: redis, ttl: ttl, logger: log}
}

// Key builds the cache key: entity|normalized|k_fuzzy|k_sem|filters, with
// filters rendered in sorted order so equivalent queries share an entry.
func Key(entity, normalized string, kFuzzy, kSem int, props []models.PropertyConstraint) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, fmt.Sprintf("%s=%v", p.PID, p.Value))
	}
	sort.Strings(parts)
	return fmt.Sprintf("recon:%s|%s|%d|%d|%s", entity, normalized, kFuzzy, kSem, strings.Join(parts, ","))
}

// Get returns the cached candidate set for key, if present.
func (c *CandidateCache) Get(ctx context.Context, key string) ([]models.Candidate, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	val, err := c.redis.Get(ctx, key)
	if err != nil {
		metrics.CacheEvents.WithLabelValues("miss").Inc()
		return nil, false
	}

	var candidates []models.Candidate
	if err := json.Unmarshal([]byte(val), &candidates); err != nil {
		metrics.CacheEvents.WithLabelValues("error").Inc()
		c.logger.Warn("cache entry undecodable, ignoring", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}

	metrics.CacheEvents.WithLabelValues("hit").Inc()
	return candidates, true
}

// Put stores the candidate set under key with the configured TTL. Failures
// are logged, never propagated: the cache is an accelerator, not a
// dependency.
func (c *CandidateCache) Put(ctx context.Context, key string, candidates []models.Candidate) {
	if c == nil || c.redis == nil {
		return
	}

	data, err := json.Marshal(candidates)
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, key, data, c.ttl); err != nil {
		metrics.CacheEvents.WithLabelValues("error").Inc()
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
