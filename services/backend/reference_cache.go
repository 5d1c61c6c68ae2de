package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const referenceCachePrefix = "reference:"

// CachedReferenceSource keeps reference lists in Redis so every new wizard does not
// hit the backend. Cache failures fall through to the wrapped source.
type CachedReferenceSource struct {
	next   ReferenceSource
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedReferenceSource wraps next with a Redis cache.
func NewCachedReferenceSource(next ReferenceSource, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedReferenceSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedReferenceSource{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedReferenceSource) Categories(ctx context.Context) ([]RawRecord, error) {
	return c.cached(ctx, "categories", c.next.Categories)
}

func (c *CachedReferenceSource) ExperienceLevels(ctx context.Context) ([]RawRecord, error) {
	return c.cached(ctx, "experience_levels", c.next.ExperienceLevels)
}

func (c *CachedReferenceSource) Countries(ctx context.Context) ([]RawRecord, error) {
	return c.cached(ctx, "countries", c.next.Countries)
}

func (c *CachedReferenceSource) cached(ctx context.Context, name string, fetch func(context.Context) ([]RawRecord, error)) ([]RawRecord, error) {
	key := referenceCachePrefix + name
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var records []RawRecord
		if err := json.Unmarshal(data, &records); err == nil {
			return records, nil
		}
		c.logger.Warn("reference cache: dropping unreadable entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("reference cache: read failed", zap.String("key", key), zap.Error(err))
	}

	records, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(records); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("reference cache: write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return records, nil
}
