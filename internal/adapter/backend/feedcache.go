package backend

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Feed is the hazard feed contract the cache decorates.
type Feed interface {
	Fetch(ctx context.Context, src domain.Source) ([]byte, error)
}

// CachedFeed keeps successful feed bodies for a TTL, keyed by source.
// Failures are never cached.
type CachedFeed struct {
	inner   Feed
	ttl     time.Duration
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCachedFeed wraps inner with a TTL cache. A zero ttl disables caching.
func NewCachedFeed(inner Feed, ttl time.Duration, metrics *observability.Metrics) *CachedFeed {
	return &CachedFeed{
		inner:   inner,
		ttl:     ttl,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedFeed) Fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	if c.ttl <= 0 {
		return c.inner.Fetch(ctx, src)
	}

	key := src.Key()
	if v, found := c.cache.Get(key); found {
		c.metrics.FeedCache.WithLabelValues("hit").Inc()
		return v.([]byte), nil
	}
	c.metrics.FeedCache.WithLabelValues("miss").Inc()

	body, err := c.inner.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, body, c.ttl)
	return body, nil
}

// Invalidate drops every cached body so the next fetch goes upstream.
func (c *CachedFeed) Invalidate() {
	c.cache.Flush()
}
