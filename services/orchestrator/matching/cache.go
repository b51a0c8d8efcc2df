package matching

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const activeKey = "active"

// CachedCatalog is a read-through cache in front of a Catalog. Failed reads are
// never cached. Concurrent misses share one inner read.
type CachedCatalog struct {
	inner  Catalog
	cache  *cache.Cache
	flight singleflight.Group
}

func NewCachedCatalog(inner Catalog, freshness time.Duration) *CachedCatalog {
	return &CachedCatalog{
		inner: inner,
		cache: cache.New(freshness, 2*freshness),
	}
}

func (c *CachedCatalog) ActiveSchemes(ctx context.Context) ([]models.Scheme, error) {
	if v, ok := c.cache.Get(activeKey); ok {
		return v.([]models.Scheme), nil
	}
	v, err, _ := c.flight.Do(activeKey, func() (interface{}, error) {
		schemes, err := c.inner.ActiveSchemes(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(activeKey, schemes)
		return schemes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Scheme), nil
}

func (c *CachedCatalog) Scheme(ctx context.Context, id string) (models.Scheme, error) {
	if v, ok := c.cache.Get(activeKey); ok {
		for _, s := range v.([]models.Scheme) {
			if s.ID == id {
				return s, nil
			}
		}
	}
	if v, ok := c.cache.Get("scheme:" + id); ok {
		return v.(models.Scheme), nil
	}
	s, err := c.inner.Scheme(ctx, id)
	if err != nil {
		return models.Scheme{}, err
	}
	c.cache.SetDefault("scheme:"+id, s)
	return s, nil
}

// Refresh reloads the active set regardless of freshness.
func (c *CachedCatalog) Refresh(ctx context.Context) (int, error) {
	schemes, err := c.inner.ActiveSchemes(ctx)
	if err != nil {
		return 0, err
	}
	c.cache.Flush()
	c.cache.SetDefault(activeKey, schemes)
	return len(schemes), nil
}

// Invalidate drops everything so the next read goes to the inner catalog.
func (c *CachedCatalog) Invalidate() {
	c.cache.Flush()
}
