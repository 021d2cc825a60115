package probability

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bdpipeline/internal/cache"
	"bdpipeline/internal/metrics"
	"bdpipeline/internal/models"
)

// CoefficientProvider supplies the current coefficient table.
type CoefficientProvider interface {
	Get(ctx context.Context) (Table, error)
	Invalidate(ctx context.Context) error
}

// CoefficientSource is the authoritative store of coefficient rows.
type CoefficientSource interface {
	ListActiveCoefficients(ctx context.Context) ([]models.Coefficient, error)
}

// StaticCoefficients always returns the same table.
type StaticCoefficients struct {
	Table Table
}

func NewStaticCoefficients(rows []models.Coefficient) *StaticCoefficients {
	return &StaticCoefficients{Table: NewTable(rows)}
}

func (s *StaticCoefficients) Get(ctx context.Context) (Table, error) {
	_ = ctx
	if s == nil {
		return Table{}, nil
	}
	return s.Table, nil
}

func (s *StaticCoefficients) Invalidate(ctx context.Context) error {
	_ = ctx
	return nil
}

const (
	defaultCacheKey = "probability:coefficients"
	defaultCacheTTL = time.Hour
)

// CachedCoefficients reads the table through a shared cache store. A miss
// reloads every active row from Source; a failing store degrades to reading
// Source directly.
type CachedCoefficients struct {
	Source  CoefficientSource
	Store   cache.Store
	TTL     time.Duration
	Key     string
	Logger  *zap.Logger
	Metrics *metrics.Registry

	group singleflight.Group
}

func (c *CachedCoefficients) Get(ctx context.Context) (Table, error) {
	storeOK := c.Store != nil
	if storeOK {
		raw, found, err := c.Store.Get(ctx, c.key())
		switch {
		case err != nil:
			storeOK = false
			c.Metrics.ObserveCache("error")
			c.logger().Warn("coefficient cache read failed, loading from database", zap.Error(err))
		case found:
			var t Table
			if err := json.Unmarshal(raw, &t); err != nil {
				c.logger().Warn("coefficient cache entry unreadable, reloading", zap.Error(err))
				break
			}
			c.Metrics.ObserveCache("hit")
			return t, nil
		default:
			c.Metrics.ObserveCache("miss")
		}
	}

	out, err, _ := c.group.Do("load", func() (interface{}, error) {
		return c.load(ctx, storeOK)
	})
	if err != nil {
		return Table{}, err
	}
	return out.(Table), nil
}

func (c *CachedCoefficients) load(ctx context.Context, writeBack bool) (Table, error) {
	rows, err := c.Source.ListActiveCoefficients(ctx)
	if err != nil {
		return Table{}, err
	}
	c.Metrics.ObserveCache("reload")
	t := NewTable(rows)
	if !writeBack {
		return t, nil
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return t, nil
	}
	if err := c.Store.Set(ctx, c.key(), raw, c.ttl()); err != nil {
		c.Metrics.ObserveCache("error")
		c.logger().Warn("coefficient cache write failed", zap.Error(err))
	}
	return t, nil
}

// Invalidate drops the cached snapshot so the next Get reloads.
func (c *CachedCoefficients) Invalidate(ctx context.Context) error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Delete(ctx, c.key())
}

func (c *CachedCoefficients) key() string {
	if c.Key == "" {
		return defaultCacheKey
	}
	return c.Key
}

func (c *CachedCoefficients) ttl() time.Duration {
	if c.TTL <= 0 {
		return defaultCacheTTL
	}
	return c.TTL
}

func (c *CachedCoefficients) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
