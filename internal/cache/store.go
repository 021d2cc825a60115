package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bdpipeline/internal/config"
)

// ErrUnavailable is returned by stores that are temporarily refusing calls.
var ErrUnavailable = errors.New("cache unavailable")

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks stores that can be checked. Others always succeed.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// New builds the configured store. Redis is wrapped in a circuit breaker so a
// dead server costs one fast failure per call instead of a dial timeout.
func New(cfg config.CacheConfig, logger *zap.Logger) (Store, func() error, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		addr := strings.TrimSpace(cfg.Redis.Addr)
		if addr == "" {
			return nil, nil, errors.New("cache.redis.addr is empty")
		}
		rs := NewRedisStore(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bs := NewBreakerStore(rs, "coefficient-cache", cfg.Breaker, logger)
		return bs, rs.Close, nil
	default:
		return nil, nil, errors.New("unknown cache backend: " + backend)
	}
}
