package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bdpipeline/internal/config"
)

// BreakerStore trips after consecutive backend failures and then fails fast
// with ErrUnavailable until the open timeout elapses.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, name string, cfg config.BreakerConfig, logger *zap.Logger) *BreakerStore {
	failures := cfg.MaxConsecutiveFailures
	if failures == 0 {
		failures = 3
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	st := gobreaker.Settings{Name: name}
	st.Interval = 0
	st.Timeout = timeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		if logger != nil {
			logger.Warn("cache breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

type getResult struct {
	value []byte
	found bool
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		v, found, err := s.next.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: v, found: found}, nil
	})
	if err != nil {
		return nil, false, translate(err)
	}
	res := out.(getResult)
	return res.value, res.found, nil
}

func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Set(ctx, key, value, ttl)
	})
	return translate(err)
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Delete(ctx, key)
	})
	return translate(err)
}

// Ping reports ErrUnavailable while the breaker is open.
func (s *BreakerStore) Ping(ctx context.Context) error {
	if s.cb.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return Ping(ctx, s.next)
}

func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}
