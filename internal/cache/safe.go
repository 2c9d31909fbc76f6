package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultOpTimeout = 100 * time.Millisecond

// Result is the outcome of a best-effort cache call.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Miss reports whether the call found nothing under the key.
func (r Result[T]) Miss() bool {
	return errors.Is(r.Err, ErrMiss)
}

// Safe wraps a Cache so that every call is bounded by a timeout and every
// failure is logged and returned as data. It never panics on backend errors
// and never lets them escape as the caller's error.
type Safe struct {
	backend Cache
	timeout time.Duration
	log     *zap.Logger
}

// NewSafe returns a Safe around backend. A nil backend behaves as Noop.
func NewSafe(backend Cache, timeout time.Duration, log *zap.Logger) *Safe {
	if backend == nil {
		backend = Noop{}
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Safe{
		backend: backend,
		timeout: timeout,
		log:     log,
	}
}

func (s *Safe) Get(ctx context.Context, key string) Result[[]byte] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.backend.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrMiss) {
		s.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	return Result[[]byte]{Value: v, Err: err}
}

// Set and Delete detach from the caller's cancellation: once the store has
// been written, an aborted request must not leave the cache behind it.
func (s *Safe) Set(ctx context.Context, key string, value []byte, ttl time.Duration) Result[struct{}] {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.backend.Set(ctx, key, value, ttl)
	if err != nil {
		s.log.Warn("cache set failed", zap.String("key", key), zap.Duration("ttl", ttl), zap.Error(err))
	}

	return Result[struct{}]{Err: err}
}

func (s *Safe) Delete(ctx context.Context, keys ...string) Result[struct{}] {
	if len(keys) == 0 {
		return Result[struct{}]{}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.backend.Delete(ctx, keys...)
	if err != nil {
		s.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}

	return Result[struct{}]{Err: err}
}

func (s *Safe) Exists(ctx context.Context, key string) Result[bool] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.backend.Exists(ctx, key)
	if err != nil {
		s.log.Warn("cache exists failed", zap.String("key", key), zap.Error(err))
	}

	return Result[bool]{Value: ok, Err: err}
}
