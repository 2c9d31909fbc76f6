// Package sweeper removes expired and long-unvisited URLs from the store and
// the cache. Sweeps are idempotent and safe to run next to live traffic.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vadimbarashkov/shortlink/internal/cache"
)

type urlStore interface {
	RemoveExpired(ctx context.Context, now time.Time) ([]string, error)
	RemoveInactive(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Sweeper struct {
	store urlStore
	cache *cache.Safe
	now   func() time.Time
	log   *zap.Logger
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Sweeper) {
		s.log = log
	}
}

func New(store urlStore, c *cache.Safe, opts ...Option) *Sweeper {
	s := &Sweeper{
		store: store,
		cache: c,
		now:   time.Now,
		log:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.Named("sweeper")

	return s
}

// SweepExpired removes every URL whose expiry has passed and returns how many were removed.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	const op = "sweeper.Sweeper.SweepExpired"

	codes, err := s.store.RemoveExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.evict(ctx, codes)
	s.log.Info("expired urls removed", zap.Int("count", len(codes)))

	return len(codes), nil
}

// SweepInactive removes every URL not visited within the last days days.
// URLs never visited are judged by their creation time.
func (s *Sweeper) SweepInactive(ctx context.Context, days int) (int, error) {
	const op = "sweeper.Sweeper.SweepInactive"

	if days < 0 {
		return 0, fmt.Errorf("%s: negative threshold %d", op, days)
	}

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	codes, err := s.store.RemoveInactive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.evict(ctx, codes)
	s.log.Info("inactive urls removed", zap.Int("count", len(codes)), zap.Int("threshold_days", days))

	return len(codes), nil
}

// evict drops cache entries one by one so that a single failure does not keep the rest.
func (s *Sweeper) evict(ctx context.Context, codes []string) {
	for _, code := range codes {
		s.cache.Delete(ctx, cache.URLKey(code))
	}
}
