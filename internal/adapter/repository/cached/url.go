// Package cached puts the ephemeral cache in front of the durable store.
// Reads are cache-aside, writes go to the store first and then overwrite or
// evict the cache. Cache failures only ever cost a store round trip.
package cached

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const DefaultURLTTL = 30 * 24 * time.Hour

type urlStore interface {
	Save(ctx context.Context, url entity.NewURL) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RecordVisit(ctx context.Context, shortCode string, at time.Time) (*entity.URL, error)
	Update(ctx context.Context, shortCode string, upd entity.URLUpdate) (*entity.URL, error)
	Remove(ctx context.Context, shortCode string) error
	Search(ctx context.Context, s entity.URLSearch) ([]*entity.URL, error)
}

type options struct {
	now func() time.Time
	log *zap.Logger
}

type Option func(*options)

// WithClock overrides the time source used for TTL calculation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) options {
	o := options{
		now: time.Now,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type URLRepository struct {
	store urlStore
	cache *cache.Safe
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

// NewURLRepository returns a repository caching URLs for at most ttl.
// A non-positive ttl selects DefaultURLTTL.
func NewURLRepository(store urlStore, c *cache.Safe, ttl time.Duration, opts ...Option) *URLRepository {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	o := newOptions(opts)

	return &URLRepository{
		store: store,
		cache: c,
		ttl:   ttl,
		now:   o.now,
		log:   o.log.Named("url_repository"),
	}
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.cached.URLRepository.RetrieveByShortCode"

	if res := r.cache.Get(ctx, cache.URLKey(shortCode)); res.OK() {
		url, err := decodeURL(res.Value)
		if err == nil {
			return url, nil
		}

		r.log.Warn("ignoring malformed cache entry", zap.String("short_code", shortCode), zap.Error(err))
	}

	url, err := r.store.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.put(ctx, url)

	return url, nil
}

// Save creates a URL, failing with entity.ErrShortCodeExists if the short code is taken.
func (r *URLRepository) Save(ctx context.Context, newURL entity.NewURL) (*entity.URL, error) {
	const op = "adapter.repository.cached.URLRepository.Save"

	_, err := r.RetrieveByShortCode(ctx, newURL.ShortCode)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	case !errors.Is(err, entity.ErrURLNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := r.store.Save(ctx, newURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.put(ctx, url)

	return url, nil
}

func (r *URLRepository) Update(ctx context.Context, shortCode string, upd entity.URLUpdate) (*entity.URL, error) {
	const op = "adapter.repository.cached.URLRepository.Update"

	url, err := r.store.Update(ctx, shortCode, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.put(ctx, url)

	return url, nil
}

// RecordVisit increments the visit counter in the store and refreshes the cached snapshot.
func (r *URLRepository) RecordVisit(ctx context.Context, shortCode string, at time.Time) (*entity.URL, error) {
	const op = "adapter.repository.cached.URLRepository.RecordVisit"

	url, err := r.store.RecordVisit(ctx, shortCode, at)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.put(ctx, url)

	return url, nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.cached.URLRepository.Remove"

	if err := r.store.Remove(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.cache.Delete(ctx, cache.URLKey(shortCode))

	return nil
}

// Search always reads the store.
func (r *URLRepository) Search(ctx context.Context, s entity.URLSearch) ([]*entity.URL, error) {
	const op = "adapter.repository.cached.URLRepository.Search"

	urls, err := r.store.Search(ctx, s.Normalize())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return urls, nil
}

// ttlFor bounds the cache lifetime of url by its own expiry. Zero means the
// URL must not be cached.
func (r *URLRepository) ttlFor(url *entity.URL) time.Duration {
	ttl := r.ttl

	if url.ExpiresAt != nil {
		remaining := url.ExpiresAt.Sub(r.now())
		if remaining <= 0 {
			return 0
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	return cache.TTL(ttl)
}

func (r *URLRepository) put(ctx context.Context, url *entity.URL) {
	key := cache.URLKey(url.ShortCode)

	ttl := r.ttlFor(url)
	if ttl == 0 {
		r.cache.Delete(ctx, key)
		return
	}

	data, err := encodeURL(url)
	if err != nil {
		r.log.Error("failed to encode url", zap.String("short_code", url.ShortCode), zap.Error(err))
		return
	}

	r.cache.Set(ctx, key, data, ttl)
}
