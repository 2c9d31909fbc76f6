package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	DefaultShortCodeLength = 6
	shortCodeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxRetries             = 5
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

type urlRepository interface {
	Save(ctx context.Context, url entity.NewURL) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RecordVisit(ctx context.Context, shortCode string, at time.Time) (*entity.URL, error)
	Update(ctx context.Context, shortCode string, upd entity.URLUpdate) (*entity.URL, error)
	Remove(ctx context.Context, shortCode string) error
	Search(ctx context.Context, s entity.URLSearch) ([]*entity.URL, error)
}

type URLUseCase struct {
	shortCodeLength int
	urlRepo         urlRepository
	now             func() time.Time
}

type URLOption func(*URLUseCase)

func WithShortCodeLength(n int) URLOption {
	return func(uc *URLUseCase) {
		uc.shortCodeLength = n
	}
}

func WithURLClock(now func() time.Time) URLOption {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

func NewURLUseCase(urlRepo urlRepository, opts ...URLOption) *URLUseCase {
	uc := &URLUseCase{
		shortCodeLength: DefaultShortCodeLength,
		urlRepo:         urlRepo,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL stores a new URL. A non-empty url.ShortCode is used as a custom
// alias and fails with entity.ErrShortCodeExists if taken; otherwise a code is
// generated, growing by one character after each collision.
func (uc *URLUseCase) ShortenURL(ctx context.Context, url entity.NewURL) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if url.ExpiresAt != nil && !url.ExpiresAt.After(uc.now()) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrExpiryInPast)
	}

	if url.ShortCode != "" {
		saved, err := uc.urlRepo.Save(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to save custom alias: %w", op, err)
		}

		return saved, nil
	}

	length := uc.shortCodeLength

	for i := 0; i < maxRetries; i++ {
		shortCode, err := gonanoid.Generate(shortCodeAlphabet, length)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url.ShortCode = shortCode

		saved, err := uc.urlRepo.Save(ctx, url)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				length++
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return saved, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveShortCode returns the URL behind shortCode and records the visit.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	now := uc.now()

	if url.IsExpired(now) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	url, err = uc.urlRepo.RecordVisit(ctx, shortCode, now)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) ModifyURL(ctx context.Context, shortCode string, upd entity.URLUpdate) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ModifyURL"

	if exp, ok := upd.ExpiresAt.Get(); ok && exp != nil && !exp.After(uc.now()) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrExpiryInPast)
	}

	url, err := uc.urlRepo.Update(ctx, shortCode, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) DeactivateURL(ctx context.Context, shortCode string) error {
	const op = "usecase.URLUseCase.DeactivateURL"

	err := uc.urlRepo.Remove(ctx, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	return nil
}

func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) SearchURLs(ctx context.Context, s entity.URLSearch) ([]*entity.URL, error) {
	const op = "usecase.URLUseCase.SearchURLs"

	urls, err := uc.urlRepo.Search(ctx, s.Normalize())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to search urls: %w", op, err)
	}

	return urls, nil
}
