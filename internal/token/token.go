// Package token issues, validates and revokes signed session tokens.
//
// Issued tokens are cached under token:<value> for their remaining lifetime.
// Revocation drops that entry and writes blacklist:token:<value>, which
// validation consults before anything else. All cache traffic is best effort:
// with the cache down, tokens still validate through signature and store
// lookups, and revocation does not stick.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const DefaultLifetime = 15 * time.Minute

var errMissingSubject = errors.New("token has no subject")

type userRepository interface {
	RetrieveByUsername(ctx context.Context, username string) (*entity.User, error)
}

type Manager struct {
	secret []byte
	issuer string
	users  userRepository
	cache  *cache.Safe
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Manager)

func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

func NewManager(secret string, users userRepository, c *cache.Safe, opts ...Option) *Manager {
	m := &Manager{
		secret: []byte(secret),
		users:  users,
		cache:  c,
		now:    time.Now,
		log:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.log = m.log.Named("token")

	return m
}

// Issue signs a token for subject valid for lifetime. A non-positive lifetime selects DefaultLifetime.
func (m *Manager) Issue(ctx context.Context, subject string, lifetime time.Duration) (*entity.Token, error) {
	const op = "token.Manager.Issue"

	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	now := m.now()
	exp := jwt.NewNumericDate(now.Add(lifetime))

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: exp,
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to sign token: %w", op, err)
	}

	m.cache.Set(ctx, cache.TokenKey(value), []byte(subject), cache.TTL(exp.Sub(now)))

	return &entity.Token{Value: value, ExpiresAt: exp.Time}, nil
}

// Validate resolves a token to its user. Every failure is reported as
// entity.ErrInvalidCredentials.
func (m *Manager) Validate(ctx context.Context, value string) (*entity.User, error) {
	const op = "token.Manager.Validate"

	if res := m.cache.Exists(ctx, cache.BlacklistKey(value)); res.OK() && res.Value {
		return nil, fmt.Errorf("%s: token revoked: %w", op, entity.ErrInvalidCredentials)
	}

	claims, err := m.parse(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrInvalidCredentials, err)
	}

	user, err := m.users.RetrieveByUsername(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, entity.ErrUserNotFound) {
			m.log.Error("failed to resolve token subject", zap.String("subject", claims.Subject), zap.Error(err))
		}
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidCredentials)
	}

	key := cache.TokenKey(value)
	if res := m.cache.Exists(ctx, key); res.OK() && !res.Value {
		m.cache.Set(ctx, key, []byte(claims.Subject), cache.TTL(claims.ExpiresAt.Sub(m.now())))
	}

	return user, nil
}

// Revoke ends a session. The session entry is dropped unconditionally; the
// blacklist entry is written only if the token decodes. The returned flag
// reports whether the blacklist entry was written.
func (m *Manager) Revoke(ctx context.Context, value string) (bool, error) {
	const op = "token.Manager.Revoke"

	m.cache.Delete(ctx, cache.TokenKey(value))

	claims, err := m.parse(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, entity.ErrInvalidCredentials, err)
	}

	ttl := cache.TTL(claims.ExpiresAt.Sub(m.now()))

	return m.cache.Set(ctx, cache.BlacklistKey(value), []byte("1"), ttl).OK(), nil
}

func (m *Manager) parse(value string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, errMissingSubject
	}

	return &claims, nil
}
