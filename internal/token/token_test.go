package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/cache/cachetest"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type fakeUsers map[string]*entity.User

func (f fakeUsers) RetrieveByUsername(_ context.Context, username string) (*entity.User, error) {
	if u, ok := f[username]; ok {
		return u, nil
	}
	return nil, entity.ErrUserNotFound
}

type failingUsers struct{}

func (failingUsers) RetrieveByUsername(context.Context, string) (*entity.User, error) {
	return nil, errors.New("connection refused")
}

type ManagerTestSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	backend *cachetest.Cache
	manager *Manager
}

func (suite *ManagerTestSuite) SetupSuite() {
	suite.ctx = context.Background()
}

func (suite *ManagerTestSuite) SetupSubTest() {
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	suite.backend = cachetest.New()
	suite.manager = NewManager(
		"secret",
		fakeUsers{"alice": {ID: 1, Username: "alice", IsActive: true}},
		cache.NewSafe(suite.backend, time.Second, zap.NewNop()),
		WithIssuer("shortlink"),
		WithClock(func() time.Time { return suite.now }),
	)
}

func (suite *ManagerTestSuite) TestIssue() {
	suite.Run("caches session with remaining lifetime", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)

		suite.True(tok.ExpiresAt.Equal(suite.now.Add(time.Minute)))

		v, ok := suite.backend.Value(cache.TokenKey(tok.Value))
		suite.True(ok)
		suite.Equal("alice", string(v))

		ttl, _ := suite.backend.TTL(cache.TokenKey(tok.Value))
		suite.GreaterOrEqual(ttl, time.Second)
		suite.LessOrEqual(ttl, time.Minute)
	})

	suite.Run("default lifetime", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", 0)
		suite.Require().NoError(err)

		suite.True(tok.ExpiresAt.Equal(suite.now.Add(DefaultLifetime)))
	})

	suite.Run("sub-second lifetime is cached for one second", func() {
		suite.now = suite.now.Add(300 * time.Millisecond)

		tok, err := suite.manager.Issue(suite.ctx, "alice", 800*time.Millisecond)
		suite.Require().NoError(err)

		ttl, _ := suite.backend.TTL(cache.TokenKey(tok.Value))
		suite.Equal(time.Second, ttl)
	})

	suite.Run("issue succeeds without cache", func() {
		suite.backend.SetFailing(true)

		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)

		suite.NoError(err)
		suite.NotEmpty(tok.Value)
	})
}

func (suite *ManagerTestSuite) TestValidate() {
	suite.Run("valid token", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)

		user, err := suite.manager.Validate(suite.ctx, tok.Value)

		suite.NoError(err)
		suite.Equal("alice", user.Username)
	})

	suite.Run("expired token fails", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", 60*time.Second)
		suite.Require().NoError(err)

		suite.now = suite.now.Add(61 * time.Second)

		user, err := suite.manager.Validate(suite.ctx, tok.Value)

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
		suite.Nil(user)
	})

	suite.Run("recaches missing session entry", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Hour)
		suite.Require().NoError(err)
		suite.Require().NoError(suite.backend.Delete(suite.ctx, cache.TokenKey(tok.Value)))

		suite.now = suite.now.Add(30 * time.Minute)

		_, err = suite.manager.Validate(suite.ctx, tok.Value)
		suite.Require().NoError(err)

		ttl, ok := suite.backend.TTL(cache.TokenKey(tok.Value))
		suite.True(ok)
		suite.Equal(30*time.Minute, ttl)
	})

	suite.Run("unknown subject", func() {
		tok, err := suite.manager.Issue(suite.ctx, "bob", time.Minute)
		suite.Require().NoError(err)

		_, err = suite.manager.Validate(suite.ctx, tok.Value)

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("store failure maps to invalid credentials", func() {
		suite.manager.users = failingUsers{}
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)

		_, err = suite.manager.Validate(suite.ctx, tok.Value)

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("malformed token", func() {
		_, err := suite.manager.Validate(suite.ctx, "not-a-token")

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("foreign signature", func() {
		other := NewManager("other-secret", fakeUsers{}, cache.NewSafe(nil, 0, nil),
			WithClock(func() time.Time { return suite.now }))
		tok, err := other.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)

		_, err = suite.manager.Validate(suite.ctx, tok.Value)

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("missing subject", func() {
		claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(suite.now.Add(time.Minute))}
		value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		suite.Require().NoError(err)

		_, err = suite.manager.Validate(suite.ctx, value)

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("validates without cache", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)
		suite.backend.SetFailing(true)

		user, err := suite.manager.Validate(suite.ctx, tok.Value)

		suite.NoError(err)
		suite.NotNil(user)
	})
}

func (suite *ManagerTestSuite) TestRevoke() {
	suite.Run("revoked token fails validation", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)

		revoked, err := suite.manager.Revoke(suite.ctx, tok.Value)
		suite.Require().NoError(err)
		suite.True(revoked)

		_, ok := suite.backend.Value(cache.TokenKey(tok.Value))
		suite.False(ok)

		_, err = suite.manager.Validate(suite.ctx, tok.Value)
		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("blacklist ttl is remaining lifetime", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", 10*time.Minute)
		suite.Require().NoError(err)

		suite.now = suite.now.Add(4 * time.Minute)

		_, err = suite.manager.Revoke(suite.ctx, tok.Value)
		suite.Require().NoError(err)

		ttl, ok := suite.backend.TTL(cache.BlacklistKey(tok.Value))
		suite.True(ok)
		suite.Equal(6*time.Minute, ttl)
	})

	suite.Run("blacklist ttl floors at one second", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", 10*time.Second)
		suite.Require().NoError(err)

		suite.now = suite.now.Add(9*time.Second + 600*time.Millisecond)

		_, err = suite.manager.Revoke(suite.ctx, tok.Value)
		suite.Require().NoError(err)

		ttl, _ := suite.backend.TTL(cache.BlacklistKey(tok.Value))
		suite.Equal(time.Second, ttl)
	})

	suite.Run("blacklist takes precedence over valid signature", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)
		suite.backend.Put(cache.BlacklistKey(tok.Value), []byte("1"))

		_, err = suite.manager.Validate(suite.ctx, tok.Value)

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("undecodable token", func() {
		revoked, err := suite.manager.Revoke(suite.ctx, "garbage")

		suite.ErrorIs(err, entity.ErrInvalidCredentials)
		suite.False(revoked)
		suite.Zero(suite.backend.Len())
	})

	suite.Run("failed session delete does not block revocation", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)
		suite.backend.FailOn(cachetest.OpDelete)

		revoked, err := suite.manager.Revoke(suite.ctx, tok.Value)
		suite.Require().NoError(err)
		suite.True(revoked)

		_, ok := suite.backend.Value(cache.BlacklistKey(tok.Value))
		suite.True(ok)

		_, err = suite.manager.Validate(suite.ctx, tok.Value)
		suite.ErrorIs(err, entity.ErrInvalidCredentials)
	})

	suite.Run("cache down reports not revoked", func() {
		tok, err := suite.manager.Issue(suite.ctx, "alice", time.Minute)
		suite.Require().NoError(err)
		suite.backend.SetFailing(true)

		revoked, err := suite.manager.Revoke(suite.ctx, tok.Value)

		suite.NoError(err)
		suite.False(revoked)
	})
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
