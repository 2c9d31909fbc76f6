package redis

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/vadimbarashkov/shortlink/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/cached"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/sweeper"
	"github.com/vadimbarashkov/shortlink/tests/integration/testenv"
)

type CacheTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *sqlx.DB
	client  *goredis.Client
	backend *redis.Cache
	urlRepo *cached.URLRepository
	sweeper *sweeper.Sweeper
}

func (suite *CacheTestSuite) SetupSuite() {
	testenv.SkipIfShort(suite.T())

	suite.ctx = context.Background()
	suite.db = testenv.Connect(suite.T(), testenv.StartPostgres(suite.T()))

	addr := testenv.StartRedis(suite.T())

	var err error
	suite.backend, err = redis.New(suite.ctx, redis.Options{Addr: addr})
	if err != nil {
		suite.T().Fatalf("Failed to connect to redis: %v", err)
	}
	suite.T().Cleanup(func() {
		suite.backend.Close()
	})

	suite.client = goredis.NewClient(&goredis.Options{Addr: addr})
	suite.T().Cleanup(func() {
		suite.client.Close()
	})

	safe := cache.NewSafe(suite.backend, time.Second, zap.NewNop())
	store := postgres.NewURLRepository(suite.db)

	suite.urlRepo = cached.NewURLRepository(store, safe, cached.DefaultURLTTL)
	suite.sweeper = sweeper.New(store, safe)
}

func (suite *CacheTestSuite) TearDownSubTest() {
	if _, err := suite.db.Exec(`TRUNCATE TABLE urls, users RESTART IDENTITY CASCADE`); err != nil {
		suite.T().Fatalf("Failed to clean tables: %v", err)
	}
	if err := suite.client.FlushDB(suite.ctx).Err(); err != nil {
		suite.T().Fatalf("Failed to flush redis: %v", err)
	}
}

func (suite *CacheTestSuite) TestBackend() {
	suite.Run("miss", func() {
		v, err := suite.backend.Get(suite.ctx, "url:missing")

		suite.ErrorIs(err, cache.ErrMiss)
		suite.Nil(v)
	})

	suite.Run("set with ttl", func() {
		suite.Require().NoError(suite.backend.Set(suite.ctx, "token:abc", []byte("alice"), time.Minute))

		v, err := suite.backend.Get(suite.ctx, "token:abc")
		suite.NoError(err)
		suite.Equal([]byte("alice"), v)

		ttl, err := suite.client.TTL(suite.ctx, "token:abc").Result()
		suite.NoError(err)
		suite.InDelta(time.Minute.Seconds(), ttl.Seconds(), 2)
	})

	suite.Run("delete is idempotent", func() {
		suite.Require().NoError(suite.backend.Set(suite.ctx, "url:a", []byte("1"), time.Minute))

		suite.NoError(suite.backend.Delete(suite.ctx, "url:a", "url:b"))
		suite.NoError(suite.backend.Delete(suite.ctx, "url:a"))

		ok, err := suite.backend.Exists(suite.ctx, "url:a")
		suite.NoError(err)
		suite.False(ok)
	})
}

func (suite *CacheTestSuite) TestCachedURLRepository() {
	suite.Run("write through and self heal", func() {
		_, err := suite.urlRepo.Save(suite.ctx, entity.NewURL{ShortCode: "promo", OriginalURL: "https://example.com"})
		suite.Require().NoError(err)

		ok, err := suite.backend.Exists(suite.ctx, cache.URLKey("promo"))
		suite.Require().NoError(err)
		suite.True(ok)

		suite.Require().NoError(suite.client.Set(suite.ctx, cache.URLKey("promo"), "not json", 0).Err())

		url, err := suite.urlRepo.RetrieveByShortCode(suite.ctx, "promo")
		suite.Require().NoError(err)
		suite.Equal("https://example.com", url.OriginalURL)

		raw, err := suite.client.Get(suite.ctx, cache.URLKey("promo")).Result()
		suite.Require().NoError(err)
		suite.NotEqual("not json", raw)

		_, err = suite.urlRepo.Save(suite.ctx, entity.NewURL{ShortCode: "promo", OriginalURL: "https://other.com"})
		suite.ErrorIs(err, entity.ErrShortCodeExists)
	})

	suite.Run("no negative caching", func() {
		_, err := suite.urlRepo.RetrieveByShortCode(suite.ctx, "ghost")
		suite.ErrorIs(err, entity.ErrURLNotFound)

		ok, err := suite.backend.Exists(suite.ctx, cache.URLKey("ghost"))
		suite.Require().NoError(err)
		suite.False(ok)
	})

	suite.Run("visits through cache and store agree", func() {
		_, err := suite.urlRepo.Save(suite.ctx, entity.NewURL{ShortCode: "abc123", OriginalURL: "https://example.com"})
		suite.Require().NoError(err)

		var last time.Time
		for i := 0; i < 3; i++ {
			last = time.Now().UTC().Truncate(time.Microsecond)
			_, err := suite.urlRepo.RecordVisit(suite.ctx, "abc123", last)
			suite.Require().NoError(err)
		}

		cachedURL, err := suite.urlRepo.RetrieveByShortCode(suite.ctx, "abc123")
		suite.Require().NoError(err)

		storedURL, err := postgres.NewURLRepository(suite.db).RetrieveByShortCode(suite.ctx, "abc123")
		suite.Require().NoError(err)

		for _, url := range []*entity.URL{cachedURL, storedURL} {
			suite.Equal(int64(3), url.Visits)
			suite.Require().NotNil(url.LastVisitedAt)
			suite.True(last.Equal(*url.LastVisitedAt))
		}
	})

	suite.Run("ttl bounded by expiry", func() {
		expiresAt := time.Now().Add(90 * time.Second)

		_, err := suite.urlRepo.Save(suite.ctx, entity.NewURL{
			ShortCode:   "soon",
			OriginalURL: "https://example.com",
			ExpiresAt:   &expiresAt,
		})
		suite.Require().NoError(err)

		ttl, err := suite.client.TTL(suite.ctx, cache.URLKey("soon")).Result()
		suite.Require().NoError(err)
		suite.LessOrEqual(ttl, 90*time.Second)
		suite.Greater(ttl, time.Duration(0))
	})

	suite.Run("sweep evicts cache entries", func() {
		past := time.Now().Add(-time.Minute)

		_, err := suite.db.Exec(
			`INSERT INTO urls (short_code, original_url, expires_at) VALUES ($1, $2, $3)`,
			"stale", "https://example.com", past,
		)
		suite.Require().NoError(err)
		suite.Require().NoError(suite.client.Set(suite.ctx, cache.URLKey("stale"), "{}", time.Hour).Err())

		n, err := suite.sweeper.SweepExpired(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(1, n)

		ok, err := suite.backend.Exists(suite.ctx, cache.URLKey("stale"))
		suite.Require().NoError(err)
		suite.False(ok)

		n, err = suite.sweeper.SweepExpired(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(0, n)
	})
}

func TestCache(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
