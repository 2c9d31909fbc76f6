// Package app wires configuration, storage, cache and delivery into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/shortlink/internal/adapter/cache/memory"
	"github.com/vadimbarashkov/shortlink/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/cached"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/sweeper"
	"github.com/vadimbarashkov/shortlink/internal/token"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/password"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgconn "github.com/vadimbarashkov/shortlink/pkg/postgres"
)

const (
	migrationsPath      = "file://migrations"
	memoryCleanupPeriod = 10 * time.Minute
	shutdownGracePeriod = 10 * time.Second
)

// components are the pieces shared by the server and the cleanup command.
type components struct {
	db       *sqlx.DB
	cache    *cache.Safe
	urlRepo  *cached.URLRepository
	userRepo *cached.UserRepository
	sweeper  *sweeper.Sweeper
	closers  []func() error
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*components, error) {
	const op = "app.build"

	db, err := pgconn.New(
		ctx,
		cfg.Postgres.DSN(),
		pgconn.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgconn.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgconn.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgconn.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		pgconn.WithConnectRetries(cfg.Postgres.ConnectRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	c := &components{db: db}
	c.closers = append(c.closers, db.Close)

	backend, closeBackend := newCacheBackend(ctx, cfg, log)
	if closeBackend != nil {
		c.closers = append(c.closers, closeBackend)
	}

	c.cache = cache.NewSafe(backend, cfg.Cache.OpTimeout, log)

	c.urlRepo = cached.NewURLRepository(
		postgres.NewURLRepository(db),
		c.cache,
		cfg.Cache.URLTTL,
		cached.WithLogger(log),
	)
	c.userRepo = cached.NewUserRepository(
		postgres.NewUserRepository(db),
		c.cache,
		cfg.Cache.UserTTL,
		cached.WithLogger(log),
	)
	c.sweeper = sweeper.New(postgres.NewURLRepository(db), c.cache, sweeper.WithLogger(log))

	return c, nil
}

// newCacheBackend selects the cache backend. An unreachable Redis degrades to
// running without a cache rather than failing startup.
func newCacheBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.Cache, func() error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		rc, err := redis.New(ctx, redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, running without cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			return cache.Noop{}, nil
		}
		log.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
		return rc, rc.Close
	case config.CacheMemory:
		log.Info("using in-memory cache")
		return memory.New(memoryCleanupPeriod), nil
	default:
		log.Info("cache disabled")
		return cache.Noop{}, nil
	}
}

func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	const op = "app.Run"

	c, err := build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer c.Close()

	status, err := pgconn.RunMigrations(migrationsPath, cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}
	log.Info("database schema ready", zap.Uint("version", status.Version), zap.Bool("applied", status.Applied))

	tokens := token.NewManager(
		cfg.JWT.Secret,
		c.userRepo,
		c.cache,
		token.WithIssuer(cfg.JWT.Issuer),
		token.WithLogger(log),
	)

	urlUseCase := usecase.NewURLUseCase(c.urlRepo, usecase.WithShortCodeLength(cfg.ShortCodeLength))
	authUseCase := usecase.NewAuthUseCase(c.userRepo, tokens, password.NewHasher(password.DefaultCost), cfg.JWT.AccessTokenTTL)

	httpLogger := httplog.NewLogger("shortlink", httplog.Options{
		JSON:    cfg.Env != config.EnvDev,
		Concise: cfg.Env == config.EnvDev,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(httpLogger, urlUseCase, authUseCase),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		log.Info("starting server", zap.String("addr", server.Addr), zap.String("env", cfg.Env))

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		log.Info("server stopped")
		return nil
	})

	if cfg.Cleanup.Enabled {
		scheduler := sweeper.NewScheduler(c.sweeper, schedulerConfig(cfg), log)

		g.Go(func() error {
			return scheduler.Start(ctx)
		})
	}

	return g.Wait()
}

// RunCleanup performs a single pass of both sweeps.
func RunCleanup(ctx context.Context, cfg *config.Config, log *zap.Logger) (sweeper.Report, error) {
	const op = "app.RunCleanup"

	c, err := build(ctx, cfg, log)
	if err != nil {
		return sweeper.Report{}, fmt.Errorf("%s: %w", op, err)
	}
	defer c.Close()

	report, err := sweeper.NewScheduler(c.sweeper, schedulerConfig(cfg), log).RunOnce(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	return report, nil
}

func schedulerConfig(cfg *config.Config) sweeper.SchedulerConfig {
	return sweeper.SchedulerConfig{
		Schedule:     cfg.Cleanup.Schedule,
		InactiveDays: cfg.Cleanup.InactiveDays,
		Timeout:      cfg.Cleanup.Timeout,
		RunOnStart:   cfg.Cleanup.RunOnStart,
	}
}
