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

const DefaultUserTTL = time.Hour

type userStore interface {
	Save(ctx context.Context, user entity.NewUser) (*entity.User, error)
	RetrieveByEmail(ctx context.Context, email string) (*entity.User, error)
	RetrieveByUsername(ctx context.Context, username string) (*entity.User, error)
	Update(ctx context.Context, id int64, upd entity.UserUpdate) (*entity.User, error)
}

// UserRepository caches users under both their email and their username.
// Entries include the password hash, so a hit is a complete record.
type UserRepository struct {
	store userStore
	cache *cache.Safe
	ttl   time.Duration
	log   *zap.Logger
}

func NewUserRepository(store userStore, c *cache.Safe, ttl time.Duration, opts ...Option) *UserRepository {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}

	o := newOptions(opts)

	return &UserRepository{
		store: store,
		cache: c,
		ttl:   cache.TTL(ttl),
		log:   o.log.Named("user_repository"),
	}
}

func (r *UserRepository) RetrieveByEmail(ctx context.Context, email string) (*entity.User, error) {
	const op = "adapter.repository.cached.UserRepository.RetrieveByEmail"

	user, err := r.retrieve(ctx, cache.UserEmailKey(email), func() (*entity.User, error) {
		return r.store.RetrieveByEmail(ctx, email)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (r *UserRepository) RetrieveByUsername(ctx context.Context, username string) (*entity.User, error) {
	const op = "adapter.repository.cached.UserRepository.RetrieveByUsername"

	user, err := r.retrieve(ctx, cache.UserUsernameKey(username), func() (*entity.User, error) {
		return r.store.RetrieveByUsername(ctx, username)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (r *UserRepository) retrieve(ctx context.Context, key string, load func() (*entity.User, error)) (*entity.User, error) {
	if res := r.cache.Get(ctx, key); res.OK() {
		user, err := decodeUser(res.Value)
		if err == nil {
			return user, nil
		}

		r.log.Warn("ignoring malformed cache entry", zap.String("key", key), zap.Error(err))
	}

	user, err := load()
	if err != nil {
		return nil, err
	}

	r.put(ctx, user)

	return user, nil
}

// Save creates a user, failing with entity.ErrEmailExists or entity.ErrUsernameExists.
func (r *UserRepository) Save(ctx context.Context, newUser entity.NewUser) (*entity.User, error) {
	const op = "adapter.repository.cached.UserRepository.Save"

	if err := r.ensureAbsent(ctx, r.RetrieveByEmail, newUser.Email, entity.ErrEmailExists); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.ensureAbsent(ctx, r.RetrieveByUsername, newUser.Username, entity.ErrUsernameExists); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := r.store.Save(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.put(ctx, user)

	return user, nil
}

func (r *UserRepository) ensureAbsent(
	ctx context.Context,
	retrieve func(context.Context, string) (*entity.User, error),
	key string,
	errExists error,
) error {
	_, err := retrieve(ctx, key)
	switch {
	case err == nil:
		return errExists
	case errors.Is(err, entity.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func (r *UserRepository) Update(ctx context.Context, id int64, upd entity.UserUpdate) (*entity.User, error) {
	const op = "adapter.repository.cached.UserRepository.Update"

	user, err := r.store.Update(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.put(ctx, user)

	return user, nil
}

// Invalidate drops every cache entry of user.
func (r *UserRepository) Invalidate(ctx context.Context, user *entity.User) {
	r.cache.Delete(ctx, cache.UserEmailKey(user.Email), cache.UserUsernameKey(user.Username))
}

func (r *UserRepository) put(ctx context.Context, user *entity.User) {
	data, err := encodeUser(user)
	if err != nil {
		r.log.Error("failed to encode user", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}

	r.cache.Set(ctx, cache.UserEmailKey(user.Email), data, r.ttl)
	r.cache.Set(ctx, cache.UserUsernameKey(user.Username), data, r.ttl)
}
