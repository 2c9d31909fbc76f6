package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const DefaultAccessTokenTTL = 30 * time.Minute

type userRepository interface {
	Save(ctx context.Context, user entity.NewUser) (*entity.User, error)
	RetrieveByEmail(ctx context.Context, email string) (*entity.User, error)
	RetrieveByUsername(ctx context.Context, username string) (*entity.User, error)
	Update(ctx context.Context, id int64, upd entity.UserUpdate) (*entity.User, error)
}

type tokenManager interface {
	Issue(ctx context.Context, subject string, lifetime time.Duration) (*entity.Token, error)
	Validate(ctx context.Context, value string) (*entity.User, error)
	Revoke(ctx context.Context, value string) (bool, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// ProfileUpdate is a partial update of the caller's own account.
type ProfileUpdate struct {
	Password entity.Optional[string]
	IsActive entity.Optional[bool]
}

type AuthUseCase struct {
	userRepo       userRepository
	tokens         tokenManager
	hasher         passwordHasher
	accessTokenTTL time.Duration
}

func NewAuthUseCase(userRepo userRepository, tokens tokenManager, hasher passwordHasher, accessTokenTTL time.Duration) *AuthUseCase {
	if accessTokenTTL <= 0 {
		accessTokenTTL = DefaultAccessTokenTTL
	}

	return &AuthUseCase{
		userRepo:       userRepo,
		tokens:         tokens,
		hasher:         hasher,
		accessTokenTTL: accessTokenTTL,
	}
}

func (uc *AuthUseCase) Register(ctx context.Context, email, username, password string) (*entity.User, error) {
	const op = "usecase.AuthUseCase.Register"

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := uc.userRepo.Save(ctx, entity.NewUser{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to register user: %w", op, err)
	}

	return user, nil
}

// Login checks the password of the user identified by login, an email or a
// username, and issues an access token.
func (uc *AuthUseCase) Login(ctx context.Context, login, password string) (*entity.Token, error) {
	const op = "usecase.AuthUseCase.Login"

	var (
		user *entity.User
		err  error
	)

	if strings.Contains(login, "@") {
		user, err = uc.userRepo.RetrieveByEmail(ctx, login)
	} else {
		user, err = uc.userRepo.RetrieveByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, entity.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: failed to retrieve user: %w", op, err)
	}

	if !uc.hasher.Compare(user.PasswordHash, password) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidCredentials)
	}

	tok, err := uc.tokens.Issue(ctx, user.Username, uc.accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to issue token: %w", op, err)
	}

	return tok, nil
}

// Authenticate resolves a bearer token to an active user.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*entity.User, error) {
	const op = "usecase.AuthUseCase.Authenticate"

	user, err := uc.tokens.Validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInactiveUser)
	}

	return user, nil
}

func (uc *AuthUseCase) Logout(ctx context.Context, token string) error {
	const op = "usecase.AuthUseCase.Logout"

	if _, err := uc.tokens.Revoke(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (uc *AuthUseCase) UpdateProfile(ctx context.Context, user *entity.User, upd ProfileUpdate) (*entity.User, error) {
	const op = "usecase.AuthUseCase.UpdateProfile"

	var userUpd entity.UserUpdate

	if password, ok := upd.Password.Get(); ok {
		hash, err := uc.hasher.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
		userUpd.PasswordHash = entity.Some(hash)
	}
	userUpd.IsActive = upd.IsActive

	updated, err := uc.userRepo.Update(ctx, user.ID, userUpd)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update user: %w", op, err)
	}

	return updated, nil
}
