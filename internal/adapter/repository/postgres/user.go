package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const userColumns = `id, email, username, password_hash, is_active, created_at, updated_at`

type userDB struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *userDB) toEntity() *entity.User {
	return &entity.User{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Save(ctx context.Context, user entity.NewUser) (*entity.User, error) {
	const op = "adapter.repository.postgres.UserRepository.Save"
	const query = `INSERT INTO users(email, username, password_hash) VALUES ($1, $2, $3)
RETURNING ` + userColumns

	var row userDB

	if err := r.db.GetContext(ctx, &row, query, user.Email, user.Username, user.PasswordHash); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == usersUsernameKey {
				return nil, fmt.Errorf("%s: %w", op, entity.ErrUsernameExists)
			}
			return nil, fmt.Errorf("%s: %w", op, entity.ErrEmailExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into users table: %w", op, err)
	}

	return row.toEntity(), nil
}

func (r *UserRepository) RetrieveByEmail(ctx context.Context, email string) (*entity.User, error) {
	const op = "adapter.repository.postgres.UserRepository.RetrieveByEmail"

	user, err := r.retrieveBy(ctx, "email", email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (r *UserRepository) RetrieveByUsername(ctx context.Context, username string) (*entity.User, error) {
	const op = "adapter.repository.postgres.UserRepository.RetrieveByUsername"

	user, err := r.retrieveBy(ctx, "username", username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (r *UserRepository) retrieveBy(ctx context.Context, column, value string) (*entity.User, error) {
	query, args, err := psql.Select(userColumns).
		From("users").
		Where(sq.Eq{column: value}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var row userDB

	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to get row from users table: %w", err)
	}

	return row.toEntity(), nil
}

// Update writes only the fields present in upd. An empty update returns the current row.
func (r *UserRepository) Update(ctx context.Context, id int64, upd entity.UserUpdate) (*entity.User, error) {
	const op = "adapter.repository.postgres.UserRepository.Update"

	var b sq.Sqlizer

	if upd.IsEmpty() {
		b = psql.Select(userColumns).From("users").Where(sq.Eq{"id": id})
	} else {
		ub := psql.Update("users").
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING " + userColumns)

		if v, ok := upd.PasswordHash.Get(); ok {
			ub = ub.Set("password_hash", v)
		}
		if v, ok := upd.IsActive.Get(); ok {
			ub = ub.Set("is_active", v)
		}

		b = ub
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var row userDB

	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update users table row: %w", op, err)
	}

	return row.toEntity(), nil
}
