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

const urlColumns = `id, short_code, original_url, expires_at, visits, last_visited_at, user_id, created_at, updated_at`

type urlDB struct {
	ID            int64      `db:"id"`
	ShortCode     string     `db:"short_code"`
	OriginalURL   string     `db:"original_url"`
	ExpiresAt     *time.Time `db:"expires_at"`
	Visits        int64      `db:"visits"`
	LastVisitedAt *time.Time `db:"last_visited_at"`
	UserID        *int64     `db:"user_id"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		ExpiresAt:   u.ExpiresAt,
		URLStats: entity.URLStats{
			Visits:        u.Visits,
			LastVisitedAt: u.LastVisitedAt,
		},
		UserID:    u.UserID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Save(ctx context.Context, url entity.NewURL) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url, expires_at, user_id) VALUES ($1, $2, $3, $4)
RETURNING ` + urlColumns

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, url.ShortCode, url.OriginalURL, url.ExpiresAt, url.UserID); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE short_code = $1`

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

// RecordVisit atomically increments the visit counter and stamps the visit time.
func (r *URLRepository) RecordVisit(ctx context.Context, shortCode string, at time.Time) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RecordVisit"
	const query = `UPDATE urls SET visits = visits + 1, last_visited_at = $1 WHERE short_code = $2
RETURNING ` + urlColumns

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, at, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to record visit in urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

// Update writes only the fields present in upd. An empty update returns the current row.
func (r *URLRepository) Update(ctx context.Context, shortCode string, upd entity.URLUpdate) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Update"

	if upd.IsEmpty() {
		url, err := r.RetrieveByShortCode(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return url, nil
	}

	b := psql.Update("urls").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"short_code": shortCode}).
		Suffix("RETURNING " + urlColumns)

	if v, ok := upd.OriginalURL.Get(); ok {
		b = b.Set("original_url", v)
	}
	if v, ok := upd.ExpiresAt.Get(); ok {
		b = b.Set("expires_at", v)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	return row.toEntity(), nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.postgres.URLRepository.Remove"
	const query = `DELETE FROM urls WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

// Search returns URLs whose destination contains the query, case-insensitively, newest first.
func (r *URLRepository) Search(ctx context.Context, s entity.URLSearch) ([]*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Search"

	s = s.Normalize()

	query, args, err := psql.Select(urlColumns).
		From("urls").
		Where(sq.ILike{"original_url": containsPattern(s.Query)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(s.Limit)).
		Offset(uint64(s.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	urls := make([]*entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, rows[i].toEntity())
	}

	return urls, nil
}

// RemoveExpired deletes URLs whose expiry is at or before now and returns their short codes.
func (r *URLRepository) RemoveExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "adapter.repository.postgres.URLRepository.RemoveExpired"

	codes, err := r.removeWhere(ctx, sq.And{
		sq.NotEq{"expires_at": nil},
		sq.LtOrEq{"expires_at": now},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

// RemoveInactive deletes URLs not visited since cutoff. Never visited URLs
// are judged by their creation time.
func (r *URLRepository) RemoveInactive(ctx context.Context, cutoff time.Time) ([]string, error) {
	const op = "adapter.repository.postgres.URLRepository.RemoveInactive"

	codes, err := r.removeWhere(ctx, sq.Or{
		sq.LtOrEq{"last_visited_at": cutoff},
		sq.And{
			sq.Eq{"last_visited_at": nil},
			sq.LtOrEq{"created_at": cutoff},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

func (r *URLRepository) removeWhere(ctx context.Context, pred sq.Sqlizer) ([]string, error) {
	query, args, err := psql.Delete("urls").
		Where(pred).
		Suffix("RETURNING short_code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	codes := []string{}

	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to delete from urls table: %w", err)
	}

	return codes, nil
}
