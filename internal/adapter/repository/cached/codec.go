package cached

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Timestamps are stored as UTC RFC 3339 strings so that an entry written by one
// process decodes to the same instant in any other.

type urlEntry struct {
	ID            int64   `json:"id"`
	ShortCode     string  `json:"short_code"`
	OriginalURL   string  `json:"original_url"`
	ExpiresAt     *string `json:"expires_at"`
	Visits        int64   `json:"visits"`
	LastVisitedAt *string `json:"last_visited_at"`
	UserID        *int64  `json:"user_id"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type userEntry struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeURL(url *entity.URL) ([]byte, error) {
	return json.Marshal(urlEntry{
		ID:            url.ID,
		ShortCode:     url.ShortCode,
		OriginalURL:   url.OriginalURL,
		ExpiresAt:     formatTimePtr(url.ExpiresAt),
		Visits:        url.Visits,
		LastVisitedAt: formatTimePtr(url.LastVisitedAt),
		UserID:        url.UserID,
		CreatedAt:     formatTime(url.CreatedAt),
		UpdatedAt:     formatTime(url.UpdatedAt),
	})
}

func decodeURL(data []byte) (*entity.URL, error) {
	var e urlEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal url entry: %w", err)
	}

	url := &entity.URL{
		ID:          e.ID,
		ShortCode:   e.ShortCode,
		OriginalURL: e.OriginalURL,
		URLStats:    entity.URLStats{Visits: e.Visits},
		UserID:      e.UserID,
	}

	var err error
	if url.ExpiresAt, err = parseTimePtr(e.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if url.LastVisitedAt, err = parseTimePtr(e.LastVisitedAt); err != nil {
		return nil, fmt.Errorf("failed to parse last_visited_at: %w", err)
	}
	if url.CreatedAt, err = parseTime(e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if url.UpdatedAt, err = parseTime(e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return url, nil
}

func encodeUser(user *entity.User) ([]byte, error) {
	return json.Marshal(userEntry{
		ID:           user.ID,
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
		CreatedAt:    formatTime(user.CreatedAt),
		UpdatedAt:    formatTime(user.UpdatedAt),
	})
}

func decodeUser(data []byte) (*entity.User, error) {
	var e userEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user entry: %w", err)
	}

	user := &entity.User{
		ID:           e.ID,
		Email:        e.Email,
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		IsActive:     e.IsActive,
	}

	var err error
	if user.CreatedAt, err = parseTime(e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return user, nil
}
