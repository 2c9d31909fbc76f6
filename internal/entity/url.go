// Package entity defines the entities and errors used in the application.
// It includes the URL and User records, their partial update descriptors,
// and the sentinel errors shared by every layer.
package entity

import (
	"time"
)

// URL represents a shortened URL.
type URL struct {
	ID          int64      // ID is the unique identifier of the URL in the database.
	ShortCode   string     // ShortCode is the code used to resolve the original URL. Immutable.
	OriginalURL string     // OriginalURL is the full URL that the short code resolves to.
	ExpiresAt   *time.Time // ExpiresAt is the moment after which the URL is no longer served. Nil means never.
	URLStats               // URLStats contains visit statistics of the URL.
	UserID      *int64     // UserID is the owner of the URL, if any.
	CreatedAt   time.Time  // CreatedAt is the timestamp when the URL was created.
	UpdatedAt   time.Time  // UpdatedAt is the timestamp when the URL was last updated.
}

// URLStats contains statistics related to a shortened URL.
type URLStats struct {
	Visits        int64      // Visits is the number of times the shortened URL has been resolved.
	LastVisitedAt *time.Time // LastVisitedAt is the time of the latest visit.
}

// IsExpired reports whether the URL has an expiry at or before now.
func (u *URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}

// NewURL describes a URL to be created.
type NewURL struct {
	ShortCode   string
	OriginalURL string
	ExpiresAt   *time.Time
	UserID      *int64
}

// URLUpdate is a partial update of a URL. Only present fields are written.
// A present ExpiresAt holding nil clears the expiry.
type URLUpdate struct {
	OriginalURL Optional[string]
	ExpiresAt   Optional[*time.Time]
}

// IsEmpty reports whether the update carries no fields.
func (u URLUpdate) IsEmpty() bool {
	return !u.OriginalURL.IsSet() && !u.ExpiresAt.IsSet()
}

// URLSearch holds the parameters of a destination search.
type URLSearch struct {
	Query  string
	Limit  int
	Offset int
}

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Normalize clamps the limit to [1, MaxSearchLimit] and the offset to be non-negative.
// A zero limit selects DefaultSearchLimit.
func (s URLSearch) Normalize() URLSearch {
	switch {
	case s.Limit == 0:
		s.Limit = DefaultSearchLimit
	case s.Limit < 1:
		s.Limit = 1
	case s.Limit > MaxSearchLimit:
		s.Limit = MaxSearchLimit
	}

	if s.Offset < 0 {
		s.Offset = 0
	}

	return s
}
