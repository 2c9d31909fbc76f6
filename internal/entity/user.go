package entity

import "time"

// User represents a registered account. Email and Username are unique and never change.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser describes a user to be created.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
}

// UserUpdate is a partial update of a user.
type UserUpdate struct {
	PasswordHash Optional[string]
	IsActive     Optional[bool]
}

// IsEmpty reports whether the update carries no fields.
func (u UserUpdate) IsEmpty() bool {
	return !u.PasswordHash.IsSet() && !u.IsActive.IsSet()
}

// Token is an issued session token and its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}
