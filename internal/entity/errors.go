package entity

import "errors"

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a URL is past its expiry but has not been swept yet.
	ErrURLExpired = errors.New("url expired")
	// ErrExpiryInPast is returned when a URL is created or updated with an expiry that already passed.
	ErrExpiryInPast = errors.New("expiry is in the past")

	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already registered")
	ErrUsernameExists = errors.New("username already taken")
	ErrInactiveUser   = errors.New("inactive user")

	// ErrInvalidCredentials covers every authentication failure: bad password,
	// malformed, expired or revoked tokens and tokens of unknown users.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
