// Package cache defines the ephemeral key/value capability used in front of the
// durable store, the key namespace shared by its users, and Safe, the failure
// boundary that keeps cache outages away from callers.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with per-key expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

func URLKey(shortCode string) string {
	return "url:" + shortCode
}

func UserEmailKey(email string) string {
	return "user:email:" + email
}

func UserUsernameKey(username string) string {
	return "user:username:" + username
}

func TokenKey(token string) string {
	return "token:" + token
}

func BlacklistKey(token string) string {
	return "blacklist:token:" + token
}

// TTL floors d to whole seconds, never going below one second.
func TTL(d time.Duration) time.Duration {
	d = d.Truncate(time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// Noop is a Cache that stores nothing. Every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (Noop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Noop) Delete(context.Context, ...string) error {
	return nil
}

func (Noop) Exists(context.Context, string) (bool, error) {
	return false, nil
}
