package cached

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func TestURLCodec(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	created := time.Date(2024, 5, 1, 15, 0, 0, 123456789, loc)
	visited := created.Add(time.Hour)
	userID := int64(9)

	data, err := encodeURL(&entity.URL{
		ID:          1,
		ShortCode:   "abc123",
		OriginalURL: "https://example.com",
		URLStats:    entity.URLStats{Visits: 2, LastVisitedAt: &visited},
		UserID:      &userID,
		CreatedAt:   created,
		UpdatedAt:   created,
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":"2024-05-01T12:00:00.123456789Z"`)
	assert.Contains(t, string(data), `"expires_at":null`)

	url, err := decodeURL(data)
	require.NoError(t, err)
	assert.True(t, url.CreatedAt.Equal(created))
	assert.True(t, url.LastVisitedAt.Equal(visited))
	assert.Nil(t, url.ExpiresAt)
	assert.Equal(t, int64(2), url.Visits)
	assert.Equal(t, &userID, url.UserID)
}

func TestDecodeURL_Malformed(t *testing.T) {
	_, err := decodeURL([]byte(`{"created_at":"yesterday"}`))
	assert.Error(t, err)

	_, err = decodeURL([]byte(`[]`))
	assert.Error(t, err)
}

func TestUserCodec(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	data, err := encodeUser(&entity.User{
		ID:           3,
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "hash",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	user, err := decodeUser(data)
	require.NoError(t, err)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.True(t, user.IsActive)
	assert.True(t, user.CreatedAt.Equal(now))
}
