package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// OBJECT KEY TESTS
// =============================================================================

func TestObjectKeyLayout(t *testing.T) {
	now := time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)
	key := ObjectKey(KindImage, "user-1", "image/jpeg", now)

	parts := strings.Split(key, "/")
	require.Len(t, parts, 5)
	assert.Equal(t, "images", parts[0])
	assert.Equal(t, "2025", parts[1])
	assert.Equal(t, "03", parts[2])
	assert.Equal(t, "user-1", parts[3])
	assert.True(t, strings.HasSuffix(parts[4], ".jpg"))
}

func TestObjectKeyExtensionFollowsContentType(t *testing.T) {
	now := time.Now()
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/webp", ".webp"},
		{"image/gif", ".gif"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.True(t, strings.HasSuffix(ObjectKey(KindImage, "user-1", tt.contentType, now), tt.want))
		})
	}

	key := ObjectKey(KindImage, "user-1", "image/svg+xml", now)
	assert.NotContains(t, key[strings.LastIndex(key, "/"):], ".")
}

func TestKeyOwnedBy(t *testing.T) {
	now := time.Now()
	own := ObjectKey(KindImage, "user-1", "image/png", now)

	tests := []struct {
		name   string
		key    string
		userID string
		want   bool
	}{
		{"own image", own, "user-1", true},
		{"someone else's image", own, "user-2", false},
		{"avatar", ObjectKey(KindAvatar, "user-1", "image/png", now), "user-1", true},
		{"unknown prefix", "audio/2025/01/user-1/x.png", "user-1", false},
		{"traversal", "images/2025/01/user-1/../x.png", "user-1", false},
		{"short key", "images/user-1.png", "user-1", false},
		{"empty user", own, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyOwnedBy(tt.key, tt.userID))
		})
	}
}

// =============================================================================
// MEMORY STORE TESTS
// =============================================================================

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	result, err := store.UploadImage(ctx, []byte("img"), "user-1", KindImage, "trip.webp", "image/webp")
	require.NoError(t, err)
	assert.True(t, store.Has(result.Key))
	assert.Equal(t, int64(3), result.Size)
	assert.True(t, strings.HasPrefix(result.URL, "https://cdn.test/images/"))

	require.NoError(t, store.DeleteFile(ctx, result.Key))
	assert.False(t, store.Has(result.Key))
	assert.Equal(t, []string{result.Key}, store.Deleted)
}
