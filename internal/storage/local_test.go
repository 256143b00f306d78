package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
)

func TestLocalStorage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	url, err := s.Put(ctx, "products/p1/a.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/products/p1/a.jpg", url)

	ok, err := s.Exists(ctx, "products/p1/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, "products/p1/a.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg", string(data))

	require.NoError(t, s.Delete(ctx, "products/p1/a.jpg"))
	require.NoError(t, s.Delete(ctx, "products/p1/a.jpg"))

	_, err = s.Get(ctx, "products/p1/a.jpg")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestImageExtension(t *testing.T) {
	ext, ok := ImageExtension("image/PNG")
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	_, ok = ImageExtension("application/pdf")
	assert.False(t, ok)

	key := ProductImageKey("p1", ".png")
	assert.True(t, strings.HasPrefix(key, "products/p1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
}
