package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"diet-coach/internal/extraction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageStore(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "uploads")

	store, err := NewImageStore(tempDir, 1024)
	require.NoError(t, err)
	assert.Equal(t, tempDir, store.Dir())

	t.Run("Save", func(t *testing.T) {
		img, err := store.Save(strings.NewReader("jpeg-bytes"), "image/JPEG")
		require.NoError(t, err)

		assert.Equal(t, "image/jpeg", img.MIMEType)
		assert.Equal(t, tempDir, filepath.Dir(img.Path))
		assert.Equal(t, ".jpg", filepath.Ext(img.Path))

		data, err := os.ReadFile(img.Path)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(data))
	})

	t.Run("SaveUniqueNames", func(t *testing.T) {
		a, err := store.Save(strings.NewReader("a"), "image/png")
		require.NoError(t, err)
		b, err := store.Save(strings.NewReader("b"), "image/png")
		require.NoError(t, err)
		assert.NotEqual(t, a.Path, b.Path)
	})

	t.Run("SaveRejectsNonImage", func(t *testing.T) {
		_, err := store.Save(strings.NewReader("%PDF"), "application/pdf")
		assert.ErrorIs(t, err, extraction.ErrUnsupportedMediaType)
	})

	t.Run("SaveRejectsEmpty", func(t *testing.T) {
		before := countFiles(t, tempDir)
		_, err := store.Save(strings.NewReader(""), "image/png")
		assert.ErrorIs(t, err, extraction.ErrNoImagesProvided)
		assert.Equal(t, before, countFiles(t, tempDir))
	})

	t.Run("SaveRejectsTooLarge", func(t *testing.T) {
		before := countFiles(t, tempDir)
		_, err := store.Save(strings.NewReader(strings.Repeat("x", 1025)), "image/webp")
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.Equal(t, before, countFiles(t, tempDir))
	})

	t.Run("SaveFileKeepsOriginal", func(t *testing.T) {
		original := filepath.Join(t.TempDir(), "plan.png")
		require.NoError(t, os.WriteFile(original, []byte("png"), 0644))

		img, err := store.SaveFile(original, "image/png")
		require.NoError(t, err)
		assert.NotEqual(t, original, img.Path)

		require.NoError(t, os.Remove(img.Path))
		_, err = os.Stat(original)
		assert.NoError(t, err)
	})

	t.Run("Discard", func(t *testing.T) {
		a, err := store.Save(strings.NewReader("a"), "image/heic")
		require.NoError(t, err)
		b, err := store.Save(strings.NewReader("b"), "image/heif")
		require.NoError(t, err)
		require.NoError(t, os.Remove(b.Path))

		require.NoError(t, store.Discard([]extraction.Image{a, b, {Data: []byte("x")}}))
		_, err = os.Stat(a.Path)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestRemoveStale(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), 0)
	require.NoError(t, err)

	old, err := store.Save(strings.NewReader("old"), "image/png")
	require.NoError(t, err)
	fresh, err := store.Save(strings.NewReader("fresh"), "image/png")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	removed, err := store.RemoveStale(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(fresh.Path)
	assert.NoError(t, err)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}
