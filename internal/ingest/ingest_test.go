package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripbg/stripbg/internal/batch"
	"github.com/stripbg/stripbg/internal/notify"
)

// pngBytes is a minimal payload carrying the PNG magic number, enough for
// content-type sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n000000000000")

// jpegBytes carries the JPEG SOI marker.
var jpegBytes = []byte("\xff\xd8\xff\xe0JFIF0000000000")

func TestIngestor_AddFiles(t *testing.T) {
	t.Run("FiltersNonImages", func(t *testing.T) {
		store := batch.NewStore()
		rec := notify.NewRecorder()
		ing := New(store, rec, zerolog.Nop())

		added := ing.AddFiles([]File{
			{Name: "a.png", Data: pngBytes},
			{Name: "notes.txt", Data: []byte("plain text, definitely")},
			{Name: "b.jpg", Data: jpegBytes},
		})

		require.Len(t, added, 2)
		assert.Equal(t, 2, store.Len())
		assert.Equal(t, "a.png", added[0].Filename)
		assert.Equal(t, "b.jpg", added[1].Filename)
		for _, snap := range added {
			assert.Equal(t, batch.StatusPending, snap.Status)
			assert.Equal(t, 0, snap.Progress)
		}

		assert.Equal(t, 1, rec.Count(notify.KindError), "one rejection notification")
		assert.Equal(t, 1, rec.Count(notify.KindSuccess), "one acceptance notification")
	})

	t.Run("AllRejected", func(t *testing.T) {
		store := batch.NewStore()
		rec := notify.NewRecorder()
		ing := New(store, rec, zerolog.Nop())

		added := ing.AddFiles([]File{{Name: "doc.pdf", Data: []byte("%PDF-1.4 not an image")}})
		assert.Empty(t, added)
		assert.Equal(t, 0, store.Len())
		assert.Equal(t, 0, rec.Count(notify.KindSuccess))
	})

	t.Run("BaseNameOnly", func(t *testing.T) {
		store := batch.NewStore()
		ing := New(store, notify.NewRecorder(), zerolog.Nop())

		added := ing.AddFiles([]File{{Name: "/some/dir/a.png", Data: pngBytes}})
		require.Len(t, added, 1)
		assert.Equal(t, "a.png", added[0].Filename)
	})
}

func TestIngestor_AddPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngBytes, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("plain text, definitely"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), pngBytes, 0o600))

	store := batch.NewStore()
	ing := New(store, notify.NewRecorder(), zerolog.Nop())

	added, err := ing.AddPaths([]string{dir})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "a.png", added[0].Filename)

	t.Run("MissingPath", func(t *testing.T) {
		_, err := ing.AddPaths([]string{filepath.Join(dir, "nope.png")})
		assert.Error(t, err)
	})
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage(pngBytes))
	assert.True(t, IsImage(jpegBytes))
	assert.False(t, IsImage([]byte("hello world, plain text")))
	assert.False(t, IsImage(nil))
}
