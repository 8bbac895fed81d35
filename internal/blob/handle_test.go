package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_Bytes(t *testing.T) {
	h := NewHandle("photo.png", []byte{1, 2, 3})

	data, err := h.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "photo.png", h.Name())
}

func TestHandle_Release(t *testing.T) {
	t.Run("RevokesBytes", func(t *testing.T) {
		h := NewHandle("photo.png", []byte{1})
		h.Release()

		_, err := h.Bytes()
		assert.ErrorIs(t, err, ErrReleased)
		assert.True(t, h.Released())
		assert.Equal(t, 0, h.Len())
	})

	t.Run("Idempotent", func(t *testing.T) {
		h := NewHandle("photo.png", []byte{1})
		h.Release()
		h.Release()
		assert.True(t, h.Released())
	})
}
