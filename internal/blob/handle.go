// Package blob models revocable references to in-memory binary content.
//
// A Handle is the lifetime boundary for one payload: it hands out the
// bytes until its owner discards it, and is released exactly once. After
// release the bytes are unreachable.
package blob

import (
	"errors"
	"sync"
)

// ErrReleased is returned when content is requested from a released handle.
var ErrReleased = errors.New("blob: handle released")

// Handle is a revocable reference to a named binary payload.
// All methods are safe for concurrent use.
type Handle struct {
	name string

	mu       sync.Mutex
	data     []byte
	released bool
}

// NewHandle wraps data in a fresh, unreleased handle. The handle takes
// ownership of the slice; callers must not mutate it afterwards.
func NewHandle(name string, data []byte) *Handle {
	return &Handle{name: name, data: data}
}

// Name returns the display name the handle was created with.
func (h *Handle) Name() string {
	return h.name
}

// Bytes returns the payload, or ErrReleased after Release.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return h.data, nil
}

// Len reports the payload size in bytes, or 0 after release.
func (h *Handle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0
	}
	return len(h.data)
}

// Release revokes the handle: the payload reference is dropped. The second
// and later calls are no-ops, so owners may release defensively on every
// teardown path.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.data = nil
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
