// Package batch holds the batch item store and the per-item lifecycle
// state machine. The store is the single source of truth for rendering
// and export eligibility; all mutation goes through id-keyed operations
// so concurrent per-item updates cannot clobber each other.
package batch

import (
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/stripbg/stripbg/internal/blob"
)

// Status is the lifecycle state of one batch item.
type Status string

// Item lifecycle states. Pending is the only initial state; Completed and
// Error are terminal: once reached no further transition occurs.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further automatic transition occurs from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Common store errors.
var (
	// ErrNotFound is returned for updates keyed by an id absent from the
	// store, e.g. an item removed while its processing was in flight.
	// Callers are expected to discard it silently.
	ErrNotFound = errors.New("batch: item not found")

	// ErrInvalidTransition is returned for a state change the lifecycle
	// state machine does not permit.
	ErrInvalidTransition = errors.New("batch: invalid status transition")
)

// Item is one submitted image and its processing lifecycle. Items are
// created by the ingest boundary and owned exclusively by the Store after
// Append; other components address them by id.
type Item struct {
	// ID is assigned at submission time and stable for the item's lifetime.
	ID string

	// Filename is the original file name, used for archive entry naming.
	Filename string

	// Source is the immutable original image payload.
	Source []byte

	// Preview is a revocable display reference to the source, created on
	// submission and released exactly once on removal or teardown.
	Preview *blob.Handle

	// Result references the processed output. Set if and only if the item
	// reached StatusCompleted; same release discipline as Preview.
	Result *blob.Handle

	Status   Status
	Progress int
}

// NewItem builds a pending item for one accepted image. The id is a fresh
// ULID and the preview handle is created immediately, mirroring the
// submission-time acquisition of a display reference.
func NewItem(filename string, source []byte) *Item {
	return &Item{
		ID:       ulid.Make().String(),
		Filename: filename,
		Source:   source,
		Preview:  blob.NewHandle(filename, source),
		Status:   StatusPending,
		Progress: 0,
	}
}

// Snapshot is an immutable view of one item, handed out by the Store.
// Handles are thread-safe and may be used after the snapshot was taken;
// a released handle reports blob.ErrReleased on access.
type Snapshot struct {
	ID       string
	Filename string
	Source   []byte
	Preview  *blob.Handle
	Result   *blob.Handle
	Status   Status
	Progress int
}

// snapshot copies the item's current state.
func (i *Item) snapshot() Snapshot {
	return Snapshot{
		ID:       i.ID,
		Filename: i.Filename,
		Source:   i.Source,
		Preview:  i.Preview,
		Result:   i.Result,
		Status:   i.Status,
		Progress: i.Progress,
	}
}
