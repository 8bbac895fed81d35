package batch

import (
	"fmt"
	"sync"

	"github.com/stripbg/stripbg/internal/blob"
)

// maxProgress is the upper bound of the stored progress percentage.
const maxProgress = 100

// Store is the ordered collection of batch items. It is the only shared
// mutable resource in the pipeline: the orchestrator and the UI submit
// keyed mutation requests rather than holding item references, and every
// mutation is applied atomically under the store lock.
//
// Ordering is insertion order and is stable as items are updated in place;
// status changes never reorder the collection.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Item
	order []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: make(map[string]*Item)}
}

// Append adds items at the end of the collection in the given order.
// It never fails; duplicate ids are impossible for ULID-keyed items.
func (s *Store) Append(items ...*Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if _, exists := s.items[it.ID]; exists {
			continue
		}
		s.items[it.ID] = it
		s.order = append(s.order, it.ID)
	}
}

// List returns snapshots of all items in insertion order.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].snapshot())
	}
	return out
}

// Get returns a snapshot of one item.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return Snapshot{}, false
	}
	return it.snapshot(), true
}

// Len returns the number of items currently in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// MarkProcessing transitions a pending item to processing and resets its
// progress to zero. Returns ErrNotFound for an absent id.
func (s *Store) MarkProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.Status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, StatusProcessing)
	}
	it.Status = StatusProcessing
	it.Progress = 0
	return nil
}

// UpdateProgress applies a progress percentage to a processing item.
// The value is clamped to [0,100] and regressions are ignored, so the
// stored sequence is non-decreasing even for a misbehaving adapter.
// Updates for absent ids return ErrNotFound; updates for items already in
// a terminal state are dropped without error, keeping a failed item's
// progress frozen at its last reported value.
func (s *Store) UpdateProgress(id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.Status != StatusProcessing {
		return nil
	}
	if progress < 0 {
		progress = 0
	}
	if progress > maxProgress {
		progress = maxProgress
	}
	if progress > it.Progress {
		it.Progress = progress
	}
	return nil
}

// MarkCompleted transitions a processing item to completed, attaching the
// result handle and forcing progress to 100 in one atomic write, so the
// "completed implies result set and progress 100" invariant holds at every
// read. Returns ErrNotFound for an absent id; the caller then still owns
// the orphaned result handle and must release it.
func (s *Store) MarkCompleted(id string, result *blob.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, StatusCompleted)
	}
	it.Status = StatusCompleted
	it.Result = result
	it.Progress = maxProgress
	return nil
}

// MarkError transitions a processing item to the terminal error state.
// No result handle is attached and progress stays frozen at the last
// reported value. A failed item is never retried automatically.
func (s *Store) MarkError(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, StatusError)
	}
	it.Status = StatusError
	return nil
}

// Remove releases the item's preview and result handles exactly once and
// deletes the record. Removing an absent id is a no-op, so double removal
// and removal racing an in-flight completion are both safe.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return
	}
	s.releaseLocked(it)
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear removes every item, releasing all handles. Used on teardown and by
// the clear-all operation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		s.releaseLocked(it)
	}
	s.items = make(map[string]*Item)
	s.order = nil
}

// releaseLocked revokes both handles. blob.Handle.Release is idempotent,
// which gives the exactly-once discipline even if teardown paths overlap.
func (s *Store) releaseLocked(it *Item) {
	if it.Preview != nil {
		it.Preview.Release()
	}
	if it.Result != nil {
		it.Result.Release()
	}
}
