package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripbg/stripbg/internal/batch"
	"github.com/stripbg/stripbg/internal/notify"
	"github.com/stripbg/stripbg/internal/removal"
)

func newOrchestrator(
	s *batch.Store,
	a removal.Adapter,
	rec *notify.Recorder,
	cfg Config,
) *Orchestrator {
	return New(s, a, rec, zerolog.Nop(), cfg)
}

func appendItem(s *batch.Store, name string) batch.Snapshot {
	it := batch.NewItem(name, []byte("src-"+name))
	s.Append(it)
	snap, _ := s.Get(it.ID)
	return snap
}

func TestOrchestrator_Success(t *testing.T) {
	s := batch.NewStore()
	rec := notify.NewRecorder()
	adapter := removal.Func(func(_ context.Context, image []byte, _ removal.Options, onProgress removal.ProgressFunc) ([]byte, error) {
		onProgress(0.3)
		onProgress(0.8)
		return append([]byte("out-"), image...), nil
	})
	o := newOrchestrator(s, adapter, rec, Config{})

	snap := appendItem(s, "a.png")
	o.Process(context.Background(), snap)

	got, ok := s.Get(snap.ID)
	require.True(t, ok)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	data, err := got.Result.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("out-src-a.png"), data)
	assert.Equal(t, "removed-bg-a.png", got.Result.Name())
	assert.Equal(t, 1, rec.Count(notify.KindSuccess))
}

func TestOrchestrator_Failure(t *testing.T) {
	s := batch.NewStore()
	rec := notify.NewRecorder()
	adapter := removal.Func(func(_ context.Context, _ []byte, _ removal.Options, onProgress removal.ProgressFunc) ([]byte, error) {
		onProgress(0.6)
		return nil, errors.New("model exploded")
	})
	o := newOrchestrator(s, adapter, rec, Config{})

	snap := appendItem(s, "a.png")
	o.Process(context.Background(), snap)

	got, ok := s.Get(snap.ID)
	require.True(t, ok)
	assert.Equal(t, batch.StatusError, got.Status)
	assert.Equal(t, 60, got.Progress, "progress frozen at last reported value")
	assert.Nil(t, got.Result)
	assert.Equal(t, 1, rec.Count(notify.KindError))
}

func TestOrchestrator_ProgressClamping(t *testing.T) {
	s := batch.NewStore()
	adapter := removal.Func(func(_ context.Context, _ []byte, _ removal.Options, onProgress removal.ProgressFunc) ([]byte, error) {
		onProgress(0.5)
		onProgress(0.3) // regression, dropped
		onProgress(1.7) // out of range, clamps to 100
		return nil, errors.New("stop here so progress stays observable")
	})
	o := newOrchestrator(s, adapter, notify.NewRecorder(), Config{})

	snap := appendItem(s, "a.png")
	o.Process(context.Background(), snap)

	got, _ := s.Get(snap.ID)
	assert.Equal(t, 100, got.Progress)
}

func TestOrchestrator_ConcurrentIndependence(t *testing.T) {
	s := batch.NewStore()
	rec := notify.NewRecorder()

	bFailed := make(chan struct{})
	adapter := removal.Func(func(_ context.Context, image []byte, _ removal.Options, _ removal.ProgressFunc) ([]byte, error) {
		if string(image) == "src-b.png" {
			close(bFailed)
			return nil, errors.New("b fails first")
		}
		// A completes only after B has already failed.
		<-bFailed
		return []byte("done"), nil
	})
	o := newOrchestrator(s, adapter, rec, Config{})

	a := appendItem(s, "a.png")
	b := appendItem(s, "b.png")
	o.ProcessAll(context.Background(), []batch.Snapshot{a, b})

	gotA, _ := s.Get(a.ID)
	gotB, _ := s.Get(b.ID)
	assert.Equal(t, batch.StatusCompleted, gotA.Status, "A unaffected by B's failure")
	assert.Equal(t, batch.StatusError, gotB.Status)
	assert.Equal(t, 1, rec.Count(notify.KindSuccess))
	assert.Equal(t, 1, rec.Count(notify.KindError))
}

func TestOrchestrator_RemovalDuringProcessing(t *testing.T) {
	s := batch.NewStore()
	rec := notify.NewRecorder()

	removed := make(chan struct{})
	var late removal.ProgressFunc
	adapter := removal.Func(func(_ context.Context, _ []byte, _ removal.Options, onProgress removal.ProgressFunc) ([]byte, error) {
		late = onProgress
		<-removed // the item is removed while the call is in flight
		onProgress(0.9)
		return []byte("late result"), nil
	})
	o := newOrchestrator(s, adapter, rec, Config{})

	snap := appendItem(s, "a.png")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.Process(context.Background(), snap)
	}()

	// Wait until the item is processing, then remove it mid-flight.
	require.Eventually(t, func() bool {
		got, ok := s.Get(snap.ID)
		return ok && got.Status == batch.StatusProcessing
	}, time.Second, time.Millisecond)
	s.Remove(snap.ID)
	close(removed)
	wg.Wait()

	_, ok := s.Get(snap.ID)
	assert.False(t, ok, "no ghost record recreated")
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, rec.Count(notify.KindSuccess), "late completion is discarded silently")

	// One more late callback after everything settled is still harmless.
	late(0.95)
	assert.Equal(t, 0, s.Len())
}

func TestOrchestrator_SkipsRemovedBeforeStart(t *testing.T) {
	s := batch.NewStore()
	calls := int32(0)
	adapter := removal.Func(func(_ context.Context, _ []byte, _ removal.Options, _ removal.ProgressFunc) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("x"), nil
	})
	o := newOrchestrator(s, adapter, notify.NewRecorder(), Config{})

	snap := appendItem(s, "a.png")
	s.Remove(snap.ID)
	o.Process(context.Background(), snap)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "adapter never invoked for a removed item")
}

func TestOrchestrator_MaxConcurrent(t *testing.T) {
	s := batch.NewStore()

	var current, peak int32
	adapter := removal.Func(func(_ context.Context, _ []byte, _ removal.Options, _ removal.ProgressFunc) ([]byte, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return []byte("x"), nil
	})
	o := newOrchestrator(s, adapter, notify.NewRecorder(), Config{MaxConcurrent: 2})

	items := make([]batch.Snapshot, 0, 6)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, appendItem(s, name+".png"))
	}
	o.ProcessAll(context.Background(), items)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	for _, it := range items {
		got, _ := s.Get(it.ID)
		assert.Equal(t, batch.StatusCompleted, got.Status)
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	s := batch.NewStore()
	rec := notify.NewRecorder()
	adapter := removal.Func(func(ctx context.Context, _ []byte, _ removal.Options, _ removal.ProgressFunc) ([]byte, error) {
		<-ctx.Done() // an adapter call that never resolves on its own
		return nil, ctx.Err()
	})
	o := newOrchestrator(s, adapter, rec, Config{Timeout: 10 * time.Millisecond})

	snap := appendItem(s, "a.png")
	o.Process(context.Background(), snap)

	got, _ := s.Get(snap.ID)
	assert.Equal(t, batch.StatusError, got.Status, "timed-out item is not left stuck processing")
	assert.Equal(t, 1, rec.Count(notify.KindError))
}
