// Package pipeline drives batch items through the background-removal
// adapter. Each item is an independent unit of work: its failure, removal,
// or slowness never affects sibling items, and all of its writes flow back
// through the id-keyed store API so that late callbacks for removed items
// become harmless no-ops.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stripbg/stripbg/internal/archive"
	"github.com/stripbg/stripbg/internal/batch"
	"github.com/stripbg/stripbg/internal/blob"
	"github.com/stripbg/stripbg/internal/notify"
	"github.com/stripbg/stripbg/internal/removal"
)

// Config tunes the orchestrator.
type Config struct {
	// Options is passed to the adapter on every call.
	Options removal.Options

	// MaxConcurrent caps simultaneous adapter calls. Zero means unbounded,
	// the baseline behavior: every item in a batch processes concurrently.
	MaxConcurrent int

	// Timeout bounds one adapter call. Zero imposes no timeout; an adapter
	// call that never resolves then leaves its item processing forever.
	Timeout time.Duration
}

// Orchestrator runs items through the adapter and merges progress and
// results back into the store.
type Orchestrator struct {
	store    *batch.Store
	adapter  removal.Adapter
	notifier notify.Notifier
	logger   zerolog.Logger
	cfg      Config
}

// New creates an Orchestrator. The adapter is shared across all items and
// must be safe for concurrent use.
func New(
	store *batch.Store,
	adapter removal.Adapter,
	notifier notify.Notifier,
	logger zerolog.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		adapter:  adapter,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// ProcessAll processes the given items concurrently and blocks until every
// one of them reached a terminal state (or was removed mid-flight).
// Completion order is unrelated to submission order.
func (o *Orchestrator) ProcessAll(ctx context.Context, items []batch.Snapshot) {
	var sem chan struct{}
	if o.cfg.MaxConcurrent > 0 {
		sem = make(chan struct{}, o.cfg.MaxConcurrent)
	}

	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(snap batch.Snapshot) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			o.Process(ctx, snap)
		}(it)
	}
	wg.Wait()
}

// Process drives one item through the adapter. It never returns an error:
// adapter failures transition the item to the error state and surface as a
// notification, nothing propagates to the caller.
func (o *Orchestrator) Process(ctx context.Context, item batch.Snapshot) {
	if err := o.store.MarkProcessing(item.ID); err != nil {
		// Already removed, or not pending anymore. Nothing to do.
		o.logger.Debug().Str("item_id", item.ID).Err(err).Msg("skipping item")
		return
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	// Progress callbacks for one item arrive in adapter order and are
	// applied in that order; the store clamps and drops regressions.
	onProgress := func(p float64) {
		pct := int(math.Round(p * 100))
		if err := o.store.UpdateProgress(item.ID, pct); err != nil && !errors.Is(err, batch.ErrNotFound) {
			o.logger.Debug().Str("item_id", item.ID).Err(err).Msg("dropping progress update")
		}
	}

	out, err := o.adapter.Remove(ctx, item.Source, o.cfg.Options, onProgress)
	if err != nil {
		o.logger.Warn().Str("item_id", item.ID).Str("file", item.Filename).Err(err).
			Msg("background removal failed")
		if markErr := o.store.MarkError(item.ID); markErr != nil && !errors.Is(markErr, batch.ErrNotFound) {
			o.logger.Debug().Str("item_id", item.ID).Err(markErr).Msg("dropping error transition")
		}
		o.notifier.Notify(notify.KindError,
			fmt.Sprintf("Failed to remove background from %s", item.Filename))
		return
	}

	name := archive.EntryName(item.Filename, o.cfg.Options.OutputFormat)
	result := blob.NewHandle(name, out)
	if err := o.store.MarkCompleted(item.ID, result); err != nil {
		// The item was removed while its adapter call was in flight. The
		// result handle was never attached, so it is released here.
		result.Release()
		o.logger.Debug().Str("item_id", item.ID).Err(err).Msg("discarding late result")
		return
	}

	o.logger.Info().Str("item_id", item.ID).Str("file", item.Filename).
		Int("result_bytes", result.Len()).Msg("background removed")
	o.notifier.Notify(notify.KindSuccess, "Background removed successfully!")
}
