// Package sync keeps a session's held state eventually consistent with
// changes made outside it: other admin sessions, or the server-side
// scheduled-publish run. It listens to the change feed and triggers store
// refreshes, gated by session privilege so public readers never refetch
// over rows they cannot see.
package sync

import (
	"context"
	"sync"
	"time"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/realtime"
	"go-blog-cms/internal/store"
)

// Reconciler subscribes to the change feed and refreshes the store when
// remote changes warrant it.
type Reconciler struct {
	gw    gateway.Gateway
	store *store.Store
	log   logger.Logger
	delay time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	timer   *time.Timer
	unsubs  []func()
	lastErr error
}

// New creates a Reconciler. delay postpones subscription setup so realtime
// wiring never competes with the initial critical fetch; this ordering is a
// correctness requirement, not a tuning knob, because an early subscription
// could trigger a refetch that races the initial load.
func New(gw gateway.Gateway, st *store.Store, log logger.Logger, delay time.Duration) *Reconciler {
	return &Reconciler{gw: gw, store: st, log: log, delay: delay}
}

// Start arms the delayed subscription setup. Calling Start again while
// armed or running is a no-op, so setup can never run twice.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	r.timer = time.AfterFunc(r.delay, func() {
		r.subscribe(ctx)
	})
}

func (r *Reconciler) subscribe(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	tables := []realtime.Table{realtime.TablePosts}
	if r.store.Privileged() {
		tables = append(tables, realtime.TableCategories, realtime.TableTags)
	}

	var unsubs []func()
	for _, table := range tables {
		unsub, err := r.gw.Subscribe(ctx, table, func(ev realtime.Event) {
			r.handle(ctx, ev)
		})
		if err != nil {
			r.log.Error(err, "failed to subscribe to change feed")
			continue
		}
		unsubs = append(unsubs, unsub)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		// Close ran while we were subscribing; release immediately.
		for _, unsub := range unsubs {
			unsub()
		}
		return
	}
	r.unsubs = unsubs
}

// handle applies the privilege gate and refreshes. Privileged sessions
// refresh on any change. Unprivileged sessions refresh only when the
// changed row is published; drafts and the rest are invisible to them, so
// refetching would be pure waste.
func (r *Reconciler) handle(ctx context.Context, ev realtime.Event) {
	if !r.store.Privileged() {
		if ev.Table != realtime.TablePosts {
			return
		}
		if ev.Status != data.StatusPublished && ev.Op != realtime.OpDelete {
			return
		}
	}

	if err := r.store.Refresh(ctx); err != nil {
		// Non-fatal: held data stays stale but valid until the next
		// successful reconciliation.
		r.log.Error(err, "reconciliation refresh failed")
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		return
	}
	r.mu.Lock()
	r.lastErr = nil
	r.mu.Unlock()
}

// LastError reports the most recent reconciliation failure, or nil after a
// successful refresh. It is an ambient indicator, never a blocking signal.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Close releases the delay timer and every feed subscription. It is safe to
// call more than once; after Close no reconciliation can fire.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}
