//go:build unit

package sync

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go-blog-cms/internal/config"
	"go-blog-cms/internal/data"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/realtime"
	"go-blog-cms/internal/store"
)

// feedGateway fakes the subscription and list surface the reconciler
// exercises. The embedded interface panics on anything else, which is fine:
// a reconciler reaching other methods is itself a bug worth failing on.
type feedGateway struct {
	gateway.Gateway

	mu        sync.Mutex
	handlers  map[realtime.Table]func(realtime.Event)
	unsubbed  int
	listCalls int
	listErr   error
	posts     []*data.Post
}

func newFeedGateway() *feedGateway {
	return &feedGateway{handlers: make(map[realtime.Table]func(realtime.Event))}
}

func (g *feedGateway) Subscribe(_ context.Context, table realtime.Table, fn func(realtime.Event)) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[table] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.unsubbed++
		delete(g.handlers, table)
	}, nil
}

func (g *feedGateway) emit(table realtime.Table, ev realtime.Event) bool {
	g.mu.Lock()
	fn, ok := g.handlers[table]
	g.mu.Unlock()
	if ok {
		fn(ev)
	}
	return ok
}

func (g *feedGateway) subscriptions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handlers)
}

func (g *feedGateway) refreshes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls
}

func (g *feedGateway) ListAllPosts(context.Context) ([]*data.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.posts, nil
}

func (g *feedGateway) ListPublishedPosts(context.Context, int) ([]*data.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.posts, nil
}

func (g *feedGateway) ListCategories(context.Context) ([]*data.Category, error) {
	return nil, nil
}

func (g *feedGateway) ListTags(context.Context) ([]*data.Tag, error) {
	return nil, nil
}

func testLogger() logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "json"}, io.Discard)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestReconciler_PrivilegedSubscribesAllTables(t *testing.T) {
	gw := newFeedGateway()
	st := store.New(gw, true, 10)
	r := New(gw, st, testLogger(), time.Millisecond)
	defer r.Close()

	r.Start(context.Background())
	waitFor(t, func() bool { return gw.subscriptions() == 3 }, "expected subscriptions to posts, categories and tags")

	if !gw.emit(realtime.TablePosts, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, Status: data.StatusDraft}) {
		t.Fatal("no posts handler registered")
	}
	waitFor(t, func() bool { return gw.refreshes() == 1 }, "privileged session should refresh on a draft change")
}

func TestReconciler_UnprivilegedGatesOnPublished(t *testing.T) {
	gw := newFeedGateway()
	st := store.New(gw, false, 10)
	r := New(gw, st, testLogger(), time.Millisecond)
	defer r.Close()

	r.Start(context.Background())
	waitFor(t, func() bool { return gw.subscriptions() == 1 }, "unprivileged session should subscribe to posts only")

	gw.emit(realtime.TablePosts, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, Status: data.StatusDraft})
	if got := gw.refreshes(); got != 0 {
		t.Fatalf("draft change should not refresh an unprivileged session, got %d refreshes", got)
	}

	gw.emit(realtime.TablePosts, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, Status: data.StatusPublished})
	waitFor(t, func() bool { return gw.refreshes() == 1 }, "published change should refresh an unprivileged session")

	gw.emit(realtime.TablePosts, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpDelete, ID: "p1"})
	waitFor(t, func() bool { return gw.refreshes() == 2 }, "deletes should refresh regardless of status")
}

func TestReconciler_StartIsIdempotent(t *testing.T) {
	gw := newFeedGateway()
	st := store.New(gw, false, 10)
	r := New(gw, st, testLogger(), time.Millisecond)
	defer r.Close()

	r.Start(context.Background())
	r.Start(context.Background())
	r.Start(context.Background())

	waitFor(t, func() bool { return gw.subscriptions() >= 1 }, "expected a posts subscription")
	time.Sleep(20 * time.Millisecond)
	if got := gw.subscriptions(); got != 1 {
		t.Fatalf("repeated Start must not stack subscriptions, got %d", got)
	}
}

func TestReconciler_CloseBeforeDelayCancelsSetup(t *testing.T) {
	gw := newFeedGateway()
	st := store.New(gw, false, 10)
	r := New(gw, st, testLogger(), 100*time.Millisecond)

	r.Start(context.Background())
	r.Close()

	time.Sleep(150 * time.Millisecond)
	if got := gw.subscriptions(); got != 0 {
		t.Fatalf("Close before the delay elapsed must cancel setup, got %d subscriptions", got)
	}
}

func TestReconciler_CloseUnsubscribes(t *testing.T) {
	gw := newFeedGateway()
	st := store.New(gw, true, 10)
	r := New(gw, st, testLogger(), time.Millisecond)

	r.Start(context.Background())
	waitFor(t, func() bool { return gw.subscriptions() == 3 }, "expected three subscriptions")

	r.Close()
	r.Close()
	if got := gw.subscriptions(); got != 0 {
		t.Fatalf("Close must release every subscription, got %d", got)
	}
	gw.mu.Lock()
	unsubbed := gw.unsubbed
	gw.mu.Unlock()
	if unsubbed != 3 {
		t.Fatalf("expected 3 unsubscribe calls, got %d", unsubbed)
	}
}

func TestReconciler_RefreshFailureIsNonFatal(t *testing.T) {
	gw := newFeedGateway()
	st := store.New(gw, true, 10)
	r := New(gw, st, testLogger(), time.Millisecond)
	defer r.Close()

	r.Start(context.Background())
	waitFor(t, func() bool { return gw.subscriptions() == 3 }, "expected subscriptions")

	boom := errors.New("feed down")
	gw.mu.Lock()
	gw.listErr = boom
	gw.mu.Unlock()

	gw.emit(realtime.TablePosts, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, Status: data.StatusPublished})
	waitFor(t, func() bool { return r.LastError() != nil }, "refresh failure should surface through LastError")

	gw.mu.Lock()
	gw.listErr = nil
	gw.mu.Unlock()

	gw.emit(realtime.TablePosts, realtime.Event{Table: realtime.TablePosts, Op: realtime.OpUpdate, Status: data.StatusPublished})
	waitFor(t, func() bool { return r.LastError() == nil }, "a successful refresh should clear LastError")
}
