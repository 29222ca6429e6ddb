//go:build unit

package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"go-blog-cms/internal/config"
	"go-blog-cms/internal/data"
	"go-blog-cms/internal/editor"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/realtime"
)

// quietGateway satisfies the surface Activate and the reconciler touch.
type quietGateway struct {
	gateway.Gateway

	mu       sync.Mutex
	subs     int
	unsubbed int
}

func (g *quietGateway) ListAllPosts(context.Context) ([]*data.Post, error) { return nil, nil }
func (g *quietGateway) ListPublishedPosts(context.Context, int) ([]*data.Post, error) {
	return nil, nil
}
func (g *quietGateway) ListCategories(context.Context) ([]*data.Category, error) { return nil, nil }
func (g *quietGateway) ListTags(context.Context) ([]*data.Tag, error)            { return nil, nil }

func (g *quietGateway) Subscribe(context.Context, realtime.Table, func(realtime.Event)) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs++
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.unsubbed++
	}, nil
}

type stubSurface struct{ content string }

func (s *stubSurface) Content() string           { return s.content }
func (s *stubSurface) SetContent(content string) { s.content = content }

func newTestContext(t *testing.T, gw gateway.Gateway, privileged bool) *Context {
	t.Helper()
	log := logger.New(config.LogConfig{Level: "error", Format: "json"}, io.Discard)
	return NewContext(gw, log, Options{
		Privileged:     privileged,
		PublicPageSize: 10,
		SubscribeDelay: time.Millisecond,
		Debounce:       10 * time.Millisecond,
	})
}

func TestContext_ActivateThenDispose(t *testing.T) {
	gw := &quietGateway{}
	sc := newTestContext(t, gw, true)

	if err := sc.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		gw.mu.Lock()
		subs := gw.subs
		gw.mu.Unlock()
		if subs == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 subscriptions, got %d", subs)
		}
		time.Sleep(5 * time.Millisecond)
	}

	sc.Dispose()
	sc.Dispose()
	gw.mu.Lock()
	unsubbed := gw.unsubbed
	gw.mu.Unlock()
	if unsubbed != 3 {
		t.Fatalf("Dispose released %d subscriptions, want 3", unsubbed)
	}
}

func TestContext_OpenBufferReplacesPrevious(t *testing.T) {
	gw := &quietGateway{}
	sc := newTestContext(t, gw, true)
	defer sc.Dispose()

	first := sc.OpenBuffer("p1", &stubSurface{}, nil)
	second := sc.OpenBuffer("p1", &stubSurface{}, nil)
	if first.Buffer == second.Buffer {
		t.Fatal("reopening a post must build a fresh buffer")
	}

	// The replaced buffer is closed: its entry points are no-ops.
	first.SetValue("<p>stale</p>")
	if got := first.State(); got != editor.StateEmpty {
		t.Fatalf("closed buffer accepted a value, state = %v", got)
	}

	if buf, ok := sc.LookupBuffer("p1"); !ok || buf != second.Buffer {
		t.Fatal("LookupBuffer should return the replacement buffer")
	}

	sc.CloseBuffer("p1")
	if _, ok := sc.LookupBuffer("p1"); ok {
		t.Fatal("CloseBuffer should remove the entry")
	}
}

func TestRegistry_PrivilegeChangeSwapsContext(t *testing.T) {
	gw := &quietGateway{}
	log := logger.New(config.LogConfig{Level: "error", Format: "json"}, io.Discard)
	reg := NewRegistry(func(privileged bool) *Context {
		return NewContext(gw, log, Options{
			Privileged:     privileged,
			PublicPageSize: 10,
			SubscribeDelay: time.Millisecond,
			Debounce:       10 * time.Millisecond,
		})
	})
	defer reg.Shutdown()

	anon, err := reg.Acquire(context.Background(), "tok", false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	same, err := reg.Acquire(context.Background(), "tok", false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if anon != same {
		t.Fatal("same token and privilege should reuse the context")
	}

	elevated, err := reg.Acquire(context.Background(), "tok", true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if elevated == anon {
		t.Fatal("privilege change must build a fresh context")
	}
	if !elevated.IsPrivileged() {
		t.Fatal("elevated context should be privileged")
	}

	reg.Release("tok")
	again, err := reg.Acquire(context.Background(), "tok", true)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if again == elevated {
		t.Fatal("Release must discard the stored context")
	}
}
