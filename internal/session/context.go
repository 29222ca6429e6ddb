package session

import (
	"context"
	"sync"
	"time"

	"go-blog-cms/internal/editor"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/logger"
	blogsync "go-blog-cms/internal/sync"

	"go-blog-cms/internal/store"
)

// Context owns every piece of per-session state: the privilege flag, the
// aggregate store, the reconciler and any open editor buffers. It is built
// explicitly and torn down explicitly through Dispose, which makes the
// subscribe/unsubscribe lifecycle testable without any ambient framework
// machinery.
type Context struct {
	privileged bool
	store      *store.Store
	reconciler *blogsync.Reconciler
	debounce   time.Duration

	mu       sync.Mutex
	buffers  map[string]*editor.Buffer
	disposed bool
}

// Options carries the per-session tuning knobs.
type Options struct {
	Privileged     bool
	PublicPageSize int
	SubscribeDelay time.Duration
	Debounce       time.Duration
}

// NewContext builds a session context around a gateway. Nothing is fetched
// or subscribed until Activate runs.
func NewContext(gw gateway.Gateway, log logger.Logger, opts Options) *Context {
	st := store.New(gw, opts.Privileged, opts.PublicPageSize)
	return &Context{
		privileged: opts.Privileged,
		store:      st,
		reconciler: blogsync.New(gw, st, log, opts.SubscribeDelay),
		debounce:   opts.Debounce,
		buffers:    make(map[string]*editor.Buffer),
	}
}

// IsPrivileged reports whether this session may see and mutate non-public
// content.
func (c *Context) IsPrivileged() bool {
	return c.privileged
}

// Store exposes the session's aggregate state holder.
func (c *Context) Store() *store.Store {
	return c.store
}

// Reconciler exposes the session's reconciliation layer.
func (c *Context) Reconciler() *blogsync.Reconciler {
	return c.reconciler
}

// Activate performs the initial critical fetch and only then arms the
// delayed feed subscription. The ordering matters: subscribing first could
// trigger a refetch that races the initial load.
func (c *Context) Activate(ctx context.Context) error {
	if err := c.store.Refresh(ctx); err != nil {
		return err
	}
	c.reconciler.Start(ctx)
	return nil
}

// OpenBuffer returns the editor buffer for the given post, creating it on
// first use. Opening a buffer for a post closes and replaces any previous
// buffer under that id, so stale content from an earlier editing session
// cannot leak forward.
func (c *Context) OpenBuffer(postID string, surface editor.Surface, sink func(content string)) *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil
	}
	if old, ok := c.buffers[postID]; ok {
		old.Close()
	}
	buf := editor.New(surface, sink, c.debounce)
	c.buffers[postID] = buf
	return &Buffer{postID: postID, Buffer: buf}
}

// LookupBuffer returns the open buffer for a post, if any.
func (c *Context) LookupBuffer(postID string) (*editor.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[postID]
	return buf, ok
}

// CloseBuffer tears down the buffer for one post.
func (c *Context) CloseBuffer(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if buf, ok := c.buffers[postID]; ok {
		buf.Close()
		delete(c.buffers, postID)
	}
}

// Dispose tears the whole session down: every editor buffer is closed and
// the reconciler releases its timers and subscriptions. Dispose is
// idempotent.
func (c *Context) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	for id, buf := range c.buffers {
		buf.Close()
		delete(c.buffers, id)
	}
	c.mu.Unlock()

	c.reconciler.Close()
}

// Buffer pairs an editor buffer with the post it was opened for.
type Buffer struct {
	postID string
	*editor.Buffer
}

// PostID reports which post this buffer belongs to.
func (b *Buffer) PostID() string {
	return b.postID
}
