// Package realtime carries row-change notifications between sessions over
// redis pub/sub. Payloads are intentionally thin: subscribers refetch
// through the gateway rather than trusting the event body.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"go-blog-cms/internal/data"
)

// Table identifies which collection a change event belongs to.
type Table string

const (
	TablePosts      Table = "posts"
	TableCategories Table = "categories"
	TableTags       Table = "tags"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes one row change. Status is only meaningful for post
// events; unprivileged sessions use it to ignore rows they cannot see.
type Event struct {
	Table  Table       `json:"table"`
	Op     Op          `json:"op"`
	ID     string      `json:"id"`
	Status data.Status `json:"status,omitempty"`
}

func channelFor(table Table) string {
	return fmt.Sprintf("feed:%s", table)
}

// Feed publishes and subscribes to change events. With a redis client the
// events travel over pub/sub and reach every node, the publishing one
// included, since redis echoes to the publisher's own subscriptions. With a
// nil client the feed degrades to in-process dispatch, which keeps
// single-node setups fully working without redis.
type Feed struct {
	rdb *redis.Client

	mu     sync.Mutex
	nextID int
	local  map[Table]map[int]func(Event)
}

// NewFeed creates a Feed using the provided redis client, which may be nil.
func NewFeed(rdb *redis.Client) *Feed {
	return &Feed{
		rdb:   rdb,
		local: make(map[Table]map[int]func(Event)),
	}
}

// Publish sends a change event to the table's channel.
func (f *Feed) Publish(ctx context.Context, ev Event) error {
	if f.rdb == nil {
		f.dispatchLocal(ev)
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}
	return f.rdb.Publish(ctx, channelFor(ev.Table), payload).Err()
}

func (f *Feed) dispatchLocal(ev Event) {
	f.mu.Lock()
	handlers := make([]func(Event), 0, len(f.local[ev.Table]))
	for _, fn := range f.local[ev.Table] {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribe starts delivering events for one table to fn until the returned
// unsubscribe function is called or ctx is cancelled. fn runs on the
// subscriber goroutine; it must not block for long.
func (f *Feed) Subscribe(ctx context.Context, table Table, fn func(Event)) (func(), error) {
	if f.rdb == nil {
		f.mu.Lock()
		f.nextID++
		id := f.nextID
		if f.local[table] == nil {
			f.local[table] = make(map[int]func(Event))
		}
		f.local[table][id] = fn
		f.mu.Unlock()

		var once sync.Once
		return func() {
			once.Do(func() {
				f.mu.Lock()
				delete(f.local[table], id)
				f.mu.Unlock()
			})
		}, nil
	}

	sub := f.rdb.Subscribe(ctx, channelFor(table))
	// Receive the subscription confirmation so events cannot be missed
	// between return and the goroutine starting.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s feed: %w", table, err)
	}
	ch := sub.Channel()

	done := make(chan struct{})
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue // malformed events are dropped, not fatal
				}
				fn(ev)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { close(done) })
	}
	return unsubscribe, nil
}
