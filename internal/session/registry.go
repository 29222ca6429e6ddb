package session

import (
	"context"
	"sync"
)

// Registry maps session tokens to their live Context. HTTP handlers are
// stateless between requests, so the registry is what gives a returning
// session back its store, reconciler and open editor buffers.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*Context
	factory  func(privileged bool) *Context
}

// NewRegistry creates a Registry. factory builds a fresh Context for a
// token seen for the first time or whose privilege changed.
func NewRegistry(factory func(privileged bool) *Context) *Registry {
	return &Registry{
		contexts: make(map[string]*Context),
		factory:  factory,
	}
}

// Acquire returns the Context for token, creating and activating one when
// none exists. A privilege change (login or logout mid-session) discards
// the old context: its held data was shaped for the other privilege level.
func (r *Registry) Acquire(ctx context.Context, token string, privileged bool) (*Context, error) {
	r.mu.Lock()
	existing, ok := r.contexts[token]
	if ok && existing.IsPrivileged() == privileged {
		r.mu.Unlock()
		return existing, nil
	}
	if ok {
		delete(r.contexts, token)
	}
	fresh := r.factory(privileged)
	r.contexts[token] = fresh
	r.mu.Unlock()

	if ok {
		existing.Dispose()
	}
	if err := fresh.Activate(ctx); err != nil {
		r.mu.Lock()
		if r.contexts[token] == fresh {
			delete(r.contexts, token)
		}
		r.mu.Unlock()
		fresh.Dispose()
		return nil, err
	}
	return fresh, nil
}

// Release disposes and removes the Context for token, if any.
func (r *Registry) Release(token string) {
	r.mu.Lock()
	sc, ok := r.contexts[token]
	if ok {
		delete(r.contexts, token)
	}
	r.mu.Unlock()
	if ok {
		sc.Dispose()
	}
}

// Shutdown disposes every live context.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	contexts := r.contexts
	r.contexts = make(map[string]*Context)
	r.mu.Unlock()
	for _, sc := range contexts {
		sc.Dispose()
	}
}
