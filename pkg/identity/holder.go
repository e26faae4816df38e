// Package identity keeps the active user of a session and notifies listeners about changes.
package identity

import (
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/livedash/pkg/domain"
)

// Holder is an in-process identity source. Nil identity means signed out.
type Holder struct {
	notifyMu  sync.Mutex // serializes Set, listeners see changes in the order they were made
	mu        sync.Mutex
	current   *domain.Identity
	listeners map[int]func(*domain.Identity)
	nextID    int
}

// NewHolder makes a holder with the initial identity, nil allowed
func NewHolder(initial *domain.Identity) *Holder {
	return &Holder{current: cloneIdentity(initial), listeners: make(map[int]func(*domain.Identity))}
}

// Current returns a copy of the active identity or nil
func (h *Holder) Current() *domain.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneIdentity(h.current)
}

// Set replaces the identity and notifies listeners if it changed.
// Listeners are called synchronously, one Set at a time, and must not call Set.
func (h *Holder) Set(id *domain.Identity) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	if same(h.current, id) {
		h.mu.Unlock()
		return
	}
	h.current = cloneIdentity(id)
	fns := make([]func(*domain.Identity), 0, len(h.listeners))
	for i := 0; i < h.nextID; i++ {
		if fn, ok := h.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	if id == nil {
		lgr.Printf("[INFO] identity cleared")
	} else {
		lgr.Printf("[INFO] identity set to %s", id.Email)
	}
	for _, fn := range fns {
		fn(cloneIdentity(id))
	}
}

// OnChange registers a listener and returns its unsubscribe function
func (h *Holder) OnChange(fn func(*domain.Identity)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

func same(a, b *domain.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneIdentity(id *domain.Identity) *domain.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
