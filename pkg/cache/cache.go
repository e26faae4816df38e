// Package cache holds the latest snapshot of every source for the active session.
// The cache is the only mutable state shared between the subscription callbacks and the
// recompute pipeline; every mutation replaces a whole snapshot.
package cache

import (
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/livedash/pkg/domain"
)

// Cache keeps one snapshot per source
type Cache struct {
	mu         sync.Mutex
	latest     map[domain.SourceID]domain.Snapshot
	generation uint64
}

// State is an immutable copy of the cache content
type State struct {
	Generation uint64
	Snapshots  map[domain.SourceID]domain.Snapshot
}

// New makes an empty cache
func New() *Cache {
	return &Cache{latest: make(map[domain.SourceID]domain.Snapshot)}
}

// Update replaces the snapshot of a source. It returns false and keeps the cached snapshot
// when the incoming revision is not newer than the cached one.
func (c *Cache) Update(id domain.SourceID, snap domain.Snapshot) bool {
	return c.Apply(id, snap, nil)
}

// Apply replaces the snapshot and, if accepted, calls fn with the new state before
// releasing the lock, so replace and signal happen as one step.
func (c *Cache) Apply(id domain.SourceID, snap domain.Snapshot, fn func(State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.latest[id]; ok && snap.Revision <= cur.Revision {
		lgr.Printf("[DEBUG] %v: source %s revision %d, cached %d", domain.ErrStaleSnapshot, id, snap.Revision, cur.Revision)
		return false
	}

	snap.Source = id
	c.latest[id] = snap
	if fn != nil {
		fn(c.stateLocked())
	}
	return true
}

// Get returns the cached snapshot of a source
func (c *Cache) Get(id domain.SourceID) (domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.latest[id]
	return snap, ok
}

// State returns a copy of the current content
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Reset drops all snapshots and starts a new generation
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = make(map[domain.SourceID]domain.Snapshot)
	c.generation++
}

// Len returns number of cached sources
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.latest)
}

func (c *Cache) stateLocked() State {
	snaps := make(map[domain.SourceID]domain.Snapshot, len(c.latest))
	for k, v := range c.latest {
		snaps[k] = v
	}
	return State{Generation: c.generation, Snapshots: snaps}
}

// Snapshot returns the snapshot of a source in this state
func (s State) Snapshot(id domain.SourceID) (domain.Snapshot, bool) {
	snap, ok := s.Snapshots[id]
	return snap, ok
}
