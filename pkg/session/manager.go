// Package session owns the lifecycle of one dashboard session. A single loop goroutine
// handles identity changes, incoming snapshots and recomputation one event at a time,
// so no two recomputations ever overlap and state changes are totally ordered.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/livedash/pkg/aggregate"
	"github.com/umputun/livedash/pkg/cache"
	"github.com/umputun/livedash/pkg/domain"
	"github.com/umputun/livedash/pkg/subscription"
)

// IdentitySource provides the active identity and notifies about its changes
type IdentitySource interface {
	Current() *domain.Identity
	OnChange(fn func(*domain.Identity)) func()
}

// Manager keeps subscriptions in sync with the identity and publishes derived views.
// Identity changes and snapshots are queued and applied by Run.
type Manager struct {
	store subscription.Store
	agg   *aggregate.Aggregator
	cache *cache.Cache
	retry subscription.Options
	queue *eventQueue

	// owned by the Run goroutine
	identity *domain.Identity
	subs     map[domain.SourceID]*subscription.Subscription
	tokens   map[string]domain.SourceID
	received bool // a snapshot was accepted since the last identity change

	mu        sync.RWMutex // guards view and listeners
	view      domain.View
	revision  uint64
	listeners map[int]func(domain.View)
	nextID    int
}

// New makes a manager for the store and aggregator, retry controls re-subscribe attempts
func New(store subscription.Store, agg *aggregate.Aggregator, retry subscription.Options) *Manager {
	m := &Manager{
		store:     store,
		agg:       agg,
		cache:     cache.New(),
		retry:     retry,
		queue:     newEventQueue(),
		subs:      make(map[domain.SourceID]*subscription.Subscription),
		tokens:    make(map[string]domain.SourceID),
		listeners: make(map[int]func(domain.View)),
	}
	m.view = idleView()
	return m
}

// Run processes queued events until ctx is done or Close is called.
// All subscriptions are cancelled on exit.
func (m *Manager) Run(ctx context.Context) error {
	lgr.Printf("[INFO] session manager started, %d sources", len(m.agg.Sources()))
	defer m.teardown()

	for {
		closed := m.queue.Closed()
		for {
			ev, ok := m.queue.TryDequeue()
			if !ok {
				break
			}
			m.process(ctx, ev)
		}
		if closed {
			lgr.Printf("[INFO] session manager closed")
			return nil
		}

		select {
		case <-ctx.Done():
			lgr.Printf("[INFO] session manager stopped, %v", ctx.Err())
			m.queue.Close()
			return ctx.Err()
		case <-m.queue.Wait():
		}
	}
}

// SetIdentity queues an identity change, nil signs out
func (m *Manager) SetIdentity(id *domain.Identity) {
	if !m.queue.Enqueue(event{kind: eventIdentity, identity: cloneIdentity(id)}) {
		lgr.Printf("[WARN] identity change ignored, session closed")
	}
}

// Follow sets the current identity of src and tracks its changes.
// The identity is read from src when the event is processed, so the latest change wins.
// Returns the function to stop following.
func (m *Manager) Follow(src IdentitySource) func() {
	follow := func() {
		if !m.queue.Enqueue(event{kind: eventFollow, source: src}) {
			lgr.Printf("[WARN] identity change ignored, session closed")
		}
	}
	stop := src.OnChange(func(*domain.Identity) { follow() })
	follow()
	return stop
}

// Close stops accepting events, Run drains the queue, cancels subscriptions and returns
func (m *Manager) Close() {
	m.queue.Close()
}

// View returns the last published view
func (m *Manager) View() domain.View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

// State returns the current lifecycle state
func (m *Manager) State() domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.State
}

// Sources returns configured source descriptors
func (m *Manager) Sources() []domain.SourceDescriptor {
	return m.agg.Sources()
}

// OnUpdate registers a listener called with every published view. Listeners run on the
// manager loop and must not block. Returns the unsubscribe function.
func (m *Manager) OnUpdate(fn func(domain.View)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) process(ctx context.Context, ev event) {
	switch ev.kind {
	case eventIdentity:
		m.switchIdentity(ctx, ev.identity)
	case eventFollow:
		m.switchIdentity(ctx, cloneIdentity(ev.source.Current()))
	case eventSnapshot:
		m.applySnapshot(ev.token, ev.snap)
	default:
		lgr.Printf("[WARN] unknown event kind %d", ev.kind)
	}
}

// switchIdentity cancels all subscriptions and clears the cache before subscribing
// sources for the new identity
func (m *Manager) switchIdentity(ctx context.Context, id *domain.Identity) {
	if sameIdentity(m.identity, id) {
		lgr.Printf("[DEBUG] identity unchanged, skip re-subscription")
		return
	}

	m.cancelAll()
	m.cache.Reset()
	m.identity = id

	if id == nil {
		lgr.Printf("[INFO] session is idle, no identity")
		m.publish(idleView())
		return
	}

	sources := m.agg.Sources()
	lgr.Printf("[INFO] subscribing %d sources for %s", len(sources), id.Email)
	m.recompute(m.cache.State())

	for _, src := range sources {
		sub := subscription.Open(ctx, src, *id, m.store, m.sink, m.retry)
		m.subs[src.ID] = sub
		m.tokens[sub.Token()] = src.ID
	}
}

func (m *Manager) applySnapshot(token string, snap domain.Snapshot) {
	id, ok := m.tokens[token]
	if !ok {
		lgr.Printf("[DEBUG] drop snapshot from stale subscription %s", token)
		return
	}

	var state cache.State
	if !m.cache.Apply(id, snap, func(s cache.State) { state = s }) {
		return
	}
	if snap.Failed() {
		lgr.Printf("[WARN] source %s failed, %v", id, snap.Err)
	}
	m.received = true
	m.recompute(state)
}

// sink is called by subscriptions from store goroutines and only enqueues
func (m *Manager) sink(token string, snap domain.Snapshot) {
	if !m.queue.Enqueue(event{kind: eventSnapshot, token: token, snap: snap}) {
		lgr.Printf("[DEBUG] drop snapshot of %s, session closed", snap.Source)
	}
}

func (m *Manager) recompute(state cache.State) {
	st := time.Now()
	res := m.agg.Compute(state)

	// active on the first accepted snapshot, sources still waiting show as loading
	sessionState := domain.StateSubscribing
	if m.received {
		sessionState = domain.StateActive
	}
	if prev := m.State(); prev != sessionState {
		lgr.Printf("[INFO] session state %s -> %s", prev, sessionState)
	}

	m.publish(domain.View{
		Identity:       cloneIdentity(m.identity),
		State:          sessionState,
		Statistics:     res.Statistics,
		Feed:           nonNil(res.Feed),
		RecentActivity: nonNil(res.RecentActivity),
		Status:         res.Status,
		Errors:         res.Errors,
	})
	lgr.Printf("[DEBUG] recomputed view, total %d, feed %d, took %v", res.Statistics[aggregate.TotalKey], len(res.Feed), time.Since(st))
}

// publish stamps the view with the next revision and notifies listeners
func (m *Manager) publish(view domain.View) {
	m.mu.Lock()
	m.revision++
	view.Revision = m.revision
	view.UpdatedAt = time.Now()
	m.view = view

	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(domain.View), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

// cancelAll cancels open subscriptions synchronously, late deliveries are dropped by token
func (m *Manager) cancelAll() {
	for id, sub := range m.subs {
		sub.Cancel()
		delete(m.subs, id)
	}
	m.tokens = make(map[string]domain.SourceID)
	m.received = false
}

func (m *Manager) teardown() {
	m.cancelAll()
	m.cache.Reset()
	m.identity = nil
	m.publish(idleView())
}

func idleView() domain.View {
	return domain.View{
		State:          domain.StateIdle,
		Statistics:     domain.Statistics{},
		Feed:           []domain.FeedEntry{},
		RecentActivity: []domain.FeedEntry{},
		Status:         map[domain.SourceID]domain.SourceStatus{},
	}
}

func nonNil(entries []domain.FeedEntry) []domain.FeedEntry {
	if entries == nil {
		return []domain.FeedEntry{}
	}
	return entries
}

func sameIdentity(a, b *domain.Identity) bool {
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
