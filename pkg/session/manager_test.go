package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/livedash/pkg/aggregate"
	"github.com/umputun/livedash/pkg/domain"
	"github.com/umputun/livedash/pkg/identity"
	"github.com/umputun/livedash/pkg/subscription"
	"github.com/umputun/livedash/pkg/subscription/mocks"
)

// fakeStore keeps records in memory and pushes full result sets to live subscriptions
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]domain.Record
	subs []*fakeSub
}

type fakeSub struct {
	q          domain.Query
	onSnapshot func([]domain.Record)
	onError    func(error)
	handle     *mocks.HandleMock
	cancelled  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]domain.Record)}
}

func (f *fakeStore) mock() *mocks.StoreMock {
	return &mocks.StoreMock{
		SubscribeFunc: func(q domain.Query, onSnapshot func([]domain.Record), onError func(error)) (subscription.Handle, error) {
			sub := &fakeSub{q: q, onSnapshot: onSnapshot, onError: onError}
			sub.handle = &mocks.HandleMock{CancelFunc: func() {
				f.mu.Lock()
				sub.cancelled = true
				f.mu.Unlock()
			}}
			f.mu.Lock()
			f.subs = append(f.subs, sub)
			recs := f.match(q)
			f.mu.Unlock()
			onSnapshot(recs)
			return sub.handle, nil
		},
	}
}

func (f *fakeStore) match(q domain.Query) []domain.Record {
	var res []domain.Record
	for _, r := range f.data[q.Collection] {
		if q.Field == "" || r.String(q.Field) == q.Value {
			res = append(res, r)
		}
	}
	return res
}

func (f *fakeStore) set(collection string, records ...domain.Record) {
	f.mu.Lock()
	f.data[collection] = records
	type push struct {
		fn   func([]domain.Record)
		recs []domain.Record
	}
	var pushes []push
	for _, s := range f.subs {
		if !s.cancelled && s.q.Collection == collection {
			pushes = append(pushes, push{fn: s.onSnapshot, recs: f.match(s.q)})
		}
	}
	f.mu.Unlock()
	for _, p := range pushes {
		p.fn(p.recs)
	}
}

func (f *fakeStore) fail(collection string, err error) {
	f.mu.Lock()
	var fns []func(error)
	for _, s := range f.subs {
		if !s.cancelled && s.q.Collection == collection {
			fns = append(fns, s.onError)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (f *fakeStore) live() (active, cancelled int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.cancelled {
			cancelled++
			continue
		}
		active++
	}
	return active, cancelled
}

func (f *fakeStore) subscriptions() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*fakeSub, len(f.subs))
	copy(res, f.subs)
	return res
}

var retry = subscription.Options{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond}

func rec(id, ts string, fields ...string) domain.Record {
	r := domain.Record{ID: id, Fields: map[string]any{"timestamp": ts}}
	for i := 0; i+1 < len(fields); i += 2 {
		r.Fields[fields[i]] = fields[i+1]
	}
	return r
}

// loaded reports whether every source delivered at least once
func loaded(v domain.View) bool {
	if v.State != domain.StateActive || len(v.Status) == 0 {
		return false
	}
	for _, st := range v.Status {
		if st == domain.StatusLoading {
			return false
		}
	}
	return true
}

func feedIDs(v domain.View) []string {
	res := make([]string, 0, len(v.Feed))
	for _, e := range v.Feed {
		res = append(res, e.ID)
	}
	return res
}

func startManager(t *testing.T, store subscription.Store, sources []domain.SourceDescriptor) (*Manager, chan error) {
	t.Helper()
	agg := aggregate.New(aggregate.Config{Sources: sources, Counters: aggregate.DefaultCounters()}, nil)
	m := New(store, agg, retry)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, done
}

func TestManager_EndToEnd(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", domain.Record{ID: "a", Fields: map[string]any{"ts": "2024-01-01"}})
	fs.set("c2", domain.Record{ID: "b", Fields: map[string]any{"ts": "2024-02-01"}})
	sources := []domain.SourceDescriptor{
		{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10},
		{ID: "s2", Type: domain.SourceGeneric, Collection: "c2", FeedLimit: 10},
	}

	m, _ := startManager(t, fs.mock(), sources)
	assert.Equal(t, domain.StateIdle, m.State())

	m.SetIdentity(&domain.Identity{ID: "u1", Email: "u1@example.com"})
	require.Eventually(t, func() bool { return loaded(m.View()) }, time.Second, time.Millisecond)

	v := m.View()
	assert.Equal(t, []string{"b", "a"}, feedIDs(v))
	assert.Equal(t, 2, v.Statistics["total"])
	assert.Equal(t, domain.StatusOK, v.Status["s1"])
	assert.Equal(t, "u1@example.com", v.Identity.Email)

	fs.set("c1", domain.Record{ID: "a", Fields: map[string]any{"ts": "2024-03-01"}}, domain.Record{ID: "c", Fields: map[string]any{"ts": "2023-01-01"}})
	require.Eventually(t, func() bool { return m.View().Statistics["total"] == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, feedIDs(m.View()))
}

func TestManager_ActiveOnFirstSnapshot(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01"))
	live := fs.mock()
	store := &mocks.StoreMock{
		SubscribeFunc: func(q domain.Query, onSnapshot func([]domain.Record), onError func(error)) (subscription.Handle, error) {
			if q.Collection == "c2" { // never delivers
				return &mocks.HandleMock{CancelFunc: func() {}}, nil
			}
			return live.Subscribe(q, onSnapshot, onError)
		},
	}
	sources := []domain.SourceDescriptor{
		{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10},
		{ID: "s2", Type: domain.SourceGeneric, Collection: "c2", FeedLimit: 10},
	}
	m, _ := startManager(t, store, sources)

	m.SetIdentity(&domain.Identity{ID: "1"})
	require.Eventually(t, func() bool { return m.View().Status["s1"] == domain.StatusOK }, time.Second, time.Millisecond)

	v := m.View()
	assert.Equal(t, domain.StateActive, v.State)
	assert.Equal(t, domain.StatusLoading, v.Status["s2"])
	assert.Equal(t, []string{"a"}, feedIDs(v))
}

func TestManager_IdentityChange(t *testing.T) {
	fs := newFakeStore()
	fs.set("violations",
		rec("v1", "2024-01-01", "studentEmail", "alice@example.com", "status", "Pending"),
		rec("v2", "2024-01-02", "studentEmail", "bob@example.com", "status", "Pending"),
		rec("v3", "2024-01-03", "studentEmail", "bob@example.com", "status", "Resolved"),
	)
	fs.set("announcements", rec("a1", "2024-01-04"))
	sources := []domain.SourceDescriptor{
		{ID: "violations", Type: domain.SourceViolations, Collection: "violations", FeedLimit: 5,
			Predicate: domain.Predicate{Field: "studentEmail", IdentityAttr: domain.IdentityEmail}},
		{ID: "announcements", Type: domain.SourceAnnouncements, Collection: "announcements", FeedLimit: 5},
	}
	m, _ := startManager(t, fs.mock(), sources)

	m.SetIdentity(&domain.Identity{ID: "1", Email: "alice@example.com"})
	require.Eventually(t, func() bool {
		v := m.View()
		return loaded(v) && v.Identity != nil && v.Identity.Email == "alice@example.com"
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, m.View().Statistics["totalViolations"])
	assert.Equal(t, 1, m.View().Statistics["pendingViolations"])

	m.SetIdentity(&domain.Identity{ID: "2", Email: "bob@example.com"})
	require.Eventually(t, func() bool {
		v := m.View()
		return loaded(v) && v.Identity != nil && v.Identity.Email == "bob@example.com"
	}, time.Second, time.Millisecond)
	v := m.View()
	assert.Equal(t, 2, v.Statistics["totalViolations"])
	assert.Equal(t, 1, v.Statistics["pendingViolations"])
	assert.Equal(t, []string{"a1", "v3", "v2"}, feedIDs(v), "no records of the previous identity")

	active, cancelled := fs.live()
	assert.Equal(t, 2, active)
	assert.Equal(t, 2, cancelled, "previous identity subscriptions cancelled")

	m.SetIdentity(nil)
	require.Eventually(t, func() bool { return m.State() == domain.StateIdle }, time.Second, time.Millisecond)
	v = m.View()
	assert.Nil(t, v.Identity)
	assert.Empty(t, v.Feed)
	assert.Empty(t, v.Statistics)
	active, cancelled = fs.live()
	assert.Equal(t, 0, active)
	assert.Equal(t, 4, cancelled)
}

func TestManager_PartialFailure(t *testing.T) {
	fs := newFakeStore()
	fs.set("violations", rec("v1", "2024-01-01", "status", "pending"))
	fs.set("announcements", rec("a1", "2024-01-02"), rec("a2", "2024-01-03"))
	sources := []domain.SourceDescriptor{
		{ID: "violations", Type: domain.SourceViolations, Collection: "violations", FeedLimit: 5},
		{ID: "announcements", Type: domain.SourceAnnouncements, Collection: "announcements", FeedLimit: 5},
	}
	m, _ := startManager(t, fs.mock(), sources)
	m.SetIdentity(&domain.Identity{ID: "1"})
	require.Eventually(t, func() bool { return m.View().Statistics["total"] == 3 }, time.Second, time.Millisecond)

	fs.fail("violations", errors.New("permission denied"))
	require.Eventually(t, func() bool { return m.View().Status["violations"] == domain.StatusError }, time.Second, time.Millisecond)

	v := m.View()
	assert.Equal(t, domain.StateActive, v.State)
	assert.Equal(t, 2, v.Statistics["totalAnnouncements"])
	assert.Equal(t, 0, v.Statistics["pendingViolations"])
	assert.Equal(t, []string{"a2", "a1"}, feedIDs(v))
	assert.Contains(t, v.Errors["violations"], "permission denied")

	fs.set("violations", rec("v1", "2024-01-01", "status", "pending"))
	require.Eventually(t, func() bool { return m.View().Status["violations"] == domain.StatusOK }, time.Second, time.Millisecond)
	assert.Equal(t, 1, m.View().Statistics["pendingViolations"], "source recovers on next snapshot")
}

func TestManager_LateCallbackDropped(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01"))
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10}}
	m, _ := startManager(t, fs.mock(), sources)

	m.SetIdentity(&domain.Identity{ID: "1"})
	require.Eventually(t, func() bool { return m.State() == domain.StateActive }, time.Second, time.Millisecond)
	old := fs.subscriptions()[0]

	m.SetIdentity(&domain.Identity{ID: "2"})
	require.Eventually(t, func() bool {
		v := m.View()
		return v.State == domain.StateActive && v.Identity.ID == "2"
	}, time.Second, time.Millisecond)
	rev := m.View().Revision

	old.onSnapshot([]domain.Record{rec("ghost", "2030-01-01")})
	old.onError(errors.New("late"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, rev, m.View().Revision, "late callbacks never reach the view")
	assert.Equal(t, []string{"a"}, feedIDs(m.View()))
}

func TestManager_StaleTokenAndRevision(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01"))
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10}}
	agg := aggregate.New(aggregate.Config{Sources: sources}, nil)
	m := New(fs.mock(), agg, retry)

	// drive the loop by hand, events are processed on the test goroutine
	drain := func() {
		for {
			ev, ok := m.queue.TryDequeue()
			if !ok {
				return
			}
			m.process(context.Background(), ev)
		}
	}

	m.switchIdentity(context.Background(), &domain.Identity{ID: "1"})
	assert.Equal(t, domain.StateSubscribing, m.State())
	require.Eventually(t, func() bool { return m.queue.Len() == 1 }, time.Second, time.Millisecond)
	drain()
	assert.Equal(t, domain.StateActive, m.State())
	rev := m.View().Revision

	m.applySnapshot("unknown-token", domain.Snapshot{Revision: 100, Records: []domain.Record{rec("x", "2024-01-01")}})
	assert.Equal(t, rev, m.View().Revision, "unknown token dropped")

	var token string
	for tok := range m.tokens {
		token = tok
	}
	m.applySnapshot(token, domain.Snapshot{Revision: 1, Records: []domain.Record{rec("x", "2024-01-01")}})
	assert.Equal(t, rev, m.View().Revision, "stale revision rejected")

	m.applySnapshot(token, domain.Snapshot{Revision: 5, Records: []domain.Record{rec("x", "2024-01-01")}})
	assert.Equal(t, rev+1, m.View().Revision)
	assert.Equal(t, []string{"x"}, feedIDs(m.View()))

	m.cancelAll()
}

func TestManager_OnUpdate(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01"))
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10}}
	m, _ := startManager(t, fs.mock(), sources)

	var mu sync.Mutex
	var views []domain.View
	unsubscribe := m.OnUpdate(func(v domain.View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(views)
	}

	m.SetIdentity(&domain.Identity{ID: "1"})
	require.Eventually(t, func() bool { return count() >= 2 }, time.Second, time.Millisecond)

	mu.Lock()
	for i := 1; i < len(views); i++ {
		assert.Greater(t, views[i].Revision, views[i-1].Revision)
	}
	assert.Equal(t, domain.StateSubscribing, views[0].State)
	mu.Unlock()

	unsubscribe()
	n := count()
	fs.set("c1", rec("b", "2024-01-02"))
	require.Eventually(t, func() bool { return len(m.View().Feed) == 1 && m.View().Feed[0].ID == "b" }, time.Second, time.Millisecond)
	assert.Equal(t, n, count())
}

func TestManager_Close(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01"))
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10}}
	m, done := startManager(t, fs.mock(), sources)

	m.SetIdentity(&domain.Identity{ID: "1"})
	require.Eventually(t, func() bool { return m.State() == domain.StateActive }, time.Second, time.Millisecond)

	m.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
		done <- err // let cleanup receive it
	case <-time.After(time.Second):
		t.Fatal("run didn't stop")
	}
	assert.Equal(t, domain.StateIdle, m.State())
	active, cancelled := fs.live()
	assert.Equal(t, 0, active)
	assert.Equal(t, 1, cancelled)

	m.SetIdentity(&domain.Identity{ID: "2"}) // ignored
	assert.Equal(t, domain.StateIdle, m.State())
}

func TestManager_ContextCancel(t *testing.T) {
	agg := aggregate.New(aggregate.Config{Sources: []domain.SourceDescriptor{{ID: "s1", Collection: "c1"}}}, nil)
	m := New(newFakeStore().mock(), agg, retry)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run didn't stop")
	}
}

func TestManager_Follow(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01", "owner", "1"), rec("b", "2024-01-02", "owner", "2"))
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10,
		Predicate: domain.Predicate{Field: "owner", IdentityAttr: domain.IdentityID}}}
	m, _ := startManager(t, fs.mock(), sources)

	holder := identity.NewHolder(&domain.Identity{ID: "1", Email: "one@example.com"})
	stop := m.Follow(holder)
	require.Eventually(t, func() bool {
		v := m.View()
		return v.State == domain.StateActive && len(v.Feed) == 1 && v.Feed[0].ID == "a"
	}, time.Second, time.Millisecond)

	holder.Set(&domain.Identity{ID: "2", Email: "two@example.com"})
	require.Eventually(t, func() bool {
		v := m.View()
		return v.State == domain.StateActive && len(v.Feed) == 1 && v.Feed[0].ID == "b"
	}, time.Second, time.Millisecond)

	// changes racing with Follow settle on the holder's latest identity
	holder.Set(&domain.Identity{ID: "1", Email: "one@example.com"})
	holder.Set(&domain.Identity{ID: "2", Email: "two@example.com"})
	require.Eventually(t, func() bool {
		v := m.View()
		return v.Identity != nil && v.Identity.ID == "2" && len(v.Feed) == 1 && v.Feed[0].ID == "b"
	}, time.Second, time.Millisecond)

	stop()
	holder.Set(nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.StateActive, m.State(), "no longer following")
}

func TestManager_SameIdentityNoResubscribe(t *testing.T) {
	fs := newFakeStore()
	store := fs.mock()
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10}}
	m, _ := startManager(t, store, sources)

	m.SetIdentity(&domain.Identity{ID: "1"})
	m.SetIdentity(&domain.Identity{ID: "1"})
	require.Eventually(t, func() bool { return m.State() == domain.StateActive }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, store.SubscribeCalls(), 1)
}

type stubIdentity struct {
	mu       sync.Mutex
	current  *domain.Identity
	listener func(*domain.Identity)
}

func (s *stubIdentity) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *stubIdentity) OnChange(fn func(*domain.Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
	return func() {}
}

func TestManager_FollowReadsLatestIdentity(t *testing.T) {
	fs := newFakeStore()
	fs.set("c1", rec("a", "2024-01-01", "owner", "1"), rec("b", "2024-01-02", "owner", "2"))
	sources := []domain.SourceDescriptor{{ID: "s1", Type: domain.SourceGeneric, Collection: "c1", FeedLimit: 10,
		Predicate: domain.Predicate{Field: "owner", IdentityAttr: domain.IdentityID}}}
	agg := aggregate.New(aggregate.Config{Sources: sources}, nil)
	m := New(fs.mock(), agg, retry)

	src := &stubIdentity{current: &domain.Identity{ID: "1"}}
	m.Follow(src)
	require.NotNil(t, src.listener, "listener registered")

	// identity changes before the queued event is processed
	src.mu.Lock()
	src.current = &domain.Identity{ID: "2"}
	src.mu.Unlock()

	ev, ok := m.queue.TryDequeue()
	require.True(t, ok)
	m.process(context.Background(), ev)
	assert.Equal(t, "2", m.View().Identity.ID)

	require.Eventually(t, func() bool { return m.queue.Len() == 1 }, time.Second, time.Millisecond)
	ev, ok = m.queue.TryDequeue()
	require.True(t, ok)
	m.process(context.Background(), ev)
	assert.Equal(t, []string{"b"}, feedIDs(m.View()))
	m.cancelAll()
}
