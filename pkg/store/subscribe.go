package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/livedash/pkg/domain"
	"github.com/umputun/livedash/pkg/subscription"
)

// pollHandle stops a poller and waits for it to exit
type pollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops polling, no callback is made after it returns
func (h *pollHandle) Cancel() {
	h.once.Do(h.cancel)
	<-h.done
}

// Subscribe starts polling the query. The first full result set is delivered right away,
// then a new one every time the collection version changes. Query errors are reported
// once per failure streak and polling continues, so the subscriber recovers on the next
// successful poll.
func (s *Store) Subscribe(q domain.Query, onSnapshot func([]domain.Record), onError func(error)) (subscription.Handle, error) {
	if q.Collection == "" {
		return nil, errors.New("empty collection name")
	}
	if onSnapshot == nil || onError == nil {
		return nil, errors.New("nil subscription callback")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &pollHandle{cancel: cancel, done: make(chan struct{})}
	go s.poll(ctx, q, onSnapshot, onError, h.done)
	lgr.Printf("[DEBUG] subscribed to %s, %s=%q", q.Collection, q.Field, q.Value)
	return h, nil
}

func (s *Store) poll(ctx context.Context, q domain.Query, onSnapshot func([]domain.Record), onError func(error), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	lastVersion := int64(-1)
	failed := false

	check := func() {
		ver, err := s.Version(ctx, q.Collection)
		if err == nil && ver == lastVersion && !failed {
			return // unchanged
		}
		var recs []domain.Record
		if err == nil {
			recs, err = s.Records(ctx, q)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !failed {
				lgr.Printf("[WARN] poll %s failed, %v", q.Collection, err)
				onError(fmt.Errorf("poll %s: %w", q.Collection, err))
			}
			failed = true
			return
		}
		lastVersion, failed = ver, false
		onSnapshot(recs)
	}

	for {
		changed := s.changes()
		check()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-changed:
		}
	}
}
