// Package subscription binds one source descriptor and identity to a live store query.
// Every delivery, records or error, becomes a full snapshot stamped with a revision from
// the subscription's own clock and is handed to the sink in revision order.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/google/uuid"

	"github.com/umputun/livedash/pkg/domain"
)

//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/handle.go -pkg mocks -skip-ensure -fmt goimports . Handle

// Store is a record store able to push full result sets of a query
type Store interface {
	Subscribe(q domain.Query, onSnapshot func([]domain.Record), onError func(error)) (Handle, error)
}

// Handle cancels an open store subscription
type Handle interface {
	Cancel()
}

// Sink receives snapshots together with the token of the subscription that produced them
type Sink func(token string, snap domain.Snapshot)

// Options defines retries of the initial store subscribe call
type Options struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// Subscription is a live binding of a source to the store. Cancel is idempotent and
// guarantees no sink call happens after it returns.
type Subscription struct {
	desc  domain.SourceDescriptor
	token string
	clock *Clock
	sink  Sink

	mu        sync.Mutex // serializes deliveries and guards cancelled
	cancelled bool
	handle    Handle

	stop context.CancelFunc
	done chan struct{}
}

// Open starts subscribing the source for the identity. The store call runs in background
// with retries; when all attempts fail an error snapshot is delivered to the sink.
func Open(ctx context.Context, desc domain.SourceDescriptor, identity domain.Identity, store Store, sink Sink, opts Options) *Subscription {
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		desc:  desc,
		token: uuid.NewString(),
		clock: NewClock(),
		sink:  sink,
		stop:  cancel,
		done:  make(chan struct{}),
	}

	go s.connect(ctx, desc.Resolve(identity), store, opts)
	return s
}

// Token returns the unique cancellation token of the subscription
func (s *Subscription) Token() string {
	return s.token
}

// Source returns the subscribed source id
func (s *Subscription) Source() domain.SourceID {
	return s.desc.ID
}

// Cancel stops the subscription and releases the store handle, safe to call multiple times
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()

	s.stop()
	<-s.done // connect finished, handle is final

	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
	lgr.Printf("[DEBUG] subscription %s cancelled, source %s", s.token, s.desc.ID)
}

// Cancelled reports whether Cancel was called
func (s *Subscription) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Subscription) connect(ctx context.Context, q domain.Query, store Store, opts Options) {
	defer close(s.done)

	retrier := repeater.NewBackoff(opts.Attempts, opts.Delay, repeater.WithMaxDelay(opts.MaxDelay))
	var h Handle
	err := retrier.Do(ctx, func() error {
		var subErr error
		h, subErr = store.Subscribe(q, s.onSnapshot, s.onError)
		if subErr != nil {
			lgr.Printf("[DEBUG] subscribe %s failed, %v", s.desc.ID, subErr)
		}
		return subErr
	})

	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		lgr.Printf("[WARN] can't subscribe to source %s, %v", s.desc.ID, err)
		s.onError(fmt.Errorf("subscribe %s: %w", q.Collection, err))
		return
	}

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

func (s *Subscription) onSnapshot(records []domain.Record) {
	s.deliver(domain.Snapshot{Records: records})
}

func (s *Subscription) onError(err error) {
	s.deliver(domain.Snapshot{Err: &domain.SourceError{Source: s.desc.ID, Err: err}})
}

// deliver stamps the snapshot and hands it to the sink, dropping it once cancelled
func (s *Subscription) deliver(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		lgr.Printf("[DEBUG] drop late delivery for cancelled subscription %s", s.token)
		return
	}
	snap.Source = s.desc.ID
	snap.Revision = s.clock.Next()
	snap.ReceivedAt = time.Now()
	s.sink(s.token, snap)
}
