// Package aggregate derives statistics and the merged activity feed from the snapshot cache.
// Every computation reads the full cache state and recounts from scratch, so the output
// depends only on the set of cached snapshots, never on the order they arrived in.
package aggregate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/livedash/pkg/cache"
	"github.com/umputun/livedash/pkg/classify"
	"github.com/umputun/livedash/pkg/domain"
)

// default feed bounds
const (
	DefaultFeedLimit           = 10
	DefaultRecentActivityLimit = 15
)

// Config defines sources and derived values
type Config struct {
	Sources               []domain.SourceDescriptor
	Counters              []CounterDef
	Breakdowns            []BreakdownDef
	FeedLimit             int
	RecentActivityLimit   int
	RecentActivitySources []domain.SourceID // empty means all sources of activities type
}

// Result is the derived output of one computation, shared and read-only
type Result struct {
	Statistics     domain.Statistics
	Feed           []domain.FeedEntry
	RecentActivity []domain.FeedEntry
	Status         map[domain.SourceID]domain.SourceStatus
	Errors         map[domain.SourceID]string
}

// Aggregator computes results from cache states. The only state it keeps is the last result,
// reused while the cache generation and all source revisions are unchanged.
type Aggregator struct {
	cfg        Config
	classifier *classify.Classifier
	ranker     Ranker
	recent     map[domain.SourceID]bool

	mu      sync.Mutex
	memoKey string
	memo    *Result
}

// New makes an aggregator. Zero limits are replaced with defaults.
func New(cfg Config, cl *classify.Classifier) *Aggregator {
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = DefaultFeedLimit
	}
	if cfg.RecentActivityLimit <= 0 {
		cfg.RecentActivityLimit = DefaultRecentActivityLimit
	}
	if cl == nil {
		cl = classify.New(classify.Config{})
	}

	recent := make(map[domain.SourceID]bool)
	for _, id := range cfg.RecentActivitySources {
		recent[id] = true
	}
	if len(recent) == 0 {
		for _, src := range cfg.Sources {
			if src.Type == domain.SourceActivities {
				recent[src.ID] = true
			}
		}
	}

	return &Aggregator{cfg: cfg, classifier: cl, ranker: NewRanker(cfg.Sources), recent: recent}
}

// Sources returns configured source descriptors in declaration order
func (a *Aggregator) Sources() []domain.SourceDescriptor {
	res := make([]domain.SourceDescriptor, len(a.cfg.Sources))
	copy(res, a.cfg.Sources)
	return res
}

// Compute derives the result from the cache state
func (a *Aggregator) Compute(state cache.State) Result {
	key := a.fingerprint(state)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.memo != nil && a.memoKey == key {
		return *a.memo
	}

	res := a.compute(state)
	a.memo, a.memoKey = &res, key
	return res
}

func (a *Aggregator) compute(state cache.State) Result {
	res := Result{
		Status: make(map[domain.SourceID]domain.SourceStatus, len(a.cfg.Sources)),
		Errors: make(map[domain.SourceID]string),
	}

	var feed, recent []domain.FeedEntry
	for _, src := range a.cfg.Sources {
		snap, ok := state.Snapshot(src.ID)
		switch {
		case !ok:
			res.Status[src.ID] = domain.StatusLoading
			continue
		case snap.Failed():
			res.Status[src.ID] = domain.StatusError
			res.Errors[src.ID] = snap.Err.Error()
			continue
		default:
			res.Status[src.ID] = domain.StatusOK
		}

		inFeed, inRecent := src.FeedLimit > 0, a.recent[src.ID]
		if !inFeed && !inRecent {
			continue
		}
		entries := a.classifyAll(src, snap.Records)
		if inFeed {
			feed = append(feed, a.ranker.Top(clone(entries), src.FeedLimit)...)
		}
		if inRecent {
			recent = append(recent, a.ranker.Top(clone(entries), a.cfg.RecentActivityLimit)...)
		}
	}

	res.Statistics = computeStats(a.cfg.Sources, a.cfg.Counters, a.cfg.Breakdowns, state, a.classifier)
	res.Feed = a.ranker.Merge(feed, a.cfg.FeedLimit)
	res.RecentActivity = a.ranker.Merge(recent, a.cfg.RecentActivityLimit)
	return res
}

func (a *Aggregator) classifyAll(src domain.SourceDescriptor, records []domain.Record) []domain.FeedEntry {
	entries := make([]domain.FeedEntry, 0, len(records))
	for _, rec := range records {
		if entry, ok := a.safeClassify(rec, src); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// safeClassify keeps a record that broke classification as a malformed generic entry
func (a *Aggregator) safeClassify(rec domain.Record, src domain.SourceDescriptor) (entry domain.FeedEntry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			lgr.Printf("[WARN] can't classify record %s/%s: %v", src.ID, rec.ID, r)
			rule := classify.RuleFor(domain.SourceGeneric)
			entry = domain.FeedEntry{ID: rec.ID, SourceID: src.ID, SourceType: src.Type, Title: rule.DefaultTitle,
				Timestamp: classify.Epoch, Category: rule.Category, Color: rule.Color, Urgency: rule.Urgency, Malformed: true}
			ok = true
		}
	}()
	return a.classifier.Classify(rec, src)
}

// fingerprint identifies a cache state by generation and per-source revisions
func (a *Aggregator) fingerprint(state cache.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", state.Generation)
	for _, src := range a.cfg.Sources {
		snap, ok := state.Snapshot(src.ID)
		if !ok {
			sb.WriteString("|-")
			continue
		}
		fmt.Fprintf(&sb, "|%d", snap.Revision)
	}
	return sb.String()
}

func clone(entries []domain.FeedEntry) []domain.FeedEntry {
	res := make([]domain.FeedEntry, len(entries))
	copy(res, entries)
	return res
}
