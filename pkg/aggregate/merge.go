package aggregate

import (
	"sort"

	"github.com/umputun/livedash/pkg/domain"
)

// Ranker orders feed entries by timestamp descending, then by source declaration order,
// then by id ascending
type Ranker struct {
	priority map[domain.SourceID]int
}

// NewRanker makes a ranker with priorities taken from the order of sources
func NewRanker(sources []domain.SourceDescriptor) Ranker {
	priority := make(map[domain.SourceID]int, len(sources))
	for i, src := range sources {
		if _, ok := priority[src.ID]; !ok {
			priority[src.ID] = i
		}
	}
	return Ranker{priority: priority}
}

// Less reports whether a ranks before b
func (r Ranker) Less(a, b domain.FeedEntry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	pa, pb := r.rank(a.SourceID), r.rank(b.SourceID)
	if pa != pb {
		return pa < pb
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.SourceType < b.SourceType
}

// Top sorts entries in place and returns at most limit of them
func (r Ranker) Top(entries []domain.FeedEntry, limit int) []domain.FeedEntry {
	sort.SliceStable(entries, func(i, j int) bool { return r.Less(entries[i], entries[j]) })
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Merge deduplicates entries by (source type, id), ranks them and truncates to limit.
// A duplicate replaces the earlier entry unless the earlier one is strictly newer.
func (r Ranker) Merge(entries []domain.FeedEntry, limit int) []domain.FeedEntry {
	idx := make(map[domain.EntryKey]int, len(entries))
	res := make([]domain.FeedEntry, 0, len(entries))
	for _, e := range entries {
		i, seen := idx[e.Key()]
		if !seen {
			idx[e.Key()] = len(res)
			res = append(res, e)
			continue
		}
		if !res[i].Timestamp.After(e.Timestamp) {
			res[i] = e
		}
	}
	return r.Top(res, limit)
}

// unknown sources rank after declared ones
func (r Ranker) rank(id domain.SourceID) int {
	if p, ok := r.priority[id]; ok {
		return p
	}
	return len(r.priority)
}
