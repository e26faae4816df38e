package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/livedash/pkg/cache"
	"github.com/umputun/livedash/pkg/classify"
	"github.com/umputun/livedash/pkg/domain"
)

func rec(id, ts string, fields ...any) domain.Record {
	r := domain.Record{ID: id, Fields: map[string]any{"timestamp": ts, "title": "title " + id}}
	for i := 0; i+1 < len(fields); i += 2 {
		r.Fields[fields[i].(string)] = fields[i+1]
	}
	return r
}

func typed(r domain.Record, t string) domain.Record {
	r.Type = t
	return r
}

func ids(entries []domain.FeedEntry) []string {
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.ID)
	}
	return res
}

func dashboardSources() []domain.SourceDescriptor {
	return []domain.SourceDescriptor{
		{ID: "violations", Type: domain.SourceViolations, Collection: "violations", FeedLimit: 5},
		{ID: "notifications", Type: domain.SourceNotifications, Collection: "notifications", FeedLimit: 5},
		{ID: "announcements", Type: domain.SourceAnnouncements, Collection: "announcements", FeedLimit: 5},
		{ID: "activities", Type: domain.SourceActivities, Collection: "activities", FeedLimit: 10},
		{ID: "receipts", Type: domain.SourceReceipts, Collection: "receipts", FeedLimit: 3},
	}
}

func newAggregator(sources []domain.SourceDescriptor) *Aggregator {
	return New(Config{Sources: sources, Counters: DefaultCounters(), Breakdowns: DefaultBreakdowns()}, classify.New(classify.Config{}))
}

func TestAggregator_EndToEnd(t *testing.T) {
	sources := []domain.SourceDescriptor{
		{ID: "s1", Type: domain.SourceGeneric, FeedLimit: 10},
		{ID: "s2", Type: domain.SourceGeneric, FeedLimit: 10},
	}
	agg := newAggregator(sources)
	c := cache.New()

	res := agg.Compute(c.State())
	assert.Equal(t, domain.StatusLoading, res.Status["s1"])
	assert.Empty(t, res.Feed)
	assert.Equal(t, 0, res.Statistics[TotalKey])

	c.Update("s1", domain.Snapshot{Revision: 1, Records: []domain.Record{{ID: "a", Fields: map[string]any{"ts": "2024-01-01"}}}})
	c.Update("s2", domain.Snapshot{Revision: 1, Records: []domain.Record{{ID: "b", Fields: map[string]any{"ts": "2024-02-01"}}}})

	res = agg.Compute(c.State())
	assert.Equal(t, []string{"b", "a"}, ids(res.Feed))
	assert.Equal(t, 2, res.Statistics[TotalKey])
	assert.Equal(t, 1, res.Statistics["totalS1"])
	assert.Equal(t, domain.StatusOK, res.Status["s1"])
	assert.Equal(t, domain.StatusOK, res.Status["s2"])
}

func TestAggregator_Idempotence(t *testing.T) {
	c := cache.New()
	c.Update("violations", domain.Snapshot{Revision: 1, Records: []domain.Record{
		rec("v1", "2024-01-02", "status", "Pending"), rec("v2", "2024-01-03", "status", "Resolved"),
	}})
	c.Update("notifications", domain.Snapshot{Revision: 4, Records: []domain.Record{rec("n1", "2024-01-05")}})

	agg := newAggregator(dashboardSources())
	first := agg.Compute(c.State())
	second := agg.Compute(c.State())
	assert.Equal(t, first, second)

	fresh := newAggregator(dashboardSources()).Compute(c.State())
	assert.Equal(t, first, fresh, "memoized result equals a fresh computation")
}

func TestAggregator_Commutativity(t *testing.T) {
	snapA := domain.Snapshot{Revision: 3, Records: []domain.Record{rec("v1", "2024-01-02T10:00:00Z", "status", "pending")}}
	snapB := domain.Snapshot{Revision: 7, Records: []domain.Record{rec("a1", "2024-01-02T10:00:00Z"), rec("a2", "2024-01-01")}}

	ab := cache.New()
	ab.Update("violations", snapA)
	ab.Update("announcements", snapB)

	ba := cache.New()
	ba.Update("announcements", snapB)
	ba.Update("violations", snapA)

	resAB := newAggregator(dashboardSources()).Compute(ab.State())
	resBA := newAggregator(dashboardSources()).Compute(ba.State())
	assert.Equal(t, resAB, resBA)
	assert.Equal(t, []string{"v1", "a1", "a2"}, ids(resAB.Feed), "equal timestamps ordered by source declaration")
}

func TestAggregator_Dedup(t *testing.T) {
	t.Run("same type across sources keeps the later timestamp", func(t *testing.T) {
		sources := []domain.SourceDescriptor{
			{ID: "personal", Type: domain.SourceNotifications, FeedLimit: 5},
			{ID: "broadcast", Type: domain.SourceNotifications, FeedLimit: 5},
		}
		c := cache.New()
		c.Update("personal", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("n1", "2024-03-01")}})
		c.Update("broadcast", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("n1", "2024-01-01"), rec("n2", "2024-02-01")}})

		res := newAggregator(sources).Compute(c.State())
		require.Len(t, res.Feed, 2)
		assert.Equal(t, "n1", res.Feed[0].ID)
		assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(res.Feed[0].Timestamp))
		assert.Equal(t, "n2", res.Feed[1].ID)
	})

	t.Run("newer snapshot supersedes older one", func(t *testing.T) {
		sources := []domain.SourceDescriptor{{ID: "announcements", Type: domain.SourceAnnouncements, FeedLimit: 5}}
		agg := newAggregator(sources)
		c := cache.New()
		c.Update("announcements", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("x", "2024-01-01")}})
		c.Update("announcements", domain.Snapshot{Revision: 2, Records: []domain.Record{rec("x", "2024-06-01")}})

		res := agg.Compute(c.State())
		require.Len(t, res.Feed, 1)
		assert.True(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Equal(res.Feed[0].Timestamp))
	})

	t.Run("same id in different source types is kept twice", func(t *testing.T) {
		c := cache.New()
		c.Update("violations", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("1", "2024-01-01")}})
		c.Update("announcements", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("1", "2024-01-01")}})
		res := newAggregator(dashboardSources()).Compute(c.State())
		assert.Len(t, res.Feed, 2)
	})
}

func TestAggregator_PartialFailure(t *testing.T) {
	c := cache.New()
	c.Update("violations", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("v1", "2024-01-09", "status", "pending")}})
	c.Update("announcements", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("a1", "2024-01-02"), rec("a2", "2024-01-03")}})
	c.Update("violations", domain.Snapshot{Revision: 2, Err: errors.New("permission denied")})

	res := newAggregator(dashboardSources()).Compute(c.State())
	assert.Equal(t, domain.StatusError, res.Status["violations"])
	assert.Equal(t, "permission denied", res.Errors["violations"])
	assert.Equal(t, domain.StatusOK, res.Status["announcements"])
	assert.Equal(t, domain.StatusLoading, res.Status["receipts"])

	assert.Equal(t, 2, res.Statistics["totalAnnouncements"])
	assert.Equal(t, 0, res.Statistics["totalViolations"])
	assert.Equal(t, 0, res.Statistics["pendingViolations"])
	assert.Equal(t, 2, res.Statistics[TotalKey])
	assert.Equal(t, []string{"a2", "a1"}, ids(res.Feed))
}

func TestAggregator_Statistics(t *testing.T) {
	c := cache.New()
	c.Update("violations", domain.Snapshot{Revision: 1, Records: []domain.Record{
		rec("v1", "2024-01-01", "status", "Pending", "severity", "Major"),
		rec("v2", "2024-01-01", "status", "pending", "severity", "minor"),
		rec("v3", "2024-01-01", "status", "Resolved", "severity", "minor"),
		rec("v4", "2024-01-01"),
	}})
	c.Update("notifications", domain.Snapshot{Revision: 1, Records: []domain.Record{
		typed(rec("n1", "2024-01-01", "read", false), "violation"),
		typed(rec("n2", "2024-01-01", "read", true), "violation"),
		typed(rec("n3", "2024-01-01"), "announcement"),
		typed(domain.Record{ID: "n4", Fields: map[string]any{"title": "Welcome new student John"}}, "general"),
		typed(domain.Record{ID: "n5", Fields: map[string]any{"title": "Welcome new student John"}}, "classroom_addition"),
	}})
	c.Update("receipts", domain.Snapshot{Revision: 1, Records: []domain.Record{
		rec("r1", "2024-01-01", "status", "approved"),
		rec("r2", "2024-01-01", "status", "Verified"),
		rec("r3", "2024-01-01", "status", "pending"),
	}})

	res := newAggregator(dashboardSources()).Compute(c.State())
	st := res.Statistics
	assert.Equal(t, 4, st["totalViolations"])
	assert.Equal(t, 2, st["pendingViolations"])
	assert.Equal(t, 1, st["resolvedViolations"])
	assert.Equal(t, 5, st["totalNotifications"])
	assert.Equal(t, 3, st["unreadNotifications"], "excluded notification never counts as unread")
	assert.Equal(t, 1, st["pendingReceipts"])
	assert.Equal(t, 2, st["approvedReceipts"])
	assert.Equal(t, 0, st["unclaimedLostFound"])
	assert.Equal(t, 1, st["violationsBySeverity.major"])
	assert.Equal(t, 2, st["violationsBySeverity.minor"])
	assert.Equal(t, 1, st["violationsBySeverity.unknown"])
	assert.Equal(t, 1, st["receiptsByStatus.verified"])
	assert.Equal(t, 12, st[TotalKey])
	assert.Equal(t, 0, st["totalActivities"])

	for _, e := range res.Feed {
		assert.NotEqual(t, "n4", e.ID, "excluded notification never reaches the feed")
	}
}

func TestAggregator_BoundedFeed(t *testing.T) {
	sources := []domain.SourceDescriptor{
		{ID: "first", Type: domain.SourceGeneric, FeedLimit: 50},
		{ID: "second", Type: domain.SourceAnnouncements, FeedLimit: 50},
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var all []domain.FeedEntry
	c := cache.New()
	for si, src := range sources {
		var recs []domain.Record
		for i := 0; i < 25; i++ {
			id := fmt.Sprintf("%s-%02d", src.ID, i)
			ts := base.Add(time.Duration(i/4) * time.Hour) // groups of equal timestamps
			recs = append(recs, domain.Record{ID: id, Fields: map[string]any{"timestamp": ts.Format(time.RFC3339)}})
			all = append(all, domain.FeedEntry{ID: id, SourceID: src.ID, Timestamp: ts, Color: fmt.Sprint(si)})
		}
		c.Update(src.ID, domain.Snapshot{Revision: 1, Records: recs})
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		if all[i].Color != all[j].Color {
			return all[i].Color < all[j].Color
		}
		return all[i].ID < all[j].ID
	})

	res := newAggregator(sources).Compute(c.State())
	require.Len(t, res.Feed, DefaultFeedLimit)
	assert.Equal(t, ids(all[:DefaultFeedLimit]), ids(res.Feed))
	assert.Equal(t, "first-24", res.Feed[0].ID)
	assert.Equal(t, "second-24", res.Feed[1].ID)
	assert.Equal(t, "first-20", res.Feed[2].ID)
}

func TestAggregator_PerSourceLimit(t *testing.T) {
	sources := []domain.SourceDescriptor{
		{ID: "receipts", Type: domain.SourceReceipts, FeedLimit: 2},
		{ID: "students", Type: domain.SourceStudents, FeedLimit: 0},
	}
	c := cache.New()
	c.Update("receipts", domain.Snapshot{Revision: 1, Records: []domain.Record{
		rec("r1", "2024-01-01"), rec("r2", "2024-01-04"), rec("r3", "2024-01-03"), rec("r4", "2024-01-02"),
	}})
	c.Update("students", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("s1", "2024-05-01")}})

	res := newAggregator(sources).Compute(c.State())
	assert.Equal(t, []string{"r2", "r3"}, ids(res.Feed), "most recent K of the source, students excluded from feed")
	assert.Equal(t, 1, res.Statistics["totalStudents"])
}

func TestAggregator_MalformedSortsLast(t *testing.T) {
	sources := []domain.SourceDescriptor{{ID: "announcements", Type: domain.SourceAnnouncements, FeedLimit: 5}}
	c := cache.New()
	c.Update("announcements", domain.Snapshot{Revision: 1, Records: []domain.Record{
		{ID: "broken", Fields: map[string]any{"title": "no time"}},
		rec("ok", "1999-01-01"),
	}})

	res := newAggregator(sources).Compute(c.State())
	require.Len(t, res.Feed, 2)
	assert.Equal(t, "ok", res.Feed[0].ID)
	assert.Equal(t, "broken", res.Feed[1].ID)
	assert.True(t, res.Feed[1].Malformed)
	assert.True(t, classify.Epoch.Equal(res.Feed[1].Timestamp))
}

func TestAggregator_RecentActivity(t *testing.T) {
	sources := []domain.SourceDescriptor{
		{ID: "activities", Type: domain.SourceActivities, FeedLimit: 3},
		{ID: "announcements", Type: domain.SourceAnnouncements, FeedLimit: 3},
	}
	var recs []domain.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, rec(fmt.Sprintf("act-%02d", i), fmt.Sprintf("2024-01-%02d", i+1)))
	}
	c := cache.New()
	c.Update("activities", domain.Snapshot{Revision: 1, Records: recs})
	c.Update("announcements", domain.Snapshot{Revision: 1, Records: []domain.Record{rec("ann", "2025-01-01")}})

	res := newAggregator(sources).Compute(c.State())
	require.Len(t, res.RecentActivity, DefaultRecentActivityLimit)
	assert.Equal(t, "act-19", res.RecentActivity[0].ID)
	assert.Equal(t, "act-05", res.RecentActivity[14].ID)
	assert.Equal(t, []string{"ann", "act-19", "act-18", "act-17"}, ids(res.Feed))
}

func TestTotalKeyFor(t *testing.T) {
	assert.Equal(t, "totalAnnouncements", TotalKeyFor("announcements"))
	assert.Equal(t, "totalLostFound", TotalKeyFor("lost_found"))
	assert.Equal(t, "totalMyFeed", TotalKeyFor("my-feed"))
	assert.Equal(t, "total", TotalKeyFor(""))
}

func TestAggregator_UnreadNotificationsTruthyValues(t *testing.T) {
	c := cache.New()
	c.Update("notifications", domain.Snapshot{Revision: 1, Records: []domain.Record{
		rec("n1", "2024-01-01", "read", float64(1)),
		rec("n2", "2024-01-01", "read", "yes"),
		rec("n3", "2024-01-01", "read", "TRUE"),
		rec("n4", "2024-01-01", "read", float64(0)),
		rec("n5", "2024-01-01", "read", "no"),
		rec("n6", "2024-01-01"),
	}})

	res := newAggregator(dashboardSources()).Compute(c.State())
	assert.Equal(t, 6, res.Statistics["totalNotifications"])
	assert.Equal(t, 3, res.Statistics["unreadNotifications"])
}
