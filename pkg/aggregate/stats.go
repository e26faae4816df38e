package aggregate

import (
	"strings"
	"unicode"

	"github.com/umputun/livedash/pkg/cache"
	"github.com/umputun/livedash/pkg/classify"
	"github.com/umputun/livedash/pkg/domain"
)

// TotalKey is the counter of all records across available sources
const TotalKey = "total"

// CounterDef counts records of one source matching a field condition. With empty Field every
// record counts. Values are compared case-insensitively; Negate counts non-matching records.
// AfterExclusion skips records removed by the feed exclusion rule.
type CounterDef struct {
	Name           string
	Source         domain.SourceID
	Field          string
	Values         []string
	Negate         bool
	AfterExclusion bool
}

// BreakdownDef counts records of one source grouped by a field value,
// producing counters named "<Name>.<value>"
type BreakdownDef struct {
	Name   string
	Source domain.SourceID
	Field  string
}

// DefaultCounters returns counters of the standard dashboard sources
func DefaultCounters() []CounterDef {
	return []CounterDef{
		{Name: "pendingViolations", Source: "violations", Field: "status", Values: []string{"pending"}},
		{Name: "resolvedViolations", Source: "violations", Field: "status", Values: []string{"resolved"}},
		{Name: "unreadNotifications", Source: "notifications", Field: "read", Values: []string{"true", "yes", "1"}, Negate: true, AfterExclusion: true},
		{Name: "pendingReceipts", Source: "receipts", Field: "status", Values: []string{"pending"}},
		{Name: "approvedReceipts", Source: "receipts", Field: "status", Values: []string{"approved", "verified"}},
		{Name: "unclaimedLostFound", Source: "lost_found", Field: "status", Values: []string{"lost", "unclaimed"}},
	}
}

// DefaultBreakdowns returns breakdowns of the standard dashboard sources
func DefaultBreakdowns() []BreakdownDef {
	return []BreakdownDef{
		{Name: "violationsBySeverity", Source: "violations", Field: "severity"},
		{Name: "receiptsByStatus", Source: "receipts", Field: "status"},
	}
}

// TotalKeyFor returns per-source total counter name, e.g. "lost_found" -> "totalLostFound"
func TotalKeyFor(id domain.SourceID) string {
	parts := strings.FieldsFunc(string(id), func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var sb strings.Builder
	sb.WriteString(TotalKey)
	for _, p := range parts {
		runes := []rune(strings.ToLower(p))
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	return sb.String()
}

// computeStats recounts every counter from the records of available sources.
// Sources in error or still loading contribute zero.
func computeStats(sources []domain.SourceDescriptor, counters []CounterDef, breakdowns []BreakdownDef,
	state cache.State, cl *classify.Classifier) domain.Statistics {

	stats := domain.Statistics{TotalKey: 0}
	available := make(map[domain.SourceID][]domain.Record, len(sources))
	types := make(map[domain.SourceID]domain.SourceType, len(sources))

	for _, src := range sources {
		types[src.ID] = src.Type
		key := TotalKeyFor(src.ID)
		stats[key] = 0
		snap, ok := state.Snapshot(src.ID)
		if !ok || snap.Failed() {
			continue
		}
		available[src.ID] = snap.Records
		stats[key] = len(snap.Records)
		stats[TotalKey] += len(snap.Records)
	}

	for _, def := range counters {
		count := 0
		for _, rec := range available[def.Source] {
			if def.AfterExclusion && !cl.Visible(rec, types[def.Source]) {
				continue
			}
			if matches(rec, def) {
				count++
			}
		}
		stats[def.Name] = count
	}

	for _, def := range breakdowns {
		for _, rec := range available[def.Source] {
			val := strings.ToLower(strings.TrimSpace(rec.String(def.Field)))
			if val == "" {
				val = "unknown"
			}
			stats[def.Name+"."+val]++
		}
	}
	return stats
}

func matches(rec domain.Record, def CounterDef) bool {
	if def.Field == "" {
		return true
	}
	val := strings.ToLower(strings.TrimSpace(rec.String(def.Field)))
	found := false
	for _, v := range def.Values {
		if strings.EqualFold(v, val) {
			found = true
			break
		}
	}
	return found != def.Negate
}
