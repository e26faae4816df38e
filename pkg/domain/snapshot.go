package domain

import "time"

// Snapshot is the full set of records matching a source's predicate at a given revision.
// A snapshot always replaces the previous one for its source.
type Snapshot struct {
	Source     SourceID
	Revision   int64
	Records    []Record
	Err        error
	ReceivedAt time.Time
}

// Failed reports whether the snapshot carries a subscription error
func (s Snapshot) Failed() bool {
	return s.Err != nil
}

// SourceStatus is the per-source state exposed to the presentation layer
type SourceStatus string

// source statuses
const (
	StatusOK      SourceStatus = "ok"
	StatusError   SourceStatus = "error"
	StatusLoading SourceStatus = "loading"
)
