package domain

import "strings"

// SourceID identifies one source within a session
type SourceID string

// SourceType selects the classification rule applied to a source's records
type SourceType string

// known source types
const (
	SourceStudents      SourceType = "students"
	SourceViolations    SourceType = "violations"
	SourceNotifications SourceType = "notifications"
	SourceActivities    SourceType = "activities"
	SourceLostFound     SourceType = "lost_found"
	SourceReceipts      SourceType = "receipts"
	SourceAnnouncements SourceType = "announcements"
	SourceGeneric       SourceType = "generic"
)

// identity attributes a predicate can bind to
const (
	IdentityEmail = "email"
	IdentityID    = "id"
)

// Identity is the active user of a session
type Identity struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
}

// Attr returns the identity attribute by name
func (i Identity) Attr(name string) string {
	switch strings.ToLower(name) {
	case IdentityEmail:
		return i.Email
	case IdentityID:
		return i.ID
	}
	return ""
}

// Predicate selects records whose Field equals the identity attribute IdentityAttr.
// An empty Field selects every record of the collection.
type Predicate struct {
	Field        string `json:"field,omitempty"`
	IdentityAttr string `json:"identity_attr,omitempty"`
}

// Scoped reports whether the predicate depends on the identity
func (p Predicate) Scoped() bool {
	return p.Field != ""
}

// SourceDescriptor identifies one external collection, the identity predicate over it
// and the ordering hint passed to the store.
type SourceDescriptor struct {
	ID         SourceID   `json:"id"`
	Type       SourceType `json:"type"`
	Collection string     `json:"collection"`
	Predicate  Predicate  `json:"predicate"`
	OrderBy    string     `json:"order_by,omitempty"`
	FeedLimit  int        `json:"feed_limit"` // max entries this source contributes to the feed, 0 disables
}

// Query is a store query bound to a concrete identity
type Query struct {
	Collection string
	Field      string // empty means unscoped
	Value      string
	OrderBy    string
}

// Resolve binds the descriptor's predicate to the identity
func (d SourceDescriptor) Resolve(identity Identity) Query {
	q := Query{Collection: d.Collection, OrderBy: d.OrderBy}
	if d.Predicate.Scoped() {
		q.Field = d.Predicate.Field
		q.Value = identity.Attr(d.Predicate.IdentityAttr)
	}
	return q
}
