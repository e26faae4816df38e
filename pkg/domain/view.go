package domain

import "time"

// Category is the display category of a feed entry
type Category string

// feed entry categories
const (
	CategoryUrgent        Category = "urgent"
	CategoryInformational Category = "informational"
	CategoryFinancial     Category = "financial"
	CategoryAcademic      Category = "academic"
	CategoryAnnouncement  Category = "announcement"
	CategoryActivity      Category = "activity"
	CategoryGeneral       Category = "general"
)

// Urgency orders entries by how quickly they need attention
type Urgency string

// urgency levels
const (
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
	UrgencyLow    Urgency = "low"
)

// FeedEntry is a classified record normalized for the activity feed
type FeedEntry struct {
	ID          string     `json:"id"`
	SourceID    SourceID   `json:"source_id"`
	SourceType  SourceType `json:"source_type"`
	Type        string     `json:"type,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Category    Category   `json:"category"`
	Color       string     `json:"color"`
	Urgency     Urgency    `json:"urgency"`
	Icon        string     `json:"icon,omitempty"`
	Link        string     `json:"link,omitempty"`
	Malformed   bool       `json:"malformed,omitempty"`
}

// EntryKey identifies a feed entry across sources
type EntryKey struct {
	SourceType SourceType
	ID         string
}

// Key returns the deduplication key of the entry
func (e FeedEntry) Key() EntryKey {
	return EntryKey{SourceType: e.SourceType, ID: e.ID}
}

// Statistics maps counter names to values recomputed from current snapshots
type Statistics map[string]int

// SessionState is the lifecycle state of a session
type SessionState string

// session states
const (
	StateIdle        SessionState = "idle"
	StateSubscribing SessionState = "subscribing"
	StateActive      SessionState = "active"
)

// View is the read-only derived state published after each recomputation
type View struct {
	Identity       *Identity                 `json:"identity,omitempty"`
	State          SessionState              `json:"state"`
	Statistics     Statistics                `json:"statistics"`
	Feed           []FeedEntry               `json:"feed"`
	RecentActivity []FeedEntry               `json:"recent_activity"`
	Status         map[SourceID]SourceStatus `json:"status"`
	Errors         map[SourceID]string       `json:"errors,omitempty"`
	Revision       uint64                    `json:"revision"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}
