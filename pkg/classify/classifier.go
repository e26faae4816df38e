// Package classify turns raw source records into feed entries. It applies the keyword
// exclusion policy and the classification table, both pure and safe for concurrent use.
package classify

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/livedash/pkg/domain"
)

// DefaultKeywords excludes routine onboarding notices from the notification feed
var DefaultKeywords = []string{
	"enrollment", "enroll", "joining", "joined", "registration", "register",
	"student added", "new student", "student created", "account created",
	"welcome new student", "student registration", "enrolled student",
}

// DefaultKeepTypes are record types retained regardless of matching keywords
var DefaultKeepTypes = []string{"classroom_addition"}

// Epoch is the fallback timestamp of records without a usable time field
var Epoch = time.Unix(0, 0).UTC()

// Config holds exclusion settings, empty lists fall back to defaults
type Config struct {
	Keywords  []string
	KeepTypes []string
}

// Classifier selects, excludes and tags records
type Classifier struct {
	keywords  []string
	keepTypes map[string]bool
	policy    *bluemonday.Policy
}

// New makes a classifier with the given exclusion settings
func New(cfg Config) *Classifier {
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	keepTypes := cfg.KeepTypes
	if len(keepTypes) == 0 {
		keepTypes = DefaultKeepTypes
	}

	c := &Classifier{
		keywords:  make([]string, 0, len(keywords)),
		keepTypes: make(map[string]bool, len(keepTypes)),
		policy:    bluemonday.StrictPolicy(),
	}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.keywords = append(c.keywords, kw)
		}
	}
	for _, t := range keepTypes {
		c.keepTypes[t] = true
	}
	return c
}

// Excluded reports whether a record's title, message or type contains an exclusion keyword.
// Record types listed as kept are never excluded. Matching is substring containment on
// lowercased text, so unrelated text like "registration deadline" matches as well.
func (c *Classifier) Excluded(rec domain.Record) bool {
	if c.keepTypes[rec.Type] {
		return false
	}
	texts := []string{rec.String("title"), rec.String("message"), rec.Type}
	for _, text := range texts {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Visible reports whether a record of the given source type survives exclusion
func (c *Classifier) Visible(rec domain.Record, t domain.SourceType) bool {
	if !RuleFor(t).ExclusionEligible {
		return true
	}
	return !c.Excluded(rec)
}

// Classify builds the feed entry for a record, false means the record is excluded.
// Records without a usable timestamp are kept with the epoch time and marked malformed.
func (c *Classifier) Classify(rec domain.Record, desc domain.SourceDescriptor) (domain.FeedEntry, bool) {
	rule := RuleFor(desc.Type)
	if rule.ExclusionEligible && c.Excluded(rec) {
		return domain.FeedEntry{}, false
	}

	entry := domain.FeedEntry{
		ID:          rec.ID,
		SourceID:    desc.ID,
		SourceType:  desc.Type,
		Type:        rec.Type,
		Title:       c.clean(rec.FirstString(rule.TitleFields...)),
		Description: c.clean(rec.FirstString(rule.DescriptionFields...)),
		Category:    rule.Category,
		Color:       rule.Color,
		Urgency:     rule.Urgency,
		Icon:        rule.Icon,
	}
	if entry.Title == "" {
		entry.Title = rule.DefaultTitle
	}

	if style, ok := StyleFor(rec.Type); ok {
		entry.Category, entry.Color, entry.Urgency, entry.Icon = style.Category, style.Color, style.Urgency, style.Icon
	}

	ts, ok := Timestamp(rec, rule.TimeFields...)
	if !ok {
		ts, entry.Malformed = Epoch, true
	}
	entry.Timestamp = ts

	entry.Link = rec.String("link")
	if entry.Link == "" && rule.LinkPrefix != "" && rec.ID != "" {
		entry.Link = rule.LinkPrefix + rec.ID
	}
	return entry, true
}

// clean strips markup and collapses whitespace
func (c *Classifier) clean(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(c.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
