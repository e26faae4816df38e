// Package rss renders dashboard feeds as RSS 2.0.
package rss

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/livedash/pkg/domain"
)

// Generator creates RSS feeds from feed entries
type Generator struct {
	baseURL string
}

// NewGenerator creates a new feed generator
func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// GenerateRSS renders entries of the view's feed, recent activity feed if recent is set
func (g *Generator) GenerateRSS(view domain.View, recent bool) (string, error) {
	title, entries, selfLink := "Dashboard activity", view.Feed, g.baseURL+"/rss"
	if recent {
		title, entries, selfLink = "Dashboard recent activity", view.RecentActivity, g.baseURL+"/rss?kind=recent"
	}
	if view.Identity != nil && view.Identity.Email != "" {
		title += " - " + view.Identity.Email
	}

	items := make([]*Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, g.convertToItem(e))
	}

	updated := view.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	feed := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &Channel{
			Title:         title,
			Link:          g.baseURL + "/",
			Description:   fmt.Sprintf("Latest %d updates across dashboard sources", len(items)),
			AtomLink:      &AtomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: updated.Format(time.RFC1123Z),
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}
	return xml.Header + string(output), nil
}

// convertToItem converts a feed entry to an RSS item
func (g *Generator) convertToItem(e domain.FeedEntry) *Item {
	link := e.Link
	if strings.HasPrefix(link, "/") {
		link = g.baseURL + link
	}

	categories := []string{string(e.Category)}
	if e.Urgency == domain.UrgencyHigh && e.Category != domain.CategoryUrgent {
		categories = append(categories, "urgent")
	}
	if e.Type != "" {
		categories = append(categories, e.Type)
	}

	return &Item{
		Title:       e.Title,
		Link:        link,
		GUID:        GUID{Value: string(e.SourceType) + ":" + e.ID},
		Description: e.Description,
		PubDate:     e.Timestamp.UTC().Format(time.RFC1123Z),
		Categories:  categories,
	}
}
