package classify

import (
	"strings"

	"github.com/umputun/livedash/pkg/domain"
)

// Rule describes how records of one source type are presented in the feed
type Rule struct {
	Category          domain.Category
	Color             string
	Urgency           domain.Urgency
	Icon              string
	ExclusionEligible bool // records are checked against the exclusion keywords
	TitleFields       []string
	DescriptionFields []string
	TimeFields        []string
	LinkPrefix        string
	DefaultTitle      string
}

// Style overrides presentation for a specific record type
type Style struct {
	Category domain.Category
	Color    string
	Urgency  domain.Urgency
	Icon     string
}

// fallbackTimeFields are tried after the rule's own time fields
var fallbackTimeFields = []string{"timestamp", "createdAt", "created_at", "ts", "date", "updatedAt"}

var sourceRules = map[domain.SourceType]Rule{
	domain.SourceViolations: {
		Category: domain.CategoryUrgent, Color: "red", Urgency: domain.UrgencyHigh, Icon: "alert-triangle",
		TitleFields:       []string{"violationType", "title", "type"},
		DescriptionFields: []string{"description", "details", "remarks"},
		TimeFields:        []string{"createdAt", "dateReported", "timestamp"},
		LinkPrefix:        "/violations/", DefaultTitle: "Violation",
	},
	domain.SourceNotifications: {
		Category: domain.CategoryGeneral, Color: "blue", Urgency: domain.UrgencyNormal, Icon: "bell",
		ExclusionEligible: true,
		TitleFields:       []string{"title", "subject"},
		DescriptionFields: []string{"message", "body"},
		TimeFields:        []string{"createdAt", "timestamp", "sentAt"},
		LinkPrefix:        "/notifications/", DefaultTitle: "Notification",
	},
	domain.SourceActivities: {
		Category: domain.CategoryActivity, Color: "purple", Urgency: domain.UrgencyLow, Icon: "activity",
		TitleFields:       []string{"title", "action"},
		DescriptionFields: []string{"description", "details"},
		TimeFields:        []string{"timestamp", "createdAt"},
		LinkPrefix:        "/activities/", DefaultTitle: "Activity",
	},
	domain.SourceLostFound: {
		Category: domain.CategoryInformational, Color: "amber", Urgency: domain.UrgencyNormal, Icon: "search",
		TitleFields:       []string{"itemName", "title", "name"},
		DescriptionFields: []string{"description", "location"},
		TimeFields:        []string{"dateReported", "createdAt", "timestamp"},
		LinkPrefix:        "/lost-found/", DefaultTitle: "Lost & found report",
	},
	domain.SourceReceipts: {
		Category: domain.CategoryFinancial, Color: "green", Urgency: domain.UrgencyNormal, Icon: "receipt",
		TitleFields:       []string{"title", "purpose", "receiptType"},
		DescriptionFields: []string{"description", "status"},
		TimeFields:        []string{"submittedAt", "createdAt", "timestamp"},
		LinkPrefix:        "/receipts/", DefaultTitle: "Receipt submission",
	},
	domain.SourceAnnouncements: {
		Category: domain.CategoryAnnouncement, Color: "indigo", Urgency: domain.UrgencyNormal, Icon: "megaphone",
		TitleFields:       []string{"title"},
		DescriptionFields: []string{"content", "message", "body"},
		TimeFields:        []string{"createdAt", "date", "timestamp"},
		LinkPrefix:        "/announcements/", DefaultTitle: "Announcement",
	},
	domain.SourceStudents: {
		Category: domain.CategoryAcademic, Color: "teal", Urgency: domain.UrgencyLow, Icon: "user",
		TitleFields:       []string{"name", "fullName", "email"},
		DescriptionFields: []string{"section", "course", "yearLevel"},
		TimeFields:        []string{"createdAt", "enrolledAt", "timestamp"},
		LinkPrefix:        "/students/", DefaultTitle: "Student",
	},
	domain.SourceGeneric: {
		Category: domain.CategoryGeneral, Color: "gray", Urgency: domain.UrgencyLow, Icon: "circle",
		TitleFields:       []string{"title", "name"},
		DescriptionFields: []string{"description", "message"},
		DefaultTitle:      "Update",
	},
}

// typeStyles maps record types (mostly notification types) to presentation overrides
var typeStyles = map[string]Style{
	"violation":          {Category: domain.CategoryUrgent, Color: "red", Urgency: domain.UrgencyHigh, Icon: "alert-triangle"},
	"violation_resolved": {Category: domain.CategoryInformational, Color: "green", Urgency: domain.UrgencyLow, Icon: "check"},
	"announcement":       {Category: domain.CategoryAnnouncement, Color: "indigo", Urgency: domain.UrgencyNormal, Icon: "megaphone"},
	"classroom_addition": {Category: domain.CategoryAcademic, Color: "teal", Urgency: domain.UrgencyNormal, Icon: "users"},
	"receipt":            {Category: domain.CategoryFinancial, Color: "green", Urgency: domain.UrgencyNormal, Icon: "receipt"},
	"receipt_status":     {Category: domain.CategoryFinancial, Color: "green", Urgency: domain.UrgencyNormal, Icon: "receipt"},
	"lost_found":         {Category: domain.CategoryInformational, Color: "amber", Urgency: domain.UrgencyNormal, Icon: "search"},
	"reminder":           {Category: domain.CategoryGeneral, Color: "orange", Urgency: domain.UrgencyNormal, Icon: "clock"},
	"event":              {Category: domain.CategoryActivity, Color: "purple", Urgency: domain.UrgencyLow, Icon: "calendar"},
}

// RuleFor returns the rule of a source type, unknown types get the generic rule
func RuleFor(t domain.SourceType) Rule {
	if r, ok := sourceRules[t]; ok {
		return r
	}
	return sourceRules[domain.SourceGeneric]
}

// StyleFor returns the presentation override of a record type
func StyleFor(recordType string) (Style, bool) {
	s, ok := typeStyles[strings.ToLower(strings.TrimSpace(recordType))]
	return s, ok
}

// KnownSourceType reports whether the source type has its own rule
func KnownSourceType(t domain.SourceType) bool {
	_, ok := sourceRules[t]
	return ok
}
