// Package timegroup buckets conversations into calendar-relative groups for
// sidebar display (Today, Yesterday, This Week, This Month, Older).
//
// Day boundaries are UTC calendar days, not raw 24h windows, so a
// conversation from 23:59 yesterday and one from 00:01 today never land in
// the same bucket by sub-day rounding.
package timegroup

import (
	"time"

	"treechat-backend/internal/models"
)

// Bucket labels, in display order.
const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	LabelThisWeek  = "This Week"
	LabelThisMonth = "This Month"
	LabelOlder     = "Older"
)

var labelOrder = []string{
	LabelToday,
	LabelYesterday,
	LabelThisWeek,
	LabelThisMonth,
	LabelOlder,
}

// Group is one non-empty bucket of conversations.
type Group struct {
	Label string                `json:"label"`
	Items []models.Conversation `json:"items"`
}

// timestampFormats are tried in order when parsing conversation timestamps.
// The backend emits RFC 3339, but older rows may lack a zone suffix.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// utcDay truncates t to midnight of its UTC calendar day.
func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// LabelFor returns the bucket label for a single timestamp string relative
// to now. Unparseable timestamps land in Older.
func LabelFor(value string, now time.Time) string {
	t, ok := parseTimestamp(value)
	if !ok {
		return LabelOlder
	}

	diffDays := int(utcDay(now).Sub(utcDay(t)).Hours() / 24)

	switch {
	case diffDays <= 0:
		return LabelToday
	case diffDays == 1:
		return LabelYesterday
	case diffDays <= 7:
		return LabelThisWeek
	case diffDays <= 30:
		return LabelThisMonth
	default:
		return LabelOlder
	}
}

// ByTime partitions conversations into ordered buckets, preferring each
// conversation's updated_at and falling back to created_at. Empty buckets
// are omitted; insertion order within a bucket follows the input. The input
// slice is not mutated.
func ByTime(conversations []models.Conversation, now time.Time) []Group {
	buckets := make(map[string][]models.Conversation, len(labelOrder))
	for _, conv := range conversations {
		stamp := conv.UpdatedAt
		if stamp == "" {
			stamp = conv.CreatedAt
		}
		label := LabelFor(stamp, now)
		buckets[label] = append(buckets[label], conv)
	}

	groups := make([]Group, 0, len(buckets))
	for _, label := range labelOrder {
		if items, ok := buckets[label]; ok {
			groups = append(groups, Group{Label: label, Items: items})
		}
	}
	return groups
}
