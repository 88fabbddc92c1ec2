// Package bucket maps entry timestamps to vague, human-sized ages.
package bucket

import (
	"time"

	"github.com/pbaille/journal/internal/domain"
)

// Label is a coarse description of how long ago something happened
type Label string

const (
	JustNow     Label = "Just now"
	Today       Label = "Today"
	Yesterday   Label = "Yesterday"
	ThisWeek    Label = "This week"
	Earlier     Label = "Earlier"
	SomeTimeAgo Label = "Some time ago"
	LongTimeAgo Label = "A long time ago"
)

const day = 24 * time.Hour

// limits are checked in order; the first one the elapsed time falls under wins
var limits = []struct {
	under time.Duration
	label Label
}{
	{time.Hour, JustNow},
	{day, Today},
	{2 * day, Yesterday},
	{7 * day, ThisWeek},
	{30 * day, Earlier},
	{90 * day, SomeTimeAgo},
}

// Of returns the label for ts as seen from now.
// Timestamps in the future count as just now.
func Of(ts, now time.Time) Label {
	elapsed := now.Sub(ts)
	for _, l := range limits {
		if elapsed < l.under {
			return l.label
		}
	}
	return LongTimeAgo
}

// Group is a run of consecutive entries sharing a label
type Group struct {
	Label   Label          `json:"label"`
	Entries []domain.Entry `json:"entries"`
}

// GroupEntries splits entries into runs of equal labels, keeping input
// order. A label that reappears after a different one starts a new group.
func GroupEntries(entries []domain.Entry, now time.Time) []Group {
	var groups []Group
	for _, e := range entries {
		label := Of(e.Timestamp, now)
		if n := len(groups); n > 0 && groups[n-1].Label == label {
			groups[n-1].Entries = append(groups[n-1].Entries, e)
			continue
		}
		groups = append(groups, Group{Label: label, Entries: []domain.Entry{e}})
	}
	return groups
}
