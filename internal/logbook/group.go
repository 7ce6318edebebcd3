// Package logbook turns scraped portal logbook rows into Nightscout treatments.
//
// Rows are localized to absolute timestamps, bucketed into groups of rows
// logged close together (Grouper), and each group is matched against an
// ordered table of treatment shapes (Classifier). Reconciler runs both and
// collects the results into a Report. Nothing in this package does I/O.
package logbook

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jwulff/mylife-sync/internal/domain"
)

// DefaultInterval is the grouping window used when none is configured.
const DefaultInterval = 5 * time.Minute

// Portal date/time layouts, e.g. "26.08.23" and "18:25".
var timestampLayouts = []string{
	"02.01.06 15:04",
	"02.01.06 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
}

// Grouper buckets entries into groups of rows logged close together.
type Grouper struct {
	Location *time.Location // Zone of the portal's date/time columns
	Interval time.Duration  // Window width measured back from a group's newest row
}

// NewGrouper creates a grouper. A non-positive interval means DefaultInterval
// and a nil location means UTC.
func NewGrouper(loc *time.Location, interval time.Duration) Grouper {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Grouper{Location: loc, Interval: interval}
}

// Timestamp converts an entry's local date and time to a UTC instant.
func (g Grouper) Timestamp(e domain.Entry) (time.Time, error) {
	local := strings.TrimSpace(e.Date) + " " + strings.TrimSpace(e.Time)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, local, g.Location); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date/time not in dd.mm.yy hh:mm form", ErrMalformedValue)
}

// Localize returns copies of entries with Timestamp set. Entries whose
// date or time cannot be parsed are left out and reported.
func (g Grouper) Localize(entries []domain.Entry) ([]domain.Entry, []*ParseError) {
	localized := make([]domain.Entry, 0, len(entries))
	var failed []*ParseError
	for _, e := range entries {
		ts, err := g.Timestamp(e)
		if err != nil {
			failed = append(failed, newParseError(e, e.Date+" "+e.Time, err))
			continue
		}
		localized = append(localized, e.Localized(ts))
	}
	return localized, failed
}

// Group localizes entries and partitions them into groups, newest group
// first. Each group takes the newest unplaced entry as its anchor and pulls
// in every following entry strictly newer than anchor minus Interval. The
// window does not slide: an entry near the edge does not extend it.
// Entries with equal timestamps keep their input order.
func (g Grouper) Group(entries []domain.Entry) ([]domain.Group, []*ParseError) {
	sorted, failed := g.Localize(entries)
	slices.SortStableFunc(sorted, func(a, b domain.Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	var groups []domain.Group
	for start := 0; start < len(sorted); {
		windowStart := sorted[start].Timestamp.Add(-g.Interval)
		end := start + 1
		for end < len(sorted) && sorted[end].Timestamp.After(windowStart) {
			end++
		}
		groups = append(groups, slices.Clone(domain.Group(sorted[start:end])))
		start = end
	}
	return groups, failed
}
