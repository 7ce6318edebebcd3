// Package domain contains core domain types for the mylife sync.
package domain

import (
	"slices"
	"time"
)

// EntryType is the event name the portal shows for a logbook row.
type EntryType string

// Row types the classifier understands. Anything else scraped from the
// portal is carried through and ends up in an unrecognized group.
const (
	EntryBolus         EntryType = "Bolus"
	EntryGlucose       EntryType = "Blood glucose"
	EntryGlucoseManual EntryType = "Blood glucose manual entry"
	EntryCarbs         EntryType = "Carbohydrates"
)

// Known reports whether t is part of the fixed row vocabulary.
func (t EntryType) Known() bool {
	switch t {
	case EntryBolus, EntryGlucose, EntryGlucoseManual, EntryCarbs:
		return true
	}
	return false
}

// Entry is one logbook row scraped from the portal.
type Entry struct {
	ID    string    // Portal row id, stable across fetches
	Type  EntryType // Event column
	Value string    // Value exactly as rendered, e.g. "6.2U"
	Date  string    // Local date, e.g. "26.08.23"
	Time  string    // Local time, e.g. "18:25"
	Note  string

	// Timestamp is the absolute instant of Date+Time in the configured zone.
	// Zero until the entry has been localized.
	Timestamp time.Time
}

// NewEntry creates an entry that has not been localized yet.
func NewEntry(id string, entryType EntryType, value, date, clock string) Entry {
	return Entry{
		ID:    id,
		Type:  entryType,
		Value: value,
		Date:  date,
		Time:  clock,
	}
}

// Localized returns a copy of the entry with Timestamp set to ts in UTC.
func (e Entry) Localized(ts time.Time) Entry {
	e.Timestamp = ts.UTC()
	return e
}

// Group is a run of entries logged close together in time, newest first.
type Group []Entry

// Latest returns the newest entry's timestamp (the group's anchor).
func (g Group) Latest() time.Time {
	if len(g) == 0 {
		return time.Time{}
	}
	return g[0].Timestamp
}

// Earliest returns the oldest entry's timestamp.
func (g Group) Earliest() time.Time {
	if len(g) == 0 {
		return time.Time{}
	}
	return g[len(g)-1].Timestamp
}

// Types returns the distinct entry types present, sorted by name.
func (g Group) Types() []EntryType {
	types := make([]EntryType, 0, len(g))
	for _, e := range g {
		if !slices.Contains(types, e.Type) {
			types = append(types, e.Type)
		}
	}
	slices.Sort(types)
	return types
}

// IDs returns the portal ids of the group's entries in order.
func (g Group) IDs() []string {
	ids := make([]string, len(g))
	for i, e := range g {
		ids[i] = e.ID
	}
	return ids
}
