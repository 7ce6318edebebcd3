package logbook

import (
	"errors"

	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

// GroupResult records how one group was classified.
type GroupResult struct {
	Group      domain.Group
	Rule       string // Empty when unrecognized
	Treatments int
}

// Report is the full outcome of reconciling a batch of rows.
type Report struct {
	Entries      int
	Groups       []GroupResult
	Treatments   []treatment.Treatment // Newest first
	Unrecognized []*UnrecognizedGroupError
	Skipped      []*ParseError
	Warnings     []*AmbiguousSelectionError
}

// Reconciler groups and classifies portal rows.
type Reconciler struct {
	Grouper    Grouper
	Classifier Classifier
}

// NewReconciler wires a grouper and a classifier together.
func NewReconciler(g Grouper, b treatment.Builder) Reconciler {
	return Reconciler{Grouper: g, Classifier: NewClassifier(b)}
}

// Reconcile converts rows to treatments. A bad row or an unrecognized group
// never stops the remaining groups from being processed.
func (r Reconciler) Reconcile(entries []domain.Entry) Report {
	report := Report{Entries: len(entries)}

	groups, failed := r.Grouper.Group(entries)
	report.Skipped = append(report.Skipped, failed...)

	for _, g := range groups {
		c, err := r.Classifier.Classify(g)
		if err != nil {
			var unrecognized *UnrecognizedGroupError
			if errors.As(err, &unrecognized) {
				report.Unrecognized = append(report.Unrecognized, unrecognized)
			}
			report.Groups = append(report.Groups, GroupResult{Group: g})
			continue
		}
		report.Groups = append(report.Groups, GroupResult{
			Group:      g,
			Rule:       c.Rule.Name,
			Treatments: len(c.Treatments),
		})
		report.Treatments = append(report.Treatments, c.Treatments...)
		report.Skipped = append(report.Skipped, c.Skipped...)
		report.Warnings = append(report.Warnings, c.Warnings...)
	}
	return report
}
