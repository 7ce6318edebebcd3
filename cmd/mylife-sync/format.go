package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jwulff/mylife-sync/internal/bloodsugar"
	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/reconcile"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

func summarizeRun(run *domain.SyncRun) string {
	if !run.Succeeded() {
		return fmt.Sprintf("Sync failed: %s", run.Error)
	}
	uploaded := fmt.Sprintf("%d uploaded", run.Uploaded)
	if run.DryRun {
		uploaded = "dry run"
	}
	return fmt.Sprintf("%d entries, %d groups, %d treatments, %s (%d unrecognized, %d skipped)",
		run.Fetched, run.Groups, run.Treatments, uploaded, run.Unrecognized, run.Skipped)
}

// formatTreatment renders one treatment on a line in the given zone.
func formatTreatment(t treatment.Treatment, loc *time.Location) string {
	parts := []string{
		t.Time().In(loc).Format("2006-01-02 15:04"),
		fmt.Sprintf("%-16s", t.EventType),
	}
	if t.Insulin != nil {
		parts = append(parts, fmt.Sprintf("%gU", *t.Insulin))
	}
	if t.Carbs != nil {
		parts = append(parts, fmt.Sprintf("%dg", *t.Carbs))
	}
	if t.HasGlucose() {
		parts = append(parts, fmt.Sprintf("%g mmol/L %s (%s)",
			*t.Glucose, t.GlucoseType, bloodsugar.ClassifyRange(*t.Glucose)))
	}
	if t.ID != "" {
		parts = append(parts, "#"+t.ID)
	}
	return strings.Join(parts, "  ")
}

func printPreview(w io.Writer, result *reconcile.Result, loc *time.Location) {
	report := result.Report
	if !result.Run.Cutoff.IsZero() {
		fmt.Fprintf(w, "Nightscout is current up to %s\n", result.Run.Cutoff.In(loc).Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "Treatments to upload (%d):\n", len(result.Pending))
	for _, t := range result.Pending {
		fmt.Fprintf(w, "  %s\n", formatTreatment(t, loc))
	}
	if len(report.Unrecognized) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Unrecognized groups (%d):\n", len(report.Unrecognized))
		for _, u := range report.Unrecognized {
			fmt.Fprintf(w, "  %s\n", u.Error())
		}
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Skipped entries (%d):\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "  %s\n", s.Error())
		}
	}
}

func printHistory(w io.Writer, runs []*domain.SyncRun, loc *time.Location) {
	for _, run := range runs {
		status := "ok"
		if !run.Succeeded() {
			status = "failed"
		}
		if run.DryRun {
			status += " (dry run)"
		}
		fmt.Fprintf(w, "%s  %-16s %6s  %s\n",
			run.StartedAt.In(loc).Format("2006-01-02 15:04:05"),
			status,
			run.Duration().Round(time.Millisecond),
			summarizeRun(run))
	}
}

func printRun(w io.Writer, run *domain.SyncRun, loc *time.Location) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.In(loc).Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	if run.Cutoff.IsZero() {
		fmt.Fprintln(w, "Cutoff:   none")
	} else {
		fmt.Fprintf(w, "Cutoff:   %s\n", run.Cutoff.In(loc).Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Result:   %s\n", summarizeRun(run))
}
