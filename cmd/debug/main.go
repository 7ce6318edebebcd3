package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jwulff/mylife-sync/internal/config"
	"github.com/jwulff/mylife-sync/internal/logbook"
	"github.com/jwulff/mylife-sync/internal/mylife"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

// debug dumps the scraped logbook rows and the JSON body a sync would post.
func main() {
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Usage: debug [settings file]")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	portal := mylife.NewClient(cfg.Mylife.BaseURL, cfg.Mylife.Email, cfg.Mylife.Password)
	if err := portal.Login(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	entries, err := portal.FetchLogbook(ctx, cfg.Mylife.Timespan)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Logbook rows: %d\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %-8s %s %s  %-28s %q\n", e.ID, e.Date, e.Time, e.Type, e.Value)
	}

	builder := treatment.NewBuilder(treatment.Options{EnteredBy: cfg.Sync.EnteredBy, SetSourceID: cfg.Sync.SetID})
	report := logbook.NewReconciler(logbook.NewGrouper(cfg.Location(), cfg.Interval()), builder).Reconcile(entries)

	fmt.Println("\nGroups:")
	for _, g := range report.Groups {
		rule := g.Rule
		if rule == "" {
			rule = "(unrecognized)"
		}
		fmt.Printf("  %s  %v  %s\n", g.Group.Latest().Format(time.RFC3339), g.Group.IDs(), rule)
	}
	for _, s := range report.Skipped {
		fmt.Printf("  skipped: %v\n", s)
	}

	fmt.Println()
	if err := printPayload(os.Stdout, report.Treatments); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// printPayload writes the JSON body a sync would post.
func printPayload(w io.Writer, treatments []treatment.Treatment) error {
	data, err := json.MarshalIndent(treatments, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal treatments: %w", err)
	}
	_, err = fmt.Fprintf(w, "POST body (%d bytes):\n%s\n", len(data), data)
	return err
}
