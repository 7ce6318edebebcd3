// Package main is the entry point for the mylife to Nightscout sync.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/jwulff/mylife-sync/internal/config"
	"github.com/jwulff/mylife-sync/internal/logbook"
	"github.com/jwulff/mylife-sync/internal/logging"
	"github.com/jwulff/mylife-sync/internal/mylife"
	"github.com/jwulff/mylife-sync/internal/nightscout"
	"github.com/jwulff/mylife-sync/internal/reconcile"
	"github.com/jwulff/mylife-sync/internal/storage"
	"github.com/jwulff/mylife-sync/internal/storage/sqlite"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

const defaultWatchMinutes = 15

func main() {
	if len(os.Args) < 2 {
		showUsage()
		return
	}

	switch os.Args[1] {
	case "sync":
		syncOnce(false)
	case "preview":
		syncOnce(true)
	case "watch":
		minutes := defaultWatchMinutes
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n < 1 {
				fmt.Println("Error: minutes must be a positive number")
				fmt.Println("Usage: mylife-sync watch [minutes]")
				os.Exit(1)
			}
			minutes = n
		}
		watchMode(time.Duration(minutes) * time.Minute)
	case "last":
		showLast()
	case "history":
		limit := 10
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil {
				showRun(os.Args[2])
				return
			}
			if n < 1 {
				fmt.Println("Error: count must be a positive number")
				fmt.Println("Usage: mylife-sync history [count | run-id]")
				os.Exit(1)
			}
			limit = n
		}
		showHistory(limit)
	default:
		showUsage()
	}
}

func showUsage() {
	fmt.Println("mylife-sync - upload mylife logbook entries to Nightscout")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mylife-sync sync              - Upload new treatments once")
	fmt.Println("  mylife-sync preview           - Show what sync would upload")
	fmt.Println("  mylife-sync watch [minutes]   - Sync repeatedly (default every 15 minutes)")
	fmt.Println("  mylife-sync last              - Show the newest treatment on Nightscout")
	fmt.Println("  mylife-sync history [count]   - Show recent sync runs")
	fmt.Println("  mylife-sync history <run-id>  - Show one sync run")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  MYLIFE_CONFIG                 - Settings file (default settings.env)")
	fmt.Println("  MYLIFE_<SECTION>__<KEY>       - Override a setting, e.g. MYLIFE_NIGHTSCOUT__URL")
}

func loadConfig() *config.Config {
	path := os.Getenv("MYLIFE_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

func newNightscout(cfg *config.Config) *nightscout.Client {
	return nightscout.NewClient(cfg.Nightscout.URL, cfg.Nightscout.APISecret, cfg.Sync.EnteredBy)
}

func openStore(cfg *config.Config) *sqlite.Store {
	store, err := sqlite.NewFileStore(cfg.Store.Path)
	if err != nil {
		fmt.Printf("Error: cannot open %s: %v\n", cfg.Store.Path, err)
		os.Exit(1)
	}
	return store
}

func newRunner(cfg *config.Config, store *sqlite.Store, logger zerolog.Logger, dryRun bool) *reconcile.Runner {
	builder := treatment.NewBuilder(treatment.Options{
		EnteredBy:   cfg.Sync.EnteredBy,
		SetSourceID: cfg.Sync.SetID,
	})
	return &reconcile.Runner{
		Portal:     mylife.NewClient(cfg.Mylife.BaseURL, cfg.Mylife.Email, cfg.Mylife.Password),
		Remote:     newNightscout(cfg),
		Store:      store,
		Reconciler: logbook.NewReconciler(logbook.NewGrouper(cfg.Location(), cfg.Interval()), builder),
		Logger:     logger,
		Timespan:   cfg.Mylife.Timespan,
		DryRun:     dryRun || cfg.Sync.DryRun,
	}
}

func syncOnce(preview bool) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := newRunner(cfg, store, newLogger(cfg), preview)
	result, err := runner.Run(ctx)
	if preview && err == nil {
		printPreview(os.Stdout, result, cfg.Location())
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(summarizeRun(result.Run))
}

func watchMode(every time.Duration) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	logger := newLogger(cfg)
	fmt.Printf("Syncing every %s\n", every)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	// Ctrl+C also cancels a sync in flight.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := newRunner(cfg, store, logger, false)
	watchLoop(ctx, every, func(ctx context.Context) { syncTick(ctx, runner) })
	fmt.Println("\nStopping...")
}

// watchLoop calls tick now and then every interval until ctx is done.
func watchLoop(ctx context.Context, every time.Duration, tick func(context.Context)) {
	tick(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// syncTick runs one sync. Failures are reported and the next tick retries.
func syncTick(ctx context.Context, runner *reconcile.Runner) {
	result, err := runner.Run(ctx)
	now := time.Now().Format("15:04:05")
	if err != nil {
		fmt.Printf("[%s] Error: %v\n", now, err)
		return
	}
	fmt.Printf("[%s] %s\n", now, summarizeRun(result.Run))
}

func showLast() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	last, ok, err := newNightscout(cfg).LastTreatmentTime(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Nightscout has no treatments yet.")
		return
	}
	fmt.Printf("Newest treatment: %s (%s ago)\n",
		last.In(cfg.Location()).Format("2006-01-02 15:04:05 MST"),
		time.Since(last).Round(time.Minute))
}

func showHistory(limit int) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), limit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded.")
		return
	}
	printHistory(os.Stdout, runs, cfg.Location())
}

func showRun(id string) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	run, err := store.GetRun(context.Background(), id)
	if storage.IsNotFound(err) {
		fmt.Printf("No sync run %s.\n", id)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printRun(os.Stdout, run, cfg.Location())
}
