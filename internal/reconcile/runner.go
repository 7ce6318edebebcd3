// Package reconcile runs one portal-to-Nightscout sync.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/logbook"
	"github.com/jwulff/mylife-sync/internal/mylife"
	"github.com/jwulff/mylife-sync/internal/storage"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

// Portal is the source of logbook rows.
type Portal interface {
	RestoreSession(state string) error
	SessionState() (string, error)
	Login(ctx context.Context) error
	FetchLogbook(ctx context.Context, span string) ([]domain.Entry, error)
}

// Remote is the Nightscout site treatments are uploaded to.
type Remote interface {
	LastTreatmentTime(ctx context.Context) (time.Time, bool, error)
	UploadTreatments(ctx context.Context, treatments []treatment.Treatment) error
}

// Runner wires the collaborators for a sync.
type Runner struct {
	Portal     Portal
	Remote     Remote
	Store      storage.Store
	Reconciler logbook.Reconciler
	Logger     zerolog.Logger
	Timespan   string
	DryRun     bool
}

// Result is the outcome of a run.
type Result struct {
	Run    *domain.SyncRun
	Report logbook.Report
	// Pending holds the treatments newer than the remote cutoff. They were
	// uploaded unless the run was a dry run.
	Pending []treatment.Treatment
}

// Run fetches the logbook, converts it to treatments and uploads the ones
// newer than the newest treatment already on the site. The run is recorded
// in the store whether or not it succeeds.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	run := domain.NewSyncRun(uuid.NewString())
	run.DryRun = r.DryRun
	log := r.Logger.With().Str("run", run.ID).Logger()
	result := &Result{Run: run}

	fail := func(err error) (*Result, error) {
		run.RecordError(err.Error())
		r.saveRun(ctx, log, run)
		log.Error().Err(err).Msg("sync failed")
		return result, err
	}

	r.restoreSession(ctx, log)

	cutoff, ok, err := r.Remote.LastTreatmentTime(ctx)
	if err != nil {
		return fail(fmt.Errorf("read nightscout cutoff: %w", err))
	}
	if ok {
		run.Cutoff = cutoff
		log.Info().Time("cutoff", cutoff).Msg("newest nightscout treatment")
	} else {
		log.Info().Msg("nightscout has no treatments yet")
	}

	if err := r.Portal.Login(ctx); err != nil {
		if errors.Is(err, mylife.ErrLoginFailed) {
			r.dropSession(ctx, log)
		}
		return fail(fmt.Errorf("log in to mylife: %w", err))
	}
	entries, err := r.Portal.FetchLogbook(ctx, r.Timespan)
	if err != nil {
		return fail(fmt.Errorf("fetch logbook: %w", err))
	}
	run.Fetched = len(entries)
	r.saveSession(ctx, log)

	report := r.Reconciler.Reconcile(entries)
	result.Report = report
	run.Groups = len(report.Groups)
	run.Treatments = len(report.Treatments)
	run.Unrecognized = len(report.Unrecognized)
	run.Skipped = len(report.Skipped)
	logReport(log, report)

	result.Pending = treatment.After(report.Treatments, run.Cutoff)
	uploaded := 0
	switch {
	case r.DryRun:
		log.Info().Int("pending", len(result.Pending)).Msg("dry run, nothing uploaded")
	case len(result.Pending) == 0:
		log.Info().Msg("nightscout is up to date")
	default:
		if err := r.Remote.UploadTreatments(ctx, result.Pending); err != nil {
			return fail(err)
		}
		uploaded = len(result.Pending)
		log.Info().Int("uploaded", uploaded).Msg("treatments uploaded")
	}

	run.RecordSuccess(uploaded)
	r.saveRun(ctx, log, run)
	return result, nil
}

func (r *Runner) restoreSession(ctx context.Context, log zerolog.Logger) {
	state, err := r.Store.GetConfig(ctx, storage.KeyPortalSession)
	if err != nil {
		if !storage.IsNotFound(err) {
			log.Warn().Err(err).Msg("could not read saved portal session")
		}
		return
	}
	if err := r.Portal.RestoreSession(state); err != nil {
		log.Warn().Err(err).Msg("discarding saved portal session")
	}
}

// dropSession forgets saved cookies after the portal rejected a login.
func (r *Runner) dropSession(ctx context.Context, log zerolog.Logger) {
	if err := r.Store.DeleteConfig(ctx, storage.KeyPortalSession); err != nil {
		log.Warn().Err(err).Msg("could not drop portal session")
	}
}

func (r *Runner) saveSession(ctx context.Context, log zerolog.Logger) {
	state, err := r.Portal.SessionState()
	if err == nil {
		err = r.Store.SetConfig(ctx, storage.KeyPortalSession, state)
	}
	if err != nil {
		log.Warn().Err(err).Msg("could not save portal session")
	}
}

// saveRun uses a fresh context so a cancelled sync is still recorded.
func (r *Runner) saveRun(ctx context.Context, log zerolog.Logger, run *domain.SyncRun) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.Store.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("could not record sync run")
	}
}

func logReport(log zerolog.Logger, report logbook.Report) {
	for _, g := range report.Groups {
		if g.Rule == "" {
			continue
		}
		log.Debug().
			Strs("ids", g.Group.IDs()).
			Time("from", g.Group.Earliest()).
			Time("to", g.Group.Latest()).
			Str("rule", g.Rule).
			Int("treatments", g.Treatments).
			Msg("classified group")
	}
	for _, u := range report.Unrecognized {
		log.Warn().Strs("ids", u.Group.IDs()).Msg(u.Error())
		for _, e := range u.Group {
			if !e.Type.Known() {
				log.Debug().Str("id", e.ID).Str("type", string(e.Type)).Str("value", e.Value).Msg("unknown entry type")
			}
		}
	}
	for _, p := range report.Skipped {
		log.Warn().Str("id", p.EntryID).Str("type", string(p.Type)).Err(p.Err).Msg("skipped entry")
	}
	for _, w := range report.Warnings {
		log.Warn().Str("used", w.ChosenID).Str("ignored", strings.Join(w.IgnoredIDs, ",")).Msg(w.Error())
	}
	log.Info().
		Int("entries", report.Entries).
		Int("groups", len(report.Groups)).
		Int("treatments", len(report.Treatments)).
		Int("unrecognized", len(report.Unrecognized)).
		Int("skipped", len(report.Skipped)).
		Msg("logbook reconciled")
}
