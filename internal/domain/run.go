package domain

import "time"

// SyncRun records the outcome of one portal-to-Nightscout sync.
type SyncRun struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Cutoff       time.Time // Newest remote treatment at start, zero if none
	DryRun       bool
	Fetched      int // Portal rows fetched
	Groups       int // Entry groups built
	Treatments   int // Treatments produced by classification
	Uploaded     int // Treatments sent to Nightscout
	Unrecognized int
	Skipped      int // Rows dropped for unparseable values
	Error        string
}

// NewSyncRun creates a run that starts now.
func NewSyncRun(id string) *SyncRun {
	return &SyncRun{
		ID:        id,
		StartedAt: time.Now().UTC(),
	}
}

// RecordSuccess marks the run finished without error.
func (r *SyncRun) RecordSuccess(uploaded int) {
	r.FinishedAt = time.Now().UTC()
	r.Uploaded = uploaded
	r.Error = ""
}

// RecordError marks the run finished with an error.
func (r *SyncRun) RecordError(errMsg string) {
	r.FinishedAt = time.Now().UTC()
	r.Error = errMsg
}

// Succeeded reports whether the run finished without error.
func (r *SyncRun) Succeeded() bool {
	return !r.FinishedAt.IsZero() && r.Error == ""
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
