package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewMemoryStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store)
}

func TestNewFileStore(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileStore(tmpDir + "/test.db")
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store)
}

func TestFileStorePersists(t *testing.T) {
	path := t.TempDir() + "/sync.db"
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetConfig(ctx, storage.KeyPortalSession, `[{"name":"a","value":"b"}]`))
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.GetConfig(ctx, storage.KeyPortalSession)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"a","value":"b"}]`, value)
}

// Sync run tests

func finishedRun(id string, started time.Time) *domain.SyncRun {
	run := &domain.SyncRun{
		ID:           id,
		StartedAt:    started,
		Cutoff:       started.Add(-2 * time.Hour),
		Fetched:      12,
		Groups:       5,
		Treatments:   3,
		Unrecognized: 1,
		Skipped:      2,
	}
	run.RecordSuccess(3)
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	run := finishedRun("run-1", started)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.ID)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
	assert.True(t, run.Cutoff.Equal(got.Cutoff))
	assert.Equal(t, 12, got.Fetched)
	assert.Equal(t, 5, got.Groups)
	assert.Equal(t, 3, got.Treatments)
	assert.Equal(t, 3, got.Uploaded)
	assert.Equal(t, 1, got.Unrecognized)
	assert.Equal(t, 2, got.Skipped)
	assert.False(t, got.DryRun)
	assert.True(t, got.Succeeded())
}

func TestSaveRunZeroTimes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := domain.NewSyncRun("run-1")
	run.DryRun = true
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.FinishedAt.IsZero())
	assert.True(t, got.Cutoff.IsZero())
	assert.True(t, got.DryRun)
	assert.False(t, got.Succeeded())
}

func TestSaveRunUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := domain.NewSyncRun("run-1")
	require.NoError(t, store.SaveRun(ctx, run))

	run.RecordError("portal unavailable")
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "portal unavailable", got.Error)

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "nonexistent")
	assert.True(t, storage.IsNotFound(err))
}

func TestRecentRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, finishedRun(id, started.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestRecentRunsEmpty(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// Config tests

func TestSetAndGetConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SetConfig(ctx, "timezone", "Europe/London")
	require.NoError(t, err)

	value, err := store.GetConfig(ctx, "timezone")
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", value)
}

func TestGetConfigNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetConfig(ctx, "nonexistent")
	assert.True(t, storage.IsNotFound(err))
}

func TestDeleteConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SetConfig(ctx, "key", "value")

	err := store.DeleteConfig(ctx, "key")
	require.NoError(t, err)

	_, err = store.GetConfig(ctx, "key")
	assert.True(t, storage.IsNotFound(err))
}

func TestUpdateConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SetConfig(ctx, "key", "value1")
	_ = store.SetConfig(ctx, "key", "value2")

	value, err := store.GetConfig(ctx, "key")
	require.NoError(t, err)

	assert.Equal(t, "value2", value)
}
