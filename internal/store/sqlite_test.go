package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outpost/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateRun(ctx, model.NewRun("run-1", "plumbers", "Austin", now)))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "plumbers", got.Query)
	assert.Equal(t, "Austin", got.Location)
	assert.Equal(t, model.RunStatusNew, got.Status)
	assert.True(t, now.Equal(got.CreatedAt))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, st.CreateRun(ctx, model.NewRun("run-1", "q", "", now)))
	require.NoError(t, st.CompleteRun(ctx, "run-1", 4, now.Add(time.Minute)))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 4, got.LeadsCount)
	assert.Empty(t, got.Error)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, st.CreateRun(ctx, model.NewRun("run-1", "q", "", now)))
	require.NoError(t, st.FailRun(ctx, "run-1", "boom", now))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestSQLite_TerminalWrite_MissingRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, st.CompleteRun(ctx, "nope", 1, time.Now()), ErrNotFound)
	assert.ErrorIs(t, st.FailRun(ctx, "nope", "x", time.Now()), ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.CreateRun(ctx, model.NewRun(id, "q-"+id, "", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, st.CompleteRun(ctx, "b", 0, base))

	runs, err := st.ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = st.ListRuns(ctx, model.RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)

	runs, err = st.ListRuns(ctx, model.RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}

func TestSQLite_PutAndListLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.UnixMilli(1700000000000).UTC()
	l1 := model.NewLead("run-1", 0, model.SearchResult{Title: "Acme", Domain: "acme.com", Snippet: "pipes"}, now)
	l1.Summary, l1.EmailDraft = "Acme fixes pipes.", "Hi Acme"
	l2 := model.NewLead("run-1", 1, model.SearchResult{Title: "Beta", Domain: "beta.com"}, now)
	other := model.NewLead("run-2", 0, model.SearchResult{Title: "Gamma"}, now)

	for _, l := range []*model.Lead{l1, l2, other} {
		require.NoError(t, st.PutLead(ctx, l))
	}

	leads, err := st.ListLeads(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, l1.ID, leads[0].ID)
	assert.Equal(t, "Acme fixes pipes.", leads[0].Summary)
	assert.Equal(t, l2.ID, leads[1].ID)
	assert.Empty(t, leads[1].Summary)
	assert.Equal(t, model.LeadSource, leads[1].Source)
}

func TestSQLite_PutLead_Overwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := model.NewLead("run-1", 0, model.SearchResult{Title: "Acme"}, time.Now())
	require.NoError(t, st.PutLead(ctx, l))
	l.Summary = "updated"
	require.NoError(t, st.PutLead(ctx, l))

	leads, err := st.ListLeads(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "updated", leads[0].Summary)
}
