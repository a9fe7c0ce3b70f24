package historystore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline/internal/workflow"
)

func TestCreateAndUpdateEntry(t *testing.T) {
	store, err := New(8, "", nil)
	require.NoError(t, err)

	entry, err := store.CreateEntry(context.Background(), workflow.EntrySpec{SiteID: "site-1", WorkflowType: "demo"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "site-1", entry.SiteID)

	_, err = store.UpdateEntry(context.Background(), entry.ID, workflow.EntryUpdate{
		SiteID: "site-1",
		Status: "finished",
		Steps:  []workflow.HistoryStep{{ID: "a", Title: "A", Status: workflow.HistoryStepComplete}},
	})
	require.NoError(t, err)

	got, ok := store.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, "finished", got.Status)
	assert.Len(t, got.Steps, 1)
}

func TestUpdateUnknownEntryErrors(t *testing.T) {
	store, err := New(8, "", nil)
	require.NoError(t, err)

	_, err = store.UpdateEntry(context.Background(), "does-not-exist", workflow.EntryUpdate{})
	assert.Error(t, err)
}

func TestSnapshotPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	store, err := New(8, path, nil)
	require.NoError(t, err)
	entry, err := store.CreateEntry(context.Background(), workflow.EntrySpec{SiteID: "site-1", WorkflowType: "demo"})
	require.NoError(t, err)
	_, err = store.UpdateEntry(context.Background(), entry.ID, workflow.EntryUpdate{Status: "finished"})
	require.NoError(t, err)

	reloaded, err := New(8, path, nil)
	require.NoError(t, err)
	got, ok := reloaded.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, "finished", got.Status)
}

func TestLoadSnapshotRepairsTruncatedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store, err := New(8, path, nil)
	require.NoError(t, err)
	entry, err := store.CreateEntry(context.Background(), workflow.EntrySpec{SiteID: "s", WorkflowType: "demo"})
	require.NoError(t, err)
	_, err = store.UpdateEntry(context.Background(), entry.ID, workflow.EntryUpdate{Status: "finished"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := raw[:len(raw)-2] // drop the trailing closing braces
	require.NoError(t, os.WriteFile(path, truncated, 0o644))

	reloaded, err := New(8, path, nil)
	require.NoError(t, err)
	_, ok := reloaded.Get(entry.ID)
	assert.True(t, ok, "expected jsonrepair to recover the truncated snapshot")
}
