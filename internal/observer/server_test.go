package observer

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline/internal/workflow"
)

type fakeItem struct {
	workflow.BaseItem
}

func (f *fakeItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	return workflow.Result{Status: workflow.ResultSuccess}, nil
}

func TestSnapshotEndpointReflectsEngineState(t *testing.T) {
	e := workflow.New()
	item := &fakeItem{BaseItem: workflow.NewBaseItem("a", "A", "")}
	require.NoError(t, e.AddItems([]workflow.Item{item}))

	done := make(chan struct{})
	e.On(workflow.EventCompleted, func(workflow.Event) { close(done) })
	e.Start(context.Background())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for workflow completion")
	}

	srv := NewServer(e, nil)
	req := httptest.NewRequest("GET", "/snapshot", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Timeline, 1)
	assert.Equal(t, "a", snap.Timeline[0].ID)
	assert.Equal(t, workflow.StatusComplete, snap.Timeline[0].Status)
	assert.Equal(t, 100.0, snap.Progress)
	assert.True(t, snap.State.IsComplete)
}
