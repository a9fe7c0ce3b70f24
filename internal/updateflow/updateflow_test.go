package updateflow_test

import (
	"context"
	"testing"
	"time"

	"timeline/internal/updateflow"
	"timeline/internal/workflow"
)

// awaitCompletion subscribes to the completed event and returns a wait
// function; call it before Start so a fast run cannot complete unobserved.
func awaitCompletion(t *testing.T, e *workflow.Engine) func() {
	ch := make(chan struct{}, 1)
	token := e.On(workflow.EventCompleted, func(workflow.Event) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})

	return func() {
		t.Helper()
		defer e.Off(workflow.EventCompleted, token)
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for workflow completion")
		}
	}
}

func TestCheckItemRecordsResult(t *testing.T) {
	item := updateflow.NewCheckItem("check", "1.0.0", "1.2.0")
	e := workflow.New()
	wc := e.GetContext()

	result, err := item.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != workflow.ResultSuccess {
		t.Fatalf("expected success, got %v", result.Status)
	}
	cr, ok := result.Data.(updateflow.CheckResult)
	if !ok {
		t.Fatalf("expected CheckResult, got %T", result.Data)
	}
	if !cr.UpdateAvailable {
		t.Fatalf("expected UpdateAvailable=true for differing versions")
	}
}

func TestManagerSelfUpdateCheckNoOpWhenCurrent(t *testing.T) {
	item := updateflow.NewManagerSelfUpdateCheckItem("mgr-check", "2.0.0", "2.0.0")
	e := workflow.New()
	wc := e.GetContext()

	result, err := item.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != workflow.ResultSuccess {
		t.Fatalf("expected plain success when already current, got %v", result.Status)
	}
}

func TestManagerSelfUpdateCheckPausesWhenStale(t *testing.T) {
	item := updateflow.NewManagerSelfUpdateCheckItem("mgr-check", "2.0.0", "2.1.0")
	e := workflow.New()
	wc := e.GetContext()

	result, err := item.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != workflow.ResultUserActionRequired {
		t.Fatalf("expected user action required, got %v", result.Status)
	}
	if !result.PauseWorkflow {
		t.Fatal("expected PauseWorkflow=true")
	}
	if len(result.UserActions) != 2 {
		t.Fatalf("expected 2 user actions, got %d", len(result.UserActions))
	}

	applyAction := result.UserActions[0]
	actionResult, err := applyAction.Execute()
	if err != nil {
		t.Fatalf("unexpected error applying action: %v", err)
	}
	if actionResult.Action != workflow.ActionContinue {
		t.Fatalf("expected ActionContinue, got %v", actionResult.Action)
	}
	if len(actionResult.AdditionalItems) != 1 {
		t.Fatalf("expected one spliced item, got %d", len(actionResult.AdditionalItems))
	}
	if _, ok := actionResult.AdditionalItems[0].(*updateflow.ManagerSelfUpdateApplyItem); !ok {
		t.Fatalf("expected *ManagerSelfUpdateApplyItem, got %T", actionResult.AdditionalItems[0])
	}
}

func TestComposerDryRunInjectsUpdateWhenPending(t *testing.T) {
	item := updateflow.NewComposerDryRunItem("dry-run", []string{"foo/bar"})
	e := workflow.New()
	wc := e.GetContext()

	result, err := item.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.NextItems) != 1 {
		t.Fatalf("expected one next item, got %d", len(result.NextItems))
	}
	if _, ok := result.NextItems[0].(*updateflow.ComposerUpdateItem); !ok {
		t.Fatalf("expected *ComposerUpdateItem, got %T", result.NextItems[0])
	}
}

func TestComposerDryRunNoOpWhenNothingPending(t *testing.T) {
	item := updateflow.NewComposerDryRunItem("dry-run", nil)
	e := workflow.New()
	wc := e.GetContext()

	result, err := item.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.NextItems) != 0 {
		t.Fatalf("expected no next items, got %d", len(result.NextItems))
	}
}

func TestDatabaseMigrationCannotSkipOrRetry(t *testing.T) {
	item := updateflow.NewDatabaseMigrationItem("migrate", []string{"001_init", "002_add_col"})
	if item.CanSkip() {
		t.Fatal("expected migrations to not be skippable")
	}
	if item.CanRetry() {
		t.Fatal("expected migrations to not be retryable")
	}

	e := workflow.New()
	wc := e.GetContext()
	result, err := item.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != workflow.ResultSuccess {
		t.Fatalf("expected success, got %v", result.Status)
	}
}

func TestVersionRefreshReadsPriorCheck(t *testing.T) {
	check := updateflow.NewCheckItem("check", "1.0.0", "1.2.0")
	refresh := updateflow.NewVersionRefreshItem("refresh")

	e := workflow.New()
	wc := e.GetContext()

	if _, err := check.Execute(context.Background(), wc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := refresh.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data != "installed version now 1.2.0" {
		t.Fatalf("unexpected refresh data: %v", result.Data)
	}
}

func TestVersionRefreshWithoutPriorCheck(t *testing.T) {
	refresh := updateflow.NewVersionRefreshItem("refresh")
	e := workflow.New()
	wc := e.GetContext()

	result, err := refresh.Execute(context.Background(), wc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data != "version unknown" {
		t.Fatalf("expected unknown version, got %v", result.Data)
	}
}

// TestFullUpdateRunEndToEnd wires check, composer dry-run, migration and
// version-refresh items into a real engine and drives it to completion, the
// way cmd/workflow-runner would for a routine update with no pending
// manager self-update and one pending composer package.
func TestFullUpdateRunEndToEnd(t *testing.T) {
	e := workflow.New()

	check := updateflow.NewCheckItem("check", "1.0.0", "1.2.0")
	dryRun := updateflow.NewComposerDryRunItem("dry-run", []string{"acme/widget"})
	migrate := updateflow.NewDatabaseMigrationItem("migrate", []string{"001_init"})
	refresh := updateflow.NewVersionRefreshItem("refresh")

	if err := e.AddItems([]workflow.Item{check, dryRun, migrate, refresh}); err != nil {
		t.Fatalf("AddItems failed: %v", err)
	}

	wait := awaitCompletion(t, e)
	e.Start(context.Background())
	wait()

	state := e.GetState()
	if !state.IsComplete {
		t.Fatal("expected workflow to complete")
	}

	history := e.GetExecutionHistory()
	var sawComposerUpdate bool
	for _, rec := range history {
		if rec.Item.ID() == "dry-run-apply" {
			sawComposerUpdate = true
		}
	}
	if !sawComposerUpdate {
		t.Fatal("expected composer update item to have been spliced and executed")
	}
}
