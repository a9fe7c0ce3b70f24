package approval

import (
	"context"
	"testing"
	"time"

	"timeline/internal/workflow"
)

type fakeItem struct {
	workflow.BaseItem
}

func newFakeItem(id string) *fakeItem {
	i := &fakeItem{BaseItem: workflow.NewBaseItem(id, "Apply database migration", "runs pending migrations")}
	return i
}

func (f *fakeItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	return workflow.Result{Status: workflow.ResultSuccess}, nil
}

func TestNoOpPresenterPicksFirstEnabledAction(t *testing.T) {
	item := newFakeItem("migrate")
	result := workflow.Result{
		Status: workflow.ResultUserActionRequired,
		UserActions: []workflow.UserAction{
			{ID: "skip", Label: "Skip", Disabled: true},
			{ID: "go", Label: "Continue"},
		},
	}

	id, err := NewNoOpPresenter().Present(context.Background(), item, result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "go" {
		t.Fatalf("expected first enabled action %q, got %q", "go", id)
	}
}

func TestNoOpPresenterErrorsWhenAllDisabled(t *testing.T) {
	item := newFakeItem("migrate")
	result := workflow.Result{
		Status: workflow.ResultUserActionRequired,
		UserActions: []workflow.UserAction{
			{ID: "go", Label: "Continue", Disabled: true},
		},
	}

	if _, err := NewNoOpPresenter().Present(context.Background(), item, result); err == nil {
		t.Fatal("expected an error when every action is disabled")
	}
}

func TestTerminalPresenterColorize(t *testing.T) {
	enabled := NewTerminalPresenter(time.Second, true)
	if got := enabled.colorize("hello"); got == "" {
		t.Fatal("expected non-empty colorized string")
	}

	disabled := NewTerminalPresenter(time.Second, false)
	if got := disabled.colorize("hello"); got != "hello" {
		t.Fatalf("expected passthrough text, got %q", got)
	}
}

func TestTerminalPresenterDisplayItemDoesNotPanic(t *testing.T) {
	p := NewTerminalPresenter(time.Second, false)
	item := newFakeItem("migrate")
	result := workflow.Result{
		Status: workflow.ResultUserActionRequired,
		UserActions: []workflow.UserAction{
			{ID: "go", Label: "Continue"},
		},
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("displayItem panicked: %v", r)
		}
	}()
	p.displayItem(item, result)
}

func TestTerminalPresenterRejectsUserActionRequiredWithNoActions(t *testing.T) {
	p := NewTerminalPresenter(time.Second, false)
	item := newFakeItem("migrate")
	result := workflow.Result{Status: workflow.ResultUserActionRequired}

	if _, err := p.Present(context.Background(), item, result); err == nil {
		t.Fatal("expected an error when no actions are offered")
	}
}

func TestTerminalPresenterTimesOutWithoutAnswer(t *testing.T) {
	p := NewTerminalPresenter(time.Millisecond, false)
	item := newFakeItem("migrate")
	result := workflow.Result{
		Status: workflow.ResultUserActionRequired,
		UserActions: []workflow.UserAction{
			{ID: "go", Label: "Continue"},
		},
	}

	if _, err := p.Present(context.Background(), item, result); err == nil {
		t.Fatal("expected a timeout error with a 1ms deadline and no interactive input")
	}
}
