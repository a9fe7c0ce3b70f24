package updateflow

import (
	"context"
	"fmt"

	"timeline/internal/workflow"
)

// ManagerSelfUpdateCheckItem checks whether the manager binary itself has a
// newer release. When one is available it halts the workflow and asks the
// operator whether to apply it now.
type ManagerSelfUpdateCheckItem struct {
	workflow.BaseItem

	CurrentVersion string
	LatestVersion  string
}

// NewManagerSelfUpdateCheckItem constructs the self-update check.
func NewManagerSelfUpdateCheckItem(id, currentVersion, latestVersion string) *ManagerSelfUpdateCheckItem {
	return &ManagerSelfUpdateCheckItem{
		BaseItem:       workflow.NewBaseItem(id, "Check manager self-update", "Checks whether the update manager itself needs updating"),
		CurrentVersion: currentVersion,
		LatestVersion:  latestVersion,
	}
}

func (m *ManagerSelfUpdateCheckItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	if m.CurrentVersion == m.LatestVersion {
		return workflow.Result{Status: workflow.ResultSuccess, Data: "manager already current"}, nil
	}

	apply := NewManagerSelfUpdateApplyItem(m.ID()+"-apply", m.LatestVersion)
	return workflow.Result{
		Status:        workflow.ResultUserActionRequired,
		PauseWorkflow: true,
		UIContent:     fmt.Sprintf("Manager update %s is available (currently %s).", m.LatestVersion, m.CurrentVersion),
		UserActions: []workflow.UserAction{
			{
				ID:      "apply",
				Label:   "Apply manager update",
				Variant: workflow.VariantPrimary,
				Execute: func() (workflow.UserActionResult, error) {
					return workflow.UserActionResult{Action: workflow.ActionContinue, AdditionalItems: []workflow.Item{apply}}, nil
				},
			},
			{
				ID:      "defer",
				Label:   "Defer self-update",
				Variant: workflow.VariantSecondary,
				Execute: func() (workflow.UserActionResult, error) {
					return workflow.UserActionResult{Action: workflow.ActionSkip}, nil
				},
			},
		},
	}, nil
}

// ManagerSelfUpdateApplyItem installs a previously-approved manager update.
// It cannot be skipped once running — half-applying a self-update would
// leave the manager in an inconsistent state.
type ManagerSelfUpdateApplyItem struct {
	workflow.BaseItem

	TargetVersion string
}

// NewManagerSelfUpdateApplyItem constructs the apply step for targetVersion.
func NewManagerSelfUpdateApplyItem(id, targetVersion string) *ManagerSelfUpdateApplyItem {
	return &ManagerSelfUpdateApplyItem{
		BaseItem:      workflow.NewBaseItem(id, "Apply manager self-update", "Installs the pending manager update"),
		TargetVersion: targetVersion,
	}
}

func (m *ManagerSelfUpdateApplyItem) CanSkip() bool { return false }

func (m *ManagerSelfUpdateApplyItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	wc.EmitProgress(m, fmt.Sprintf("installing manager %s", m.TargetVersion))
	return workflow.Result{Status: workflow.ResultSuccess, Data: fmt.Sprintf("manager updated to %s", m.TargetVersion)}, nil
}
