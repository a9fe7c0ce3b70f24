package updateflow

import (
	"context"
	"fmt"

	"timeline/internal/workflow"
)

// CheckResult is the outcome CheckItem records into the shared Context
// under contextKeyCheck, for downstream items to branch on.
type CheckResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
}

const contextKeyCheck = "updateflow.check"

// CheckItem queries (a stand-in for) the update feed and records whether a
// newer release exists.
type CheckItem struct {
	workflow.BaseItem

	CurrentVersion string
	LatestVersion  string
}

// NewCheckItem constructs a CheckItem comparing currentVersion against
// latestVersion.
func NewCheckItem(id, currentVersion, latestVersion string) *CheckItem {
	return &CheckItem{
		BaseItem:       workflow.NewBaseItem(id, "Check for updates", "Compares the installed version against the latest release"),
		CurrentVersion: currentVersion,
		LatestVersion:  latestVersion,
	}
}

func (c *CheckItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	result := CheckResult{
		CurrentVersion:  c.CurrentVersion,
		LatestVersion:   c.LatestVersion,
		UpdateAvailable: c.CurrentVersion != c.LatestVersion,
	}
	wc.Set(contextKeyCheck, result)
	wc.EmitProgress(c, fmt.Sprintf("current=%s latest=%s", c.CurrentVersion, c.LatestVersion))

	return workflow.Result{
		Status: workflow.ResultSuccess,
		Data:   result,
	}, nil
}
