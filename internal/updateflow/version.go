package updateflow

import (
	"context"
	"fmt"

	"timeline/internal/workflow"
)

// VersionRefreshItem is the terminal step of an update run: it re-reads the
// CheckResult a prior CheckItem recorded and reports the version now
// installed. If no CheckItem ran first it falls back to reporting unknown
// versions rather than failing the whole run over bookkeeping.
type VersionRefreshItem struct {
	workflow.BaseItem
}

// NewVersionRefreshItem constructs the final version-refresh step.
func NewVersionRefreshItem(id string) *VersionRefreshItem {
	return &VersionRefreshItem{
		BaseItem: workflow.NewBaseItem(id, "Refresh version info", "Records the version now installed after the update run"),
	}
}

func (v *VersionRefreshItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	raw, ok := wc.Get(contextKeyCheck)
	if !ok {
		wc.EmitProgress(v, "no prior check recorded, version unknown")
		return workflow.Result{Status: workflow.ResultSuccess, Data: "version unknown"}, nil
	}

	check, ok := raw.(CheckResult)
	if !ok {
		wc.EmitProgress(v, "stored check result had an unexpected type")
		return workflow.Result{Status: workflow.ResultSuccess, Data: "version unknown"}, nil
	}

	installed := check.CurrentVersion
	if check.UpdateAvailable {
		installed = check.LatestVersion
	}
	wc.EmitProgress(v, fmt.Sprintf("installed version now %s", installed))

	return workflow.Result{Status: workflow.ResultSuccess, Data: fmt.Sprintf("installed version now %s", installed)}, nil
}
