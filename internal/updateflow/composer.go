package updateflow

import (
	"context"
	"fmt"

	"timeline/internal/workflow"
)

// ComposerDryRunItem simulates running the dependency manager in
// check-only mode. When it finds pending changes it injects a
// ComposerUpdateItem right after itself via Result.NextItems, splicing a
// step into the timeline based on a runtime discovery.
type ComposerDryRunItem struct {
	workflow.BaseItem

	PendingPackages []string
}

// NewComposerDryRunItem constructs the dry-run step; pendingPackages lists
// the package names a real dry-run would have discovered.
func NewComposerDryRunItem(id string, pendingPackages []string) *ComposerDryRunItem {
	return &ComposerDryRunItem{
		BaseItem:        workflow.NewBaseItem(id, "Composer dry-run", "Previews dependency changes without installing them"),
		PendingPackages: pendingPackages,
	}
}

func (c *ComposerDryRunItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	wc.EmitProgress(c, fmt.Sprintf("%d package(s) pending", len(c.PendingPackages)))

	if len(c.PendingPackages) == 0 {
		return workflow.Result{Status: workflow.ResultSuccess, Data: "no dependency changes pending"}, nil
	}

	update := NewComposerUpdateItem(c.ID()+"-apply", c.PendingPackages)
	return workflow.Result{
		Status:    workflow.ResultSuccess,
		Data:      c.PendingPackages,
		NextItems: []workflow.Item{update},
	}, nil
}

// ComposerUpdateItem actually installs the dependency changes a prior
// ComposerDryRunItem discovered.
type ComposerUpdateItem struct {
	workflow.BaseItem

	Packages []string
}

// NewComposerUpdateItem constructs the real update step for packages.
func NewComposerUpdateItem(id string, packages []string) *ComposerUpdateItem {
	return &ComposerUpdateItem{
		BaseItem: workflow.NewBaseItem(id, "Composer update", "Installs the dependency changes found during the dry-run"),
		Packages: packages,
	}
}

func (c *ComposerUpdateItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	for _, pkg := range c.Packages {
		wc.EmitProgress(c, fmt.Sprintf("installing %s", pkg))
	}
	return workflow.Result{Status: workflow.ResultSuccess, Data: fmt.Sprintf("installed %d package(s)", len(c.Packages))}, nil
}
