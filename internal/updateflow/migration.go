package updateflow

import (
	"context"
	"fmt"

	"timeline/internal/workflow"
)

// DatabaseMigrationItem applies pending schema migrations. Migrations can
// be neither retried nor skipped — a partially-applied
// schema change is worse than a halted workflow.
type DatabaseMigrationItem struct {
	workflow.BaseItem

	Migrations []string
}

// NewDatabaseMigrationItem constructs the migration step for the given
// ordered migration names.
func NewDatabaseMigrationItem(id string, migrations []string) *DatabaseMigrationItem {
	return &DatabaseMigrationItem{
		BaseItem:   workflow.NewBaseItem(id, "Run database migrations", "Applies pending schema migrations in order"),
		Migrations: migrations,
	}
}

func (d *DatabaseMigrationItem) CanSkip() bool  { return false }
func (d *DatabaseMigrationItem) CanRetry() bool { return false }

func (d *DatabaseMigrationItem) Execute(ctx context.Context, wc *workflow.Context) (workflow.Result, error) {
	for i, m := range d.Migrations {
		wc.EmitProgress(d, fmt.Sprintf("applying %s (%d/%d)", m, i+1, len(d.Migrations)))
	}
	return workflow.Result{Status: workflow.ResultSuccess, Data: fmt.Sprintf("applied %d migration(s)", len(d.Migrations))}, nil
}
