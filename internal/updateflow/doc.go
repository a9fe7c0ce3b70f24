// Package updateflow contains illustrative workflow.Item implementations
// for a concrete software-update orchestration used as a motivating,
// out-of-scope application: checking for updates, the updater's own
// self-update check/apply, a composer dependency dry-run and real update,
// a database migration, and a final version refresh.
//
// None of this is imported by internal/workflow — the engine never knows
// these item kinds exist. It exists purely so cmd/workflow-runner has a
// runnable end-to-end example and so integration tests can exercise the
// engine against a realistic-shaped timeline instead of synthetic script
// items.
package updateflow
