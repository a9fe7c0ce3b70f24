package observer

import (
	"time"

	"timeline/internal/workflow"
)

// ItemSnapshot is the wire projection of one timeline Item.
type ItemSnapshot struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      workflow.Status `json:"status"`
	StartTime   *time.Time      `json:"start_time,omitempty"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
}

// Snapshot is the full wire payload pushed to subscribers: the current
// timeline plus the engine's scalar state, derived entirely from the
// Engine's exported getters (no internal field is ever reached into).
type Snapshot struct {
	Timeline []ItemSnapshot `json:"timeline"`
	State    workflow.State `json:"state"`
	Progress float64        `json:"progress"`
}

// buildSnapshot reads a consistent-enough view of engine; since each getter
// takes its own lock, the fields can interleave with a concurrent
// transition, but every field is individually a valid defensive copy —
// exactly the guarantee GetTimeline/GetState/GetProgress document.
func buildSnapshot(e *workflow.Engine) Snapshot {
	items := e.GetTimeline()
	out := make([]ItemSnapshot, len(items))
	for i, it := range items {
		out[i] = ItemSnapshot{
			ID:          it.ID(),
			Title:       it.Title(),
			Description: it.Description(),
			Status:      it.Status(),
			StartTime:   it.StartTime(),
			EndTime:     it.EndTime(),
		}
	}
	return Snapshot{
		Timeline: out,
		State:    e.GetState(),
		Progress: e.GetProgress(),
	}
}
