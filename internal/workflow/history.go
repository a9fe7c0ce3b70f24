package workflow

import (
	"context"
	"time"

	wferrors "timeline/internal/errors"
	"timeline/internal/logging"
)

// WorkflowType identifies which summary strategy and history bucket a run
// belongs to. The engine does not interpret the value beyond passing it to
// HistoryPort.
type WorkflowType string

// HistoryStepStatus is the near-identity projection of Status used in a
// HistoryEntry's steps, collapsing user_action_required onto active.
type HistoryStepStatus string

const (
	HistoryStepPending   HistoryStepStatus = "pending"
	HistoryStepActive    HistoryStepStatus = "active"
	HistoryStepComplete  HistoryStepStatus = "complete"
	HistoryStepError     HistoryStepStatus = "error"
	HistoryStepSkipped   HistoryStepStatus = "skipped"
	HistoryStepCancelled HistoryStepStatus = "cancelled"
)

func projectStepStatus(s Status) HistoryStepStatus {
	if s == StatusUserActionRequired {
		return HistoryStepActive
	}
	return HistoryStepStatus(s)
}

// HistoryStep is one item's projection inside a HistoryEntry's Steps list.
type HistoryStep struct {
	ID        string
	Title     string
	Summary   string
	StartTime *time.Time
	EndTime   *time.Time
	Status    HistoryStepStatus
	Error     string
}

// EntrySpec is the input to HistoryPort.CreateEntry.
type EntrySpec struct {
	SiteID       string
	WorkflowType WorkflowType
}

// EntryUpdate is a full replacement of one history entry's projected steps
// and terminal fields. HistoryPort.UpdateEntry must be idempotent under
// repeated writes of the same snapshot.
type EntryUpdate struct {
	SiteID  string
	Status  string // "error" | "cancelled" | "finished" | ""
	EndTime *time.Time
	Steps   []HistoryStep
}

// Entry is the opaque handle a HistoryPort returns from CreateEntry.
type Entry struct {
	ID     string
	SiteID string
}

// HistoryPort is the narrow interface the engine consumes to persist
// derived history; the actual persistence service lives outside this
// module. Implementations must treat write failures as non-fatal to the
// caller — the engine already logs and ignores errors returned here, but a
// defensive implementation should not panic.
type HistoryPort interface {
	CreateEntry(ctx context.Context, spec EntrySpec) (Entry, error)
	UpdateEntry(ctx context.Context, id string, update EntryUpdate) (Entry, error)
}

// SummaryFunc computes the human-readable summary for one item's projected
// history step from its id and the latest recorded result data. Returning
// an empty string drops the item from the projection entirely. This is a
// strategy supplied by the caller per workflow type — the engine and
// projector never switch on item kind themselves.
type SummaryFunc func(itemID string, data any) string

// NoopSummary always returns "", dropping every item from the history
// projection -- the safe default when a caller hasn't supplied a
// workflow-specific SummaryFunc, since the engine has no generic way to
// turn an item's result data into a human-readable summary on its own.
func NoopSummary(string, any) string { return "" }

// historyProjector derives HistoryPort writes from the engine's timeline +
// execution records and mediates the create/update lifecycle calls the
// engine state machine triggers from start/stop/cancel/complete.
type historyProjector struct {
	port         HistoryPort
	summary      SummaryFunc
	siteID       string
	workflowType WorkflowType
	log          logging.Logger

	entryID string
	prev    []HistoryStep
}

func newHistoryProjector(port HistoryPort, summary SummaryFunc, siteID string, wfType WorkflowType, log logging.Logger) *historyProjector {
	if summary == nil {
		summary = NoopSummary
	}
	return &historyProjector{port: port, summary: summary, siteID: siteID, workflowType: wfType, log: logging.OrNop(log)}
}

// start creates the backing history entry. Called once, from Engine.start.
func (p *historyProjector) start(ctx context.Context) {
	if p.port == nil {
		return
	}
	entry, err := p.port.CreateEntry(ctx, EntrySpec{SiteID: p.siteID, WorkflowType: p.workflowType})
	if err != nil {
		p.log.Warn("history createEntry failed: %v", wferrors.NewHistoryFailure(err))
		return
	}
	p.entryID = entry.ID
}

// project derives the HistoryStep list for the current timeline + records.
func (p *historyProjector) project(timeline []Item, records map[string]*ExecutionRecord) []HistoryStep {
	steps := make([]HistoryStep, 0, len(timeline))
	for _, item := range timeline {
		rec := records[item.ID()]
		var data any
		var errMsg string
		if rec != nil {
			data = rec.Result.Data
			errMsg = rec.Result.Error
		}
		summary := p.summary(item.ID(), data)
		if summary == "" {
			continue
		}
		steps = append(steps, HistoryStep{
			ID:        item.ID(),
			Title:     item.Title(),
			Summary:   summary,
			StartTime: item.StartTime(),
			EndTime:   item.EndTime(),
			Status:    projectStepStatus(item.Status()),
			Error:     errMsg,
		})
	}
	return steps
}

// flush writes the current projection with the given terminal status
// ("error" | "cancelled" | "finished"). Failures are logged and ignored —
// history writes never influence execution.
func (p *historyProjector) flush(ctx context.Context, timeline []Item, records map[string]*ExecutionRecord, status string, endTime *time.Time) {
	if p.port == nil || p.entryID == "" {
		return
	}
	steps := p.project(timeline, records)
	p.logDiff(steps)
	_, err := p.port.UpdateEntry(ctx, p.entryID, EntryUpdate{
		SiteID:  p.siteID,
		Status:  status,
		EndTime: endTime,
		Steps:   steps,
	})
	if err != nil {
		p.log.Warn("history updateEntry failed: %v", wferrors.NewHistoryFailure(err))
	}
	p.prev = steps
}
