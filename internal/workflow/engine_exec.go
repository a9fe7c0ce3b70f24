package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"timeline/internal/async"
	wferrors "timeline/internal/errors"
)

// executeNext is the run loop's step function: if the engine is paused (or
// has otherwise stopped running), it returns without doing anything; once
// the timeline is exhausted it calls complete(); otherwise it drives the
// item at currentIndex.
func (e *Engine) executeNext(ctx context.Context) {
	e.mu.Lock()
	if e.flags.isPaused || !e.flags.isRunning {
		e.mu.Unlock()
		return
	}
	idx := e.currentIndex
	n := len(e.timeline)
	e.mu.Unlock()

	if idx >= n {
		e.complete(ctx)
		return
	}
	e.executeItem(ctx, idx)
}

// executeItem is the engine's inner loop: append a placeholder record and
// emit item_started before the item ever runs (so a
// handler inspecting getExecutionHistory from inside item_started sees its
// own record), await execute, then dispatch on the returned Result status.
func (e *Engine) executeItem(ctx context.Context, i int) {
	e.mu.Lock()
	if i < 0 || i >= len(e.timeline) {
		e.mu.Unlock()
		return
	}
	item := e.timeline[i]
	rec := &ExecutionRecord{Item: item, Result: Result{Status: ResultSuccess}}
	e.records = append(e.records, rec)
	e.recordByID[item.ID()] = rec
	item.SetStatus(StatusActive)
	startedAt := e.clock.Now()
	item.SetStartTime(startedAt)
	e.mu.Unlock()

	e.metrics.RecordItemStarted(string(e.workflowType))
	e.bus.emit(Event{Kind: EventItemStarted, Item: item})

	spanCtx, span := e.tracer.Start(ctx, "workflow.executeItem",
		trace.WithAttributes(attribute.String("item.id", item.ID()), attribute.String("item.title", item.Title())))

	execStart := time.Now()
	result, err := e.safeExecuteItem(spanCtx, item)
	elapsed := time.Since(execStart)
	if err != nil {
		result = Result{Status: ResultError, Error: err.Error()}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	switch result.Status {
	case ResultSuccess:
		e.onItemSuccess(ctx, i, item, rec, result, elapsed)
	case ResultUserActionRequired:
		e.onItemUserAction(item, rec, result)
	default:
		if result.Status != ResultError {
			result = Result{Status: ResultError, Error: fmt.Sprintf("item %s returned unknown result status %q", item.ID(), result.Status)}
		}
		e.onItemError(item, rec, result)
	}
}

// safeExecuteItem awaits item.Execute, trapping both an explicit error
// return and a panic, and wrapping either as an ItemFailure.
func (e *Engine) safeExecuteItem(ctx context.Context, item Item) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wferrors.NewItemFailure(item.ID(), fmt.Errorf("panic: %v", r))
		}
	}()
	res, execErr := item.Execute(ctx, e.ctx)
	if execErr != nil {
		return Result{}, wferrors.NewItemFailure(item.ID(), execErr)
	}
	return res, nil
}

// onItemSuccess applies a success Result: records it, stamps endTime,
// splices any nextItems after i, advances currentIndex, and either pauses
// or yields-and-continues the run loop. If cancel() already moved item to
// StatusCancelled while its Execute was still in flight, the result is
// recorded but the engine does not advance — a cancelled item never
// becomes complete just because its execute happened to resolve after
// the cancel.
func (e *Engine) onItemSuccess(ctx context.Context, i int, item Item, rec *ExecutionRecord, result Result, elapsed time.Duration) {
	e.mu.Lock()
	if item.Status() == StatusCancelled {
		rec.Result = result
		rec.ExecutionTime = elapsed
		e.mu.Unlock()
		return
	}
	rec.Result = result
	rec.ExecutionTime = elapsed
	item.SetStatus(StatusComplete)
	endedAt := e.clock.Now()
	item.SetEndTime(endedAt)
	if len(result.NextItems) > 0 {
		e.spliceLocked(i+1, result.NextItems)
	}
	e.currentIndex = i + 1
	pauseAfter := result.PauseWorkflow
	progress := e.progressLocked()
	timelineLen := len(e.timeline)
	e.mu.Unlock()

	e.metrics.RecordItemCompleted(string(e.workflowType))
	e.metrics.SetProgress(progress)
	e.metrics.SetTimelineLength(timelineLen)
	e.bus.emit(Event{Kind: EventItemCompleted, Item: item, Result: &result})

	if pauseAfter {
		e.Pause()
		return
	}
	async.Yield(ctx)
	e.executeNext(ctx)
}

// onItemError applies an error Result: stores the engine-level error,
// emits item_error, and performs a fatal stop. If cancel() already moved
// item to StatusCancelled while its Execute was still in flight, the
// result is recorded but the engine does not advance or stop again.
func (e *Engine) onItemError(item Item, rec *ExecutionRecord, result Result) {
	e.mu.Lock()
	if item.Status() == StatusCancelled {
		rec.Result = result
		e.mu.Unlock()
		return
	}
	rec.Result = result
	item.SetStatus(StatusError)
	endedAt := e.clock.Now()
	item.SetEndTime(endedAt)
	e.flags.err = result.Error
	e.mu.Unlock()

	e.metrics.RecordItemErrored(string(e.workflowType))
	e.bus.emit(Event{Kind: EventItemError, Item: item, Message: result.Error})
	e.stop(e.currentRunCtx())
}

// onItemUserAction applies a user_action_required Result: the item moves to
// StatusUserActionRequired and currentIndex does not advance. The run loop
// simply ends here (no continuation is scheduled) until handleUserAction,
// retryItem, or skipItem drives the item forward. If cancel() already moved
// item to StatusCancelled while its Execute was still in flight, the
// result is recorded but the item is left cancelled, not reopened for
// interaction.
func (e *Engine) onItemUserAction(item Item, rec *ExecutionRecord, result Result) {
	e.mu.Lock()
	if item.Status() == StatusCancelled {
		rec.Result = result
		e.mu.Unlock()
		return
	}
	rec.Result = result
	item.SetStatus(StatusUserActionRequired)
	pauseAfter := result.PauseWorkflow
	e.mu.Unlock()

	e.bus.emit(Event{Kind: EventUserActionRequired, Item: item, Result: &result})
	if pauseAfter {
		e.Pause()
	}
}

// complete marks the engine done: all items have been driven through to a
// terminal state at or before currentIndex.
func (e *Engine) complete(ctx context.Context) {
	e.mu.Lock()
	e.flags.isRunning = false
	e.flags.isComplete = true
	endedAt := e.clock.Now()
	e.flags.endTime = &endedAt
	timeline := append([]Item(nil), e.timeline...)
	records := e.recordsSnapshotLocked()
	e.mu.Unlock()

	e.metrics.SetProgress(100)
	e.history.flush(ctx, timeline, records, "finished", &endedAt)
	e.bus.emit(Event{Kind: EventCompleted})
}

// Cancel performs a cooperative halt: idempotent via isCancelling, it fans
// out onCancel to every non-terminal item
// concurrently via an errgroup, then marks every non-complete/non-skipped
// item cancelled and flushes history with status "cancelled".
func (e *Engine) Cancel() {
	e.cancel(e.currentRunCtx())
}

func (e *Engine) cancel(ctx context.Context) {
	e.mu.Lock()
	if e.flags.isCancelling {
		e.mu.Unlock()
		return
	}
	e.flags.isCancelling = true
	e.flags.isRunning = false
	e.flags.isPaused = false
	cancelledAt := e.clock.Now()
	e.flags.endTime = &cancelledAt

	var toCancel []Item
	for _, item := range e.timeline {
		switch item.Status() {
		case StatusActive, StatusPending, StatusUserActionRequired:
			toCancel = append(toCancel, item)
		}
	}
	e.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, item := range toCancel {
		item := item
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = wferrors.NewCancelFailure(item.ID(), fmt.Errorf("panic: %v", r))
				}
			}()
			item.OnCancel(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Warn("cancel: %v", err)
	}

	e.mu.Lock()
	for _, item := range e.timeline {
		switch item.Status() {
		case StatusComplete, StatusSkipped:
			// leave terminal, already-settled items alone.
		default:
			item.SetStatus(StatusCancelled)
			item.SetEndTime(cancelledAt)
		}
	}
	timeline := append([]Item(nil), e.timeline...)
	records := e.recordsSnapshotLocked()
	e.mu.Unlock()

	e.history.flush(ctx, timeline, records, "cancelled", &cancelledAt)
	e.bus.emit(Event{Kind: EventCancelled})
}

// emitProgress is Context.EmitProgress's engine-side handler: it updates
// the item's record only while that record's result has success status
// (the placeholder, or a recorded success) and no user actions have been
// applied —
// this protects a terminal-looking result (error, user_action_required)
// from being overwritten by a straggling progress report, and is what
// makes the progress guard invariant hold regardless of goroutine timing
// inside an item's own Execute.
func (e *Engine) emitProgress(item Item, data any) {
	e.mu.Lock()
	rec, ok := e.recordByID[item.ID()]
	if !ok || rec.Result.Status != ResultSuccess || len(rec.UserActions) > 0 {
		e.mu.Unlock()
		return
	}
	rec.Result.Data = data
	e.mu.Unlock()

	e.bus.emit(Event{Kind: EventItemProgress, Item: item, Data: data})
}

// HandleUserAction drives an interactive item forward: it locates the
// item's execution record by id (not by currentIndex — the item may no
// longer be current), resolves the named UserAction from the record's
// pending Result, runs it, appends a UserActionEntry, and dispatches on the
// returned ActionKind.
func (e *Engine) HandleUserAction(itemID, actionID string) {
	e.mu.Lock()
	rec, ok := e.recordByID[itemID]
	if !ok {
		e.mu.Unlock()
		e.log.Debug("handleUserAction: %v", wferrors.NewCallerMisuse("handleUserAction", fmt.Sprintf("no execution record for item %s", itemID)))
		return
	}
	var action *UserAction
	for idx := range rec.Result.UserActions {
		if rec.Result.UserActions[idx].ID == actionID {
			action = &rec.Result.UserActions[idx]
			break
		}
	}
	if action == nil {
		e.mu.Unlock()
		e.log.Debug("handleUserAction: %v", wferrors.NewCallerMisuse("handleUserAction", fmt.Sprintf("item %s has no action %s", itemID, actionID)))
		return
	}
	item := rec.Item
	ctx := e.runCtx
	e.mu.Unlock()

	result, err := e.safeExecuteAction(item, action)
	if err != nil {
		e.mu.Lock()
		e.flags.err = err.Error()
		e.mu.Unlock()
		e.bus.emit(Event{Kind: EventItemError, Item: item, Message: err.Error()})
		e.stop(ctx)
		return
	}

	e.mu.Lock()
	rec.UserActions = append(rec.UserActions, UserActionEntry{
		ActionID:  actionID,
		Timestamp: e.clock.Now(),
		Result:    result,
	})
	e.mu.Unlock()

	switch result.Action {
	case ActionContinue:
		e.applyContinue(ctx, item, rec, result)
	case ActionSkip:
		e.applySkipNext(ctx, item, rec, result)
	case ActionStop:
		e.stop(ctx)
	case ActionCancel:
		e.cancel(ctx)
	case ActionRetry:
		e.mu.Lock()
		idx := e.currentIndex
		e.mu.Unlock()
		e.RetryItem(idx)
	}
}

func (e *Engine) safeExecuteAction(item Item, action *UserAction) (result UserActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wferrors.NewActionFailure(item.ID(), action.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	res, execErr := action.Execute()
	if execErr != nil {
		return UserActionResult{}, wferrors.NewActionFailure(item.ID(), action.ID, execErr)
	}
	return res, nil
}

// applyContinue implements the "continue" branch of handleUserAction:
// additionalItems splice at currentIndex+1 regardless of which item
// originated the action; the current item is marked complete and
// currentIndex advances.
func (e *Engine) applyContinue(ctx context.Context, item Item, rec *ExecutionRecord, result UserActionResult) {
	e.mu.Lock()
	if len(result.AdditionalItems) > 0 {
		e.spliceLocked(e.currentIndex+1, result.AdditionalItems)
	}
	if result.Data != nil {
		rec.Result.Data = result.Data
	}
	item.SetStatus(StatusComplete)
	endedAt := e.clock.Now()
	item.SetEndTime(endedAt)
	e.currentIndex++
	e.mu.Unlock()

	e.bus.emit(Event{Kind: EventItemCompleted, Item: item, Result: &rec.Result})
	e.restart(ctx)
}

// applySkipNext implements the "skip" branch of handleUserAction: despite
// its name this skips the item *after* the interactive one, not the
// interactive item itself — the interactive item is marked complete (the
// user acknowledged it) exactly as in the continue branch, and the
// following item is marked skipped with a synthetic item_completed. This
// asymmetry is intentional and must not be "fixed" without confirming the
// product intent first.
func (e *Engine) applySkipNext(ctx context.Context, item Item, rec *ExecutionRecord, result UserActionResult) {
	e.mu.Lock()
	if len(result.AdditionalItems) > 0 {
		e.spliceLocked(e.currentIndex+1, result.AdditionalItems)
	}
	if result.Data != nil {
		rec.Result.Data = result.Data
	}
	item.SetStatus(StatusComplete)
	skippedAt := e.clock.Now()
	item.SetEndTime(skippedAt)
	e.currentIndex++

	var nextItem Item
	var nextRec *ExecutionRecord
	if e.currentIndex < len(e.timeline) {
		nextItem = e.timeline[e.currentIndex]
		nextItem.SetStatus(StatusSkipped)
		nextItem.SetStartTime(skippedAt)
		nextItem.SetEndTime(skippedAt)
		nextRec = &ExecutionRecord{Item: nextItem, Result: Result{Status: ResultSuccess}}
		e.records = append(e.records, nextRec)
		e.recordByID[nextItem.ID()] = nextRec
		e.currentIndex++
	}
	e.mu.Unlock()

	e.bus.emit(Event{Kind: EventItemCompleted, Item: item, Result: &rec.Result})
	if nextItem != nil {
		e.bus.emit(Event{Kind: EventItemCompleted, Item: nextItem, Result: &nextRec.Result})
	}
	e.restart(ctx)
}
