package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"timeline/internal/async"
	wferrors "timeline/internal/errors"
	"timeline/internal/logging"
	"timeline/internal/observability"
)

// Engine owns a mutable timeline of Items and drives them, one at a time,
// through their lifecycle. It is the single-threaded cooperative state
// machine described at the package level: callers mutate it through the
// exported methods below, and observe it by subscribing to its EventBus.
//
// All exported methods are safe to call from any goroutine; the engine
// serializes its own state mutation internally and never runs two Execute
// calls concurrently.
type Engine struct {
	mu sync.Mutex

	timeline     []Item
	currentIndex int
	records      []*ExecutionRecord
	recordByID   map[string]*ExecutionRecord

	flags engineFlags

	bus   *EventBus
	ctx   *Context
	clock Clock
	log   logging.Logger

	metrics *observability.EngineMetrics
	tracer  trace.Tracer

	historyPort  HistoryPort
	summaryFn    SummaryFunc
	siteID       string
	workflowType WorkflowType
	history      *historyProjector

	runCtx context.Context
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a component logger; a nil logger is tolerated (see
// logging.OrNop).
func WithLogger(log logging.Logger) Option { return func(e *Engine) { e.log = log } }

// WithClock overrides the time source, for deterministic tests.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithMetrics wires a Prometheus-backed EngineMetrics; nil is tolerated
// (EngineMetrics' methods are nil-receiver safe).
func WithMetrics(m *observability.EngineMetrics) Option { return func(e *Engine) { e.metrics = m } }

// WithTracer overrides the OTel tracer used to span executeItem calls.
// Omitting this option uses otel.Tracer, which is a safe no-op until a
// global TracerProvider is registered.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithHistoryPort wires the external persistence collaborator. Omitting
// this option leaves history projection a no-op.
func WithHistoryPort(port HistoryPort) Option { return func(e *Engine) { e.historyPort = port } }

// WithSummaryFunc supplies the per-workflow-type history summary strategy —
// a function supplied by the caller, never a switch inside the engine.
func WithSummaryFunc(fn SummaryFunc) Option { return func(e *Engine) { e.summaryFn = fn } }

// WithSiteID sets the site identifier forwarded to HistoryPort.CreateEntry.
func WithSiteID(id string) Option { return func(e *Engine) { e.siteID = id } }

// WithWorkflowType sets the workflow type forwarded to HistoryPort and used
// to select a summary strategy upstream of the engine.
func WithWorkflowType(t WorkflowType) Option { return func(e *Engine) { e.workflowType = t } }

// New constructs an idle Engine with an empty timeline.
func New(opts ...Option) *Engine {
	e := &Engine{
		recordByID: make(map[string]*ExecutionRecord),
		clock:      SystemClock{},
		summaryFn:  NoopSummary,
		tracer:     otel.Tracer("timeline/workflow"),
	}
	e.ctx = newContext(e)
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrNop(e.log)
	e.bus = NewEventBus(e.log)
	e.history = newHistoryProjector(e.historyPort, e.summaryFn, e.siteID, e.workflowType, e.log)
	return e
}

// AddItems appends items to the end of the timeline. Duplicate ids (either
// among items or against the existing timeline) are rejected — a caller
// error, not a defensive no-op.
func (e *Engine) AddItems(items []Item) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDuplicatesLocked(items); err != nil {
		return err
	}
	e.timeline = append(e.timeline, items...)
	e.metrics.SetTimelineLength(len(e.timeline))
	return nil
}

// InsertItems splices items into the timeline at index, or immediately
// after the current position when index is nil.
func (e *Engine) InsertItems(items []Item, index *int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDuplicatesLocked(items); err != nil {
		return err
	}
	at := e.currentIndex + 1
	if index != nil {
		at = *index
	}
	e.spliceLocked(at, items)
	return nil
}

func (e *Engine) checkDuplicatesLocked(items []Item) error {
	existing := make(map[string]bool, len(e.timeline)+len(items))
	for _, it := range e.timeline {
		existing[it.ID()] = true
	}
	for _, it := range items {
		id := it.ID()
		if existing[id] {
			return fmt.Errorf("workflow: duplicate item id %q", id)
		}
		existing[id] = true
	}
	return nil
}

// RemoveItem drops the item with the given id from the timeline, adjusting
// currentIndex if the removal shifts positions at or before it.
func (e *Engine) RemoveItem(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := -1
	for i, it := range e.timeline {
		if it.ID() == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	e.timeline = append(e.timeline[:idx], e.timeline[idx+1:]...)
	if idx <= e.currentIndex && e.currentIndex > 0 {
		e.currentIndex--
	}
}

// Start begins execution from the first item. A no-op (logged as
// CallerMisuse) if already running or the timeline is empty.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.flags.isRunning {
		e.mu.Unlock()
		e.log.Debug("start: %v", wferrors.NewCallerMisuse("start", "engine already running"))
		return
	}
	if len(e.timeline) == 0 {
		e.mu.Unlock()
		e.log.Debug("start: %v", wferrors.NewCallerMisuse("start", "timeline is empty"))
		return
	}
	e.flags = engineFlags{}
	e.flags.isRunning = true
	startedAt := e.clock.Now()
	e.flags.startTime = &startedAt
	e.currentIndex = 0
	e.runCtx = ctx
	e.mu.Unlock()

	e.history.start(ctx)
	e.bus.emit(Event{Kind: EventStarted})
	e.spawnRun(ctx, e.executeNext)
}

// StartFromStep begins execution at index k; all items before k are marked
// skipped with endTime stamped but no startTime ("never attempted"). An
// out-of-bounds k is a silent no-op.
func (e *Engine) StartFromStep(ctx context.Context, k int) {
	e.mu.Lock()
	if e.flags.isRunning {
		e.mu.Unlock()
		e.log.Debug("startFromStep: %v", wferrors.NewCallerMisuse("startFromStep", "engine already running"))
		return
	}
	if len(e.timeline) == 0 {
		e.mu.Unlock()
		e.log.Debug("startFromStep: %v", wferrors.NewCallerMisuse("startFromStep", "timeline is empty"))
		return
	}
	if k < 0 || k > len(e.timeline) {
		e.mu.Unlock()
		e.log.Debug("startFromStep: %v", wferrors.NewCallerMisuse("startFromStep", fmt.Sprintf("index %d out of bounds [0,%d]", k, len(e.timeline))))
		return
	}
	skippedAt := e.clock.Now()
	for i := 0; i < k; i++ {
		item := e.timeline[i]
		item.SetStatus(StatusSkipped)
		item.SetEndTime(skippedAt)
	}
	e.flags = engineFlags{}
	e.flags.isRunning = true
	e.flags.startTime = &skippedAt
	e.currentIndex = k
	e.runCtx = ctx
	e.mu.Unlock()

	e.history.start(ctx)
	e.bus.emit(Event{Kind: EventStarted})
	e.spawnRun(ctx, e.executeNext)
}

// Pause halts the run loop after the currently executing item, if any. A
// silent no-op unless the engine is running.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.flags.isRunning {
		e.mu.Unlock()
		return
	}
	e.flags.isRunning = false
	e.flags.isPaused = true
	e.mu.Unlock()
	e.bus.emit(Event{Kind: EventPaused})
}

// Resume reverses Pause, resuming the run loop. A silent no-op unless the
// engine is currently paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.flags.isPaused {
		e.mu.Unlock()
		return
	}
	ctx := e.runCtx
	e.mu.Unlock()
	e.restart(ctx)
}

// restart is the internal "continue the run loop" operation used both by
// Resume and by internal resume() calls inside handleUserAction/skipItem/
// retryItem, which fire regardless of whether the engine was actually
// paused (e.g. a user_action_required item that never set pauseWorkflow
// never flips isPaused in the first place).
func (e *Engine) restart(ctx context.Context) {
	e.mu.Lock()
	e.flags.isPaused = false
	e.flags.isRunning = true
	e.mu.Unlock()
	e.bus.emit(Event{Kind: EventResumed})
	e.spawnRun(ctx, e.executeNext)
}

// Stop performs a fatal halt: clears the run flags, flushes history with
// status "error", and emits stopped. Stop always records an "error" history
// status, even when called for a graceful halt — Prefer Cancel for a
// cooperative, non-error halt.
func (e *Engine) Stop() {
	e.stop(e.currentRunCtx())
}

func (e *Engine) stop(ctx context.Context) {
	e.mu.Lock()
	e.flags.isRunning = false
	e.flags.isPaused = false
	endedAt := e.clock.Now()
	e.flags.endTime = &endedAt
	timeline := append([]Item(nil), e.timeline...)
	records := e.recordsSnapshotLocked()
	e.mu.Unlock()

	e.history.flush(ctx, timeline, records, "error", &endedAt)
	e.bus.emit(Event{Kind: EventStopped})
}

// RetryItem re-runs the item at index i if it allows retry. If the engine
// isn't currently running, this restarts the run loop at i; otherwise it
// re-executes i directly.
func (e *Engine) RetryItem(i int) {
	e.mu.Lock()
	if i < 0 || i >= len(e.timeline) {
		e.mu.Unlock()
		e.log.Debug("retryItem: %v", wferrors.NewCallerMisuse("retryItem", fmt.Sprintf("index %d out of bounds", i)))
		return
	}
	item := e.timeline[i]
	if !item.CanRetry() {
		e.mu.Unlock()
		e.log.Debug("retryItem: %v", wferrors.NewCallerMisuse("retryItem", fmt.Sprintf("item %s cannot be retried", item.ID())))
		return
	}
	ctx := e.runCtx
	wasRunning := e.flags.isRunning
	e.currentIndex = i
	e.mu.Unlock()

	item.OnRetry(ctx)

	if !wasRunning {
		e.restart(ctx)
		return
	}
	e.spawnRun(ctx, func(ctx context.Context) { e.executeItem(ctx, i) })
}

// SkipItem marks the item at index i skipped if it allows skipping. When i
// is the current item, the run loop is advanced past it.
func (e *Engine) SkipItem(i int) {
	e.mu.Lock()
	if i < 0 || i >= len(e.timeline) {
		e.mu.Unlock()
		e.log.Debug("skipItem: %v", wferrors.NewCallerMisuse("skipItem", fmt.Sprintf("index %d out of bounds", i)))
		return
	}
	item := e.timeline[i]
	if !item.CanSkip() {
		e.mu.Unlock()
		e.log.Debug("skipItem: %v", wferrors.NewCallerMisuse("skipItem", fmt.Sprintf("item %s cannot be skipped", item.ID())))
		return
	}
	ctx := e.runCtx
	e.mu.Unlock()

	item.OnSkip(ctx)

	e.mu.Lock()
	skippedAt := e.clock.Now()
	item.SetStatus(StatusSkipped)
	item.SetEndTime(skippedAt)
	isCurrent := i == e.currentIndex
	var running, paused bool
	if isCurrent {
		e.currentIndex = i + 1
		running = e.flags.isRunning
		paused = e.flags.isPaused
	}
	e.mu.Unlock()

	if !isCurrent {
		return
	}
	if running {
		e.spawnRun(ctx, e.executeNext)
	} else if paused {
		e.restart(ctx)
	}
}

// On subscribes handler to kind; the returned token can be passed to Off.
func (e *Engine) On(kind EventKind, handler Handler) int { return e.bus.On(kind, handler) }

// Off removes a handler previously registered via On.
func (e *Engine) Off(kind EventKind, token int) { e.bus.Off(kind, token) }

// GetTimeline returns a defensive copy of the current item slice; the Item
// values themselves are shared (they are long-lived engine-owned objects).
func (e *Engine) GetTimeline() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Item(nil), e.timeline...)
}

// GetExecutionHistory returns a defensive copy of every execution record
// appended so far, in append order.
func (e *Engine) GetExecutionHistory() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ExecutionRecord, len(e.records))
	for i, r := range e.records {
		out[i] = r.clone()
	}
	return out
}

// GetState returns a defensive-copy snapshot of the engine's flags.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		CurrentIndex: e.currentIndex,
		TimelineLen:  len(e.timeline),
		IsRunning:    e.flags.isRunning,
		IsPaused:     e.flags.isPaused,
		IsComplete:   e.flags.isComplete,
		IsCancelling: e.flags.isCancelling,
		Error:        e.flags.err,
		StartTime:    copyTime(e.flags.startTime),
		EndTime:      copyTime(e.flags.endTime),
	}
}

// GetCurrentItem returns the item at currentIndex, or nil past the end of
// the timeline.
func (e *Engine) GetCurrentItem() Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentIndex < 0 || e.currentIndex >= len(e.timeline) {
		return nil
	}
	return e.timeline[e.currentIndex]
}

// GetCurrentIndex returns the engine's current position in the timeline.
func (e *Engine) GetCurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// GetProgress returns the percentage (0-100) of items before currentIndex
// that are complete or skipped. An empty timeline yields 0.
func (e *Engine) GetProgress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

func (e *Engine) progressLocked() float64 {
	n := len(e.timeline)
	if n == 0 {
		return 0
	}
	upper := e.currentIndex
	if upper > n {
		upper = n
	}
	done := 0
	for i := 0; i < upper; i++ {
		switch e.timeline[i].Status() {
		case StatusComplete, StatusSkipped:
			done++
		}
	}
	return float64(done) / float64(n) * 100
}

// GetError returns the engine-level error message, if any.
func (e *Engine) GetError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags.err
}

// IsRunning reports whether the engine is actively driving the timeline.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags.isRunning
}

// IsPaused reports whether the engine is paused.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags.isPaused
}

// IsComplete reports whether the engine finished its timeline.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags.isComplete
}

// Reset clears the timeline, execution history, flags, and shared context,
// returning the engine to its just-constructed Idle state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.timeline = nil
	e.currentIndex = 0
	e.records = nil
	e.recordByID = make(map[string]*ExecutionRecord)
	e.flags.reset()
	e.runCtx = nil
	e.mu.Unlock()
	e.ctx.reset()
}

// GetContext returns the shared per-run Context passed to every Item.Execute.
func (e *Engine) GetContext() *Context { return e.ctx }

func (e *Engine) currentRunCtx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}

func (e *Engine) spawnRun(ctx context.Context, fn func(context.Context)) {
	async.Go(e.log, "workflow-run", func() { fn(ctx) })
}

// recordsSnapshotLocked returns a shallow copy of recordByID for handing to
// the history projector. Callers must hold e.mu.
func (e *Engine) recordsSnapshotLocked() map[string]*ExecutionRecord {
	out := make(map[string]*ExecutionRecord, len(e.recordByID))
	for k, v := range e.recordByID {
		out[k] = v
	}
	return out
}

// spliceLocked inserts items at position at, clamped to the timeline's
// bounds. Callers must hold e.mu.
func (e *Engine) spliceLocked(at int, items []Item) {
	if len(items) == 0 {
		return
	}
	if at < 0 {
		at = 0
	}
	if at > len(e.timeline) {
		at = len(e.timeline)
	}
	tail := append([]Item(nil), e.timeline[at:]...)
	e.timeline = append(e.timeline[:at:at], items...)
	e.timeline = append(e.timeline, tail...)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tt := *t
	return &tt
}
