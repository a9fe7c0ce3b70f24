package workflow

// ResultStatus discriminates the tagged Result variants returned by
// Item.Execute.
type ResultStatus string

const (
	ResultSuccess             ResultStatus = "success"
	ResultError                ResultStatus = "error"
	ResultUserActionRequired  ResultStatus = "user_action_required"
)

// Result is the outcome of a single Item.Execute call. Status discriminates
// which of the optional fields are meaningful:
//   - success: Data, NextItems, PauseWorkflow
//   - error: Error
//   - user_action_required: UserActions, PauseWorkflow
type Result struct {
	Status ResultStatus

	// Data is an opaque payload recorded onto the ExecutionRecord.
	Data any

	// Error carries the failure message when Status == ResultError.
	Error string

	// UIContent is an opaque presentation payload; the engine never
	// interprets it, only forwards it to observers.
	UIContent any

	// UserActions is only meaningful when Status == ResultUserActionRequired.
	UserActions []UserAction

	// NextItems are spliced into the timeline immediately after the
	// executing item's position. Only meaningful when Status == ResultSuccess.
	NextItems []Item

	// PauseWorkflow, when set, calls pause() after this result is applied.
	PauseWorkflow bool
}

// ActionKind discriminates the outcome of a UserAction's Execute call.
type ActionKind string

const (
	ActionContinue ActionKind = "continue"
	ActionSkip     ActionKind = "skip"
	ActionStop     ActionKind = "stop"
	ActionCancel   ActionKind = "cancel"
	ActionRetry    ActionKind = "retry"
)

// Variant is the presentation style of a UserAction, forwarded to observers
// verbatim — the engine attaches no behavior to it.
type Variant string

const (
	VariantPrimary   Variant = "primary"
	VariantSecondary Variant = "secondary"
	VariantDanger    Variant = "danger"
)

// UserAction is a named, presentable choice exposed by an interactive item
// (one whose Execute returned ResultUserActionRequired).
type UserAction struct {
	ID          string
	Label       string
	Description string
	Variant     Variant
	Disabled    bool

	// Execute runs the chosen action and yields the driving result. The
	// engine awaits this call; a panic or error is trapped and converted to
	// an engine error (ActionFailure), triggering stop().
	Execute func() (UserActionResult, error)
}

// UserActionResult is what a UserAction.Execute call yields to the engine.
type UserActionResult struct {
	Action ActionKind

	// AdditionalItems are spliced at currentIndex+1, same as Result.NextItems.
	AdditionalItems []Item

	// Data, if set, replaces the result data of the ExecutionRecord of the
	// item that offered the action; the old and new values are not merged.
	Data any
}
