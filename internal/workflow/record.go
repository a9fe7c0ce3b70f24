package workflow

import "time"

// UserActionEntry records one applied user action against an
// ExecutionRecord, in the order it was handled.
type UserActionEntry struct {
	ActionID  string
	Timestamp time.Time
	Result    UserActionResult
}

// ExecutionRecord is the engine's log entry for one executed item. A record
// is appended (as a placeholder, before Item.Execute returns) each time the
// item starts executing and mutated in place thereafter; records are not
// deleted across splices or cancellation, only by Reset.
type ExecutionRecord struct {
	Item          Item
	Result        Result
	UserActions   []UserActionEntry
	ExecutionTime time.Duration
}

// clone returns a deep-enough copy for defensive snapshot accessors: the
// Item reference itself is shared (items are long-lived engine-owned
// objects, not copied), but the slices and Result value are copied so a
// caller holding a snapshot cannot mutate engine-internal state.
func (r ExecutionRecord) clone() ExecutionRecord {
	out := r
	if len(r.UserActions) > 0 {
		out.UserActions = append([]UserActionEntry(nil), r.UserActions...)
	}
	if len(r.Result.UserActions) > 0 {
		out.Result.UserActions = append([]UserAction(nil), r.Result.UserActions...)
	}
	if len(r.Result.NextItems) > 0 {
		out.Result.NextItems = append([]Item(nil), r.Result.NextItems...)
	}
	return out
}
