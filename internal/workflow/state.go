package workflow

import "time"

// State is a defensive-copy snapshot of the engine's flags and bookkeeping,
// suitable for handing to a caller via GetState().
type State struct {
	CurrentIndex int
	TimelineLen  int
	IsRunning    bool
	IsPaused     bool
	IsComplete   bool
	IsCancelling bool
	Error        string
	StartTime    *time.Time
	EndTime      *time.Time
}

// engineFlags is the mutable, engine-owned half of State. It is never
// exposed directly; GetState() copies it into a State value.
type engineFlags struct {
	isRunning    bool
	isPaused     bool
	isComplete   bool
	isCancelling bool
	err          string
	startTime    *time.Time
	endTime      *time.Time
}

func (f *engineFlags) reset() {
	*f = engineFlags{}
}
