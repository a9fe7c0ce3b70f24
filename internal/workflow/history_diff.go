package workflow

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// logDiff diffs the previously flushed step projection against the one about
// to be written and logs, at debug level, how many lines were inserted and
// deleted, so an operator can see that a history flush changed something.
// Nothing is logged on the first flush or when the projection is unchanged.
func (p *historyProjector) logDiff(next []HistoryStep) {
	if p.prev == nil {
		return
	}
	before := renderSteps(p.prev)
	after := renderSteps(next)
	if before == after {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	p.log.Debug("history snapshot changed for entry %s: %s", p.entryID, summarizeDiffs(diffs))
}

func renderSteps(steps []HistoryStep) string {
	lines := make([]string, 0, len(steps))
	for _, s := range steps {
		lines = append(lines, fmt.Sprintf("%s:%s:%s", s.ID, s.Status, s.Summary))
	}
	return strings.Join(lines, "\n")
}

func summarizeDiffs(diffs []diffmatchpatch.Diff) string {
	var added, removed int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len(strings.Split(d.Text, "\n"))
		case diffmatchpatch.DiffDelete:
			removed += len(strings.Split(d.Text, "\n"))
		}
	}
	return fmt.Sprintf("+%d/-%d lines", added, removed)
}
