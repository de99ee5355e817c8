package report

import (
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

type NavStatus string

const (
	NavNotStarted   NavStatus = "Not Started"
	NavInProgress   NavStatus = "In Progress"
	NavHasConflicts NavStatus = "Has Conflicts"
	NavComplete     NavStatus = "Complete"
)

// NavItem is one row of the test navigator shown to a tester.
type NavItem struct {
	Position int           `json:"position"`
	Test     testplan.Test `json:"test"`
	Status   NavStatus     `json:"status"`
}

// Navigator lists the run's tests in position order with their status.
// Conflicts are report-wide, so a test shows as conflicting even when this
// run's own result agrees with one side.
func Navigator(s Snapshot, runID string) ([]NavItem, bool) {
	run, ok := s.Run(runID)
	if !ok {
		return nil, false
	}
	conflicts := DetectConflicts(s)
	tests := s.RunnableTests()
	items := make([]NavItem, 0, len(tests))
	for i, test := range tests {
		items = append(items, NavItem{
			Position: i + 1,
			Test:     test,
			Status:   NavigatorStatus(test, &run, conflicts),
		})
	}
	return items, true
}

func NavigatorStatus(test testplan.Test, run *result.TestPlanRun, conflicts Conflicts) NavStatus {
	r, ok := run.Result(test.Index)
	complete := ok && result.IsComplete(test, *r)
	switch {
	case ok && r.Started() && !complete:
		return NavInProgress
	case conflicts.Has(test.Index):
		return NavHasConflicts
	case complete:
		return NavComplete
	default:
		return NavNotStarted
	}
}
