package result

import "github.com/jbonatakis/testqueue/internal/testplan"

// IsComplete reports whether r is a finished result for test. test must be
// in runnable form, i.e. its scenarios already narrowed to the run's AT.
// Optional assertions may be left unjudged.
func IsComplete(test testplan.Test, r TestResult) bool {
	if !r.Submitted() {
		return false
	}
	for _, scenario := range test.Scenarios {
		sr, ok := r.Scenario(scenario.ID)
		if !ok {
			return false
		}
		for _, a := range scenario.Assertions {
			if a.Priority != testplan.PriorityRequired {
				continue
			}
			ar, ok := sr.Assertion(a.ID)
			if !ok || ar.Passed == nil {
				return false
			}
		}
	}
	return true
}

// IsRunComplete reports whether every result in the run is complete. A run
// with no results is complete; use HasTestsToRun to tell that case apart.
func IsRunComplete(run TestPlanRun, tests []testplan.Test) bool {
	for _, r := range run.TestResults {
		test, ok := testplan.FindTest(tests, r.Index)
		if !ok || !IsComplete(test, r) {
			return false
		}
	}
	return true
}

func HasTestsToRun(run TestPlanRun) bool {
	return len(run.TestResults) > 0
}

func CompletedCount(run TestPlanRun, tests []testplan.Test) int {
	n := 0
	for _, r := range run.TestResults {
		if test, ok := testplan.FindTest(tests, r.Index); ok && IsComplete(test, r) {
			n++
		}
	}
	return n
}

// Refresh recomputes the derived flags on every result in the run.
func Refresh(run *TestPlanRun, tests []testplan.Test) {
	for i := range run.TestResults {
		r := &run.TestResults[i]
		test, ok := testplan.FindTest(tests, r.Index)
		if !ok {
			r.IsComplete = false
			r.IsSkipped = r.Started()
			continue
		}
		refresh(test, r)
	}
}

func refresh(test testplan.Test, r *TestResult) {
	r.IsComplete = IsComplete(test, *r)
	r.IsSkipped = r.Started() && !r.IsComplete
}
