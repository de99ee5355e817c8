package result

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Record merges upd into the run's result for index. tests must be the
// runnable tests for the run's AT. A result row is created if the run has
// none for index; its ID is left for the caller to assign.
func Record(run *TestPlanRun, tests []testplan.Test, index int, upd Update, now time.Time) (*TestResult, error) {
	if upd.Result != nil && upd.Reopen {
		return nil, fmt.Errorf("record result %d: %w: cannot submit and reopen in one update", index, apperr.ErrInvalidInput)
	}
	test, ok := testplan.FindTest(tests, index)
	if !ok {
		return nil, apperr.NotFoundError{Kind: "test", ID: strconv.Itoa(index)}
	}

	var normalized []ScenarioResult
	if upd.Result != nil {
		var err error
		normalized, err = normalize(test, upd.Result.ScenarioResults)
		if err != nil {
			return nil, fmt.Errorf("record result %d: %w: %w", index, apperr.ErrInvalidInput, err)
		}
	}

	r, ok := run.Result(index)
	if !ok {
		run.TestResults = append(run.TestResults, TestResult{
			TestPlanRunID: run.ID,
			Index:         index,
			TestID:        test.ID,
		})
		r = &run.TestResults[len(run.TestResults)-1]
	}

	if upd.State != nil {
		r.State = append(r.State[:0:0], upd.State...)
	}
	if upd.Issues != nil {
		r.Issues = append([]string{}, upd.Issues...)
	}
	if upd.Result != nil {
		r.ScenarioResults = normalized
		submitted := now
		r.SubmittedAt = &submitted
	}
	if upd.Reopen {
		r.SubmittedAt = nil
	}
	r.UpdatedAt = now
	refresh(test, r)
	return r, nil
}

// Clear resets the result for index to not started. The row keeps its ID and
// position in the run.
func Clear(run *TestPlanRun, index int, now time.Time) (*TestResult, error) {
	r, ok := run.Result(index)
	if !ok {
		return nil, apperr.NotFoundError{Kind: "test result", ID: strconv.Itoa(index)}
	}
	r.State = nil
	r.ScenarioResults = nil
	r.Issues = nil
	r.SubmittedAt = nil
	r.IsComplete = false
	r.IsSkipped = false
	r.UpdatedAt = now
	return r, nil
}

// normalize checks a submission against the test and orders it the way the
// test declares scenarios and assertions.
func normalize(test testplan.Test, in []ScenarioResult) ([]ScenarioResult, error) {
	byID := make(map[string]ScenarioResult, len(in))
	for _, sr := range in {
		if _, dup := byID[sr.ScenarioID]; dup {
			return nil, fmt.Errorf("duplicate result for scenario %q", sr.ScenarioID)
		}
		scenario, ok := test.Scenario(sr.ScenarioID)
		if !ok {
			return nil, fmt.Errorf("scenario %q is not part of test %q", sr.ScenarioID, test.ID)
		}
		if err := checkScenario(scenario, sr); err != nil {
			return nil, err
		}
		byID[sr.ScenarioID] = sr
	}

	out := make([]ScenarioResult, 0, len(in))
	for _, scenario := range test.Scenarios {
		sr, ok := byID[scenario.ID]
		if !ok {
			continue
		}
		ordered := ScenarioResult{
			ScenarioID:          sr.ScenarioID,
			Output:              sr.Output,
			AssertionResults:    make([]AssertionResult, 0, len(sr.AssertionResults)),
			UnexpectedBehaviors: append([]UnexpectedBehavior{}, sr.UnexpectedBehaviors...),
		}
		for _, a := range scenario.Assertions {
			if ar, ok := sr.Assertion(a.ID); ok {
				ordered.AssertionResults = append(ordered.AssertionResults, cloneAssertionResult(ar))
			}
		}
		out = append(out, ordered)
	}
	return out, nil
}

func checkScenario(scenario testplan.Scenario, sr ScenarioResult) error {
	seen := make(map[string]struct{}, len(sr.AssertionResults))
	for _, ar := range sr.AssertionResults {
		if _, dup := seen[ar.AssertionID]; dup {
			return fmt.Errorf("scenario %q: duplicate result for assertion %q", scenario.ID, ar.AssertionID)
		}
		seen[ar.AssertionID] = struct{}{}
		if _, ok := scenario.Assertion(ar.AssertionID); !ok {
			return fmt.Errorf("scenario %q: unknown assertion %q", scenario.ID, ar.AssertionID)
		}
		if ar.FailedReason != nil {
			if !ar.FailedReason.Valid() {
				return fmt.Errorf("scenario %q assertion %q: invalid failed reason %q", scenario.ID, ar.AssertionID, *ar.FailedReason)
			}
			if ar.Passed == nil || *ar.Passed {
				return fmt.Errorf("scenario %q assertion %q: failed reason set on a non-failing assertion", scenario.ID, ar.AssertionID)
			}
		}
	}
	for _, b := range sr.UnexpectedBehaviors {
		if !b.Kind.Valid() {
			return fmt.Errorf("scenario %q: invalid unexpected behavior %q", scenario.ID, b.Kind)
		}
	}
	return nil
}

func cloneAssertionResult(a AssertionResult) AssertionResult {
	out := AssertionResult{AssertionID: a.AssertionID}
	if a.Passed != nil {
		out.Passed = Bool(*a.Passed)
	}
	if a.FailedReason != nil {
		reason := *a.FailedReason
		out.FailedReason = &reason
	}
	return out
}
