package report

import (
	"sort"

	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Side identifies one of the two disagreeing results.
type Side struct {
	RunID          string `json:"testPlanRunId"`
	TesterID       string `json:"testerId"`
	TesterUsername string `json:"testerUsername"`
	ResultID       string `json:"testResultId"`
}

type AssertionDiff struct {
	AssertionID string `json:"assertionId"`
	A           *bool  `json:"a"`
	B           *bool  `json:"b"`
}

type ScenarioDiff struct {
	ScenarioID  string                `json:"scenarioId"`
	Assertions  []AssertionDiff       `json:"assertions,omitempty"`
	UnexpectedA []result.BehaviorKind `json:"unexpectedA,omitempty"`
	UnexpectedB []result.BehaviorKind `json:"unexpectedB,omitempty"`
}

// Conflict is a disagreement between two complete results for one test.
type Conflict struct {
	TestIndex int            `json:"testIndex"`
	TestID    string         `json:"testId"`
	A         Side           `json:"a"`
	B         Side           `json:"b"`
	Scenarios []ScenarioDiff `json:"scenarios"`
}

// Swap returns c with the two sides exchanged.
func (c Conflict) Swap() Conflict {
	out := Conflict{
		TestIndex: c.TestIndex,
		TestID:    c.TestID,
		A:         c.B,
		B:         c.A,
		Scenarios: make([]ScenarioDiff, len(c.Scenarios)),
	}
	for i, sd := range c.Scenarios {
		swapped := ScenarioDiff{
			ScenarioID:  sd.ScenarioID,
			UnexpectedA: sd.UnexpectedB,
			UnexpectedB: sd.UnexpectedA,
		}
		if sd.Assertions != nil {
			swapped.Assertions = make([]AssertionDiff, len(sd.Assertions))
			for j, ad := range sd.Assertions {
				swapped.Assertions[j] = AssertionDiff{AssertionID: ad.AssertionID, A: ad.B, B: ad.A}
			}
		}
		out.Scenarios[i] = swapped
	}
	return out
}

// Conflicts maps a test index to the conflicts found for it.
type Conflicts map[int][]Conflict

// Indexes returns the conflicting test indexes in ascending order.
func (c Conflicts) Indexes() []int {
	out := make([]int, 0, len(c))
	for idx := range c {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (c Conflicts) Has(index int) bool {
	return len(c[index]) > 0
}

// Count returns the total number of pairwise conflicts.
func (c Conflicts) Count() int {
	n := 0
	for _, list := range c {
		n += len(list)
	}
	return n
}

type candidate struct {
	side   Side
	result result.TestResult
}

// DetectConflicts compares every pair of complete results for each runnable
// test. Incomplete results never take part. Pairs are taken in run creation
// order so the earlier run is always side A.
func DetectConflicts(s Snapshot) Conflicts {
	tests := s.RunnableTests()
	runs := s.OrderedRuns()
	out := Conflicts{}

	for _, test := range tests {
		var complete []candidate
		for _, run := range runs {
			r, ok := run.Result(test.Index)
			if !ok || !result.IsComplete(test, *r) {
				continue
			}
			complete = append(complete, candidate{
				side: Side{
					RunID:          run.ID,
					TesterID:       run.TesterID,
					TesterUsername: run.TesterUsername,
					ResultID:       r.ID,
				},
				result: *r,
			})
		}
		for i := 0; i < len(complete); i++ {
			for j := i + 1; j < len(complete); j++ {
				diffs := diffResults(test, complete[i].result, complete[j].result)
				if len(diffs) == 0 {
					continue
				}
				out[test.Index] = append(out[test.Index], Conflict{
					TestIndex: test.Index,
					TestID:    test.ID,
					A:         complete[i].side,
					B:         complete[j].side,
					Scenarios: diffs,
				})
			}
		}
	}
	return out
}

func diffResults(test testplan.Test, a, b result.TestResult) []ScenarioDiff {
	var diffs []ScenarioDiff
	for _, scenario := range test.Scenarios {
		sa, _ := a.Scenario(scenario.ID)
		sb, _ := b.Scenario(scenario.ID)

		var sd ScenarioDiff
		for _, assertion := range scenario.Assertions {
			pa := passed(sa, assertion.ID)
			pb := passed(sb, assertion.ID)
			if !sameVerdict(pa, pb) {
				sd.Assertions = append(sd.Assertions, AssertionDiff{AssertionID: assertion.ID, A: pa, B: pb})
			}
		}
		ua, ub := sa.BehaviorSet(), sb.BehaviorSet()
		behaviorsDiffer := !sameKinds(ua, ub)
		if len(sd.Assertions) == 0 && !behaviorsDiffer {
			continue
		}
		sd.ScenarioID = scenario.ID
		if behaviorsDiffer {
			sd.UnexpectedA = ua
			sd.UnexpectedB = ub
		}
		diffs = append(diffs, sd)
	}
	return diffs
}

func passed(sr result.ScenarioResult, assertionID string) *bool {
	ar, ok := sr.Assertion(assertionID)
	if !ok || ar.Passed == nil {
		return nil
	}
	return result.Bool(*ar.Passed)
}

func sameVerdict(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameKinds(a, b []result.BehaviorKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
