package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbonatakis/testqueue/internal/result"
)

func TestDetectConflictsSingleRunNeverConflicts(t *testing.T) {
	s := snapshot(StatusDraft, completedRun("run-a", 1, "alice", verdicts{role: true, toggle: false}))
	assert.Empty(t, DetectConflicts(s))
}

func TestDetectConflictsAgreeingRuns(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: true}),
	)
	assert.Empty(t, DetectConflicts(s))
}

func TestDetectConflictsAssertionDisagreement(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-b", 2, "bob", verdicts{role: false, toggle: true}),
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
	)
	got := DetectConflicts(s)
	require.Equal(t, []int{1}, got.Indexes())

	want := []Conflict{{
		TestIndex: 1,
		TestID:    "navigate",
		A:         Side{RunID: "run-a", TesterID: "id-alice", TesterUsername: "alice", ResultID: "run-a-1"},
		B:         Side{RunID: "run-b", TesterID: "id-bob", TesterUsername: "bob", ResultID: "run-b-1"},
		Scenarios: []ScenarioDiff{{
			ScenarioID: "s1",
			Assertions: []AssertionDiff{{AssertionID: "role", A: result.Bool(true), B: result.Bool(false)}},
		}},
	}}
	if diff := cmp.Diff(want, got[1], cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("conflicts mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectConflictsUnexpectedBehaviorSets(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true, behaviors: []result.BehaviorKind{result.BehaviorSluggish}}),
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: true}),
	)
	got := DetectConflicts(s)
	require.Equal(t, []int{2}, got.Indexes())
	sd := got[2][0].Scenarios[0]
	assert.Empty(t, sd.Assertions)
	assert.Equal(t, []result.BehaviorKind{result.BehaviorSluggish}, sd.UnexpectedA)
	assert.Empty(t, sd.UnexpectedB)
}

func TestDetectConflictsIgnoresIncompleteResults(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: false, skipToggle: true}),
	)
	assert.Empty(t, DetectConflicts(s))
}

func TestDetectConflictsPairsEveryCompleteRun(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: false}),
		completedRun("run-c", 3, "carol", verdicts{role: true, toggle: false}),
	)
	got := DetectConflicts(s)
	require.Len(t, got[2], 2)
	assert.Equal(t, 2, got.Count())
	assert.Equal(t, "run-a", got[2][0].A.RunID)
	assert.Equal(t, "run-b", got[2][0].B.RunID)
	assert.Equal(t, "run-a", got[2][1].A.RunID)
	assert.Equal(t, "run-c", got[2][1].B.RunID)
}

func TestDetectConflictsIsSymmetric(t *testing.T) {
	a := completedRun("run-a", 1, "alice", verdicts{role: true, toggle: false, behaviors: []result.BehaviorKind{result.BehaviorATCrashed}})
	b := completedRun("run-b", 2, "bob", verdicts{role: false, toggle: true})
	forward := DetectConflicts(snapshot(StatusDraft, a, b))

	a.Seq, b.Seq = 2, 1
	reverse := DetectConflicts(snapshot(StatusDraft, a, b))

	require.Equal(t, forward.Indexes(), reverse.Indexes())
	for _, idx := range forward.Indexes() {
		if diff := cmp.Diff(forward[idx][0], reverse[idx][0].Swap(), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("index %d not symmetric (-forward +reverse):\n%s", idx, diff)
		}
	}
}

func TestDetectConflictsOnlyRunnableTests(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: true}),
	)
	// A disagreement recorded against a scenario for another AT is ignored.
	s.Runs[1].TestResults[0].ScenarioResults = append(s.Runs[1].TestResults[0].ScenarioResults, result.ScenarioResult{
		ScenarioID:       "s1-jaws",
		AssertionResults: []result.AssertionResult{{AssertionID: "role", Passed: result.Bool(false)}},
	})
	assert.Empty(t, DetectConflicts(s))
}
