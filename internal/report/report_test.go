package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbonatakis/testqueue/internal/testplan"
)

func TestResolveComputesRunFlags(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: true, skipToggle: true}),
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
	)
	v := Resolve(s)

	assert.Equal(t, "Checkbox Example", v.TestPlanVersionTitle)
	require.Len(t, v.RunnableTests, 2)
	require.Len(t, v.Runs, 2)
	assert.Equal(t, "run-a", v.Runs[0].ID)
	assert.True(t, v.Runs[0].IsComplete)
	assert.Equal(t, 2, v.Runs[0].TestResultCount)
	assert.False(t, v.Runs[1].IsComplete)
	assert.Equal(t, 1, v.Runs[1].TestResultCount)
	assert.True(t, v.Runs[1].TestResults[1].IsSkipped)
	assert.False(t, v.IsComplete)
	assert.Empty(t, v.Conflicts)
	assert.Nil(t, v.FinalizedTestResults, "draft reports have no finalized results")

	assert.False(t, s.Runs[0].TestResults[1].IsSkipped, "resolve must not mutate the snapshot")
}

func TestFinalizedTestResultsTakesFirstCompleteInRunOrder(t *testing.T) {
	s := snapshot(StatusCandidate,
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: true}),
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true, skipToggle: true}),
	)
	got := FinalizedTestResults(s)
	require.Len(t, got, 2)
	assert.Equal(t, "run-a-1", got[0].ID)
	assert.Equal(t, "run-b-2", got[1].ID)
	assert.True(t, got[1].IsComplete)
}

func TestDraftTestPlanRuns(t *testing.T) {
	s := snapshot(StatusDraft,
		completedRun("run-b", 2, "bob", verdicts{role: true, toggle: true}),
		completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true}),
	)
	runs := DraftTestPlanRuns(s)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.True(t, runs[0].TestResults[0].IsComplete)
}

func TestNavigator(t *testing.T) {
	a := completedRun("run-a", 1, "alice", verdicts{role: true, toggle: true})
	b := completedRun("run-b", 2, "bob", verdicts{role: false, toggle: true, skipToggle: true})
	s := snapshot(StatusDraft, a, b)

	items, ok := Navigator(s, "run-b")
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Position)
	assert.Equal(t, NavHasConflicts, items[0].Status)
	assert.Equal(t, NavInProgress, items[1].Status)

	b.TestResults[1].ScenarioResults = nil
	items, _ = Navigator(snapshot(StatusDraft, a, b), "run-b")
	assert.Equal(t, NavNotStarted, items[1].Status)

	items, _ = Navigator(snapshot(StatusDraft, a), "run-a")
	assert.Equal(t, NavComplete, items[0].Status)

	_, ok = Navigator(s, "missing")
	assert.False(t, ok)
}

func TestNavigatorStatusPrefersInProgressOverConflicts(t *testing.T) {
	b := completedRun("run-b", 2, "bob", verdicts{role: false, toggle: true})
	conflicts := Conflicts{1: []Conflict{{}}}
	test := checkboxVersion().RunnableTests("nvda")[0]

	assert.Equal(t, NavHasConflicts, NavigatorStatus(test, &b, conflicts))

	b.TestResults[0].SubmittedAt = nil
	assert.Equal(t, NavInProgress, NavigatorStatus(test, &b, conflicts))
}

func TestOpenIssues(t *testing.T) {
	issues := []Issue{
		{ID: "1", TestPlanRunID: "run-a", TestIndex: 1, Title: "Wrong role"},
		{ID: "2", TestPlanRunID: "run-a", TestIndex: 1, Closed: true},
		{ID: "3", TestPlanRunID: "run-a", TestIndex: 2},
		{ID: "4", TestPlanRunID: "run-b", TestIndex: 1},
	}
	got := OpenIssues(issues, "run-a", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestLatestByTarget(t *testing.T) {
	v1 := checkboxVersion()
	v2 := checkboxVersion()
	v2.ID = "v2"
	v2.UpdatedAt = t0.Add(72 * time.Hour)
	other := testplan.Version{ID: "x1", TestPlanID: "radio", UpdatedAt: t0}

	entries := []Entry{
		{Report: Report{ID: "r1", ATID: "nvda", BrowserID: "chrome", Status: StatusRecommended}, Version: v1},
		{Report: Report{ID: "r2", ATID: "nvda", BrowserID: "chrome", Status: StatusCandidate}, Version: v2},
		{Report: Report{ID: "r3", ATID: "jaws", BrowserID: "chrome", Status: StatusRecommended}, Version: v1},
		{Report: Report{ID: "r4", ATID: "jaws", BrowserID: "firefox", Status: StatusDraft}, Version: v2},
		{Report: Report{ID: "r5", ATID: "nvda", BrowserID: "firefox", Status: StatusCandidate}, Version: other},
	}
	sum := LatestByTarget("checkbox", entries)
	assert.Equal(t, StatusCandidate, sum.Status)
	assert.Equal(t, []Target{{ATID: "jaws", BrowserID: "chrome"}, {ATID: "nvda", BrowserID: "chrome"}}, sum.Targets())
	assert.Equal(t, "r2", sum.Latest[Target{ATID: "nvda", BrowserID: "chrome"}].Report.ID)

	sum = LatestByTarget("checkbox", entries[:1])
	assert.Equal(t, StatusRecommended, sum.Status)

	sum = LatestByTarget("menu", entries)
	assert.Empty(t, sum.Status)
	assert.Empty(t, sum.Targets())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Candidate", StatusCandidate.Label())
	assert.Equal(t, "In Progress", VendorReviewInProgress.Label())
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" recommended ")
	require.True(t, ok)
	assert.Equal(t, StatusRecommended, st)
	_, ok = ParseStatus("final")
	assert.False(t, ok)
}

func TestParseRoles(t *testing.T) {
	set, err := ParseRoles([]string{"admin", " TESTER ", "admin", ""})
	require.NoError(t, err)
	assert.True(t, set.Has(RoleAdmin))
	assert.True(t, set.Has(RoleTester))
	assert.False(t, set.Has(RoleVendor))
	assert.Equal(t, "ADMIN,TESTER", set.String())

	_, err = ParseRoles([]string{"superuser"})
	assert.Error(t, err)

	var zero RoleSet
	assert.False(t, zero.Any(RoleAdmin, RoleVendor))
}
