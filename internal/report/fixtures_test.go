package report

import (
	"time"

	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func checkboxVersion() testplan.Version {
	return testplan.Version{
		ID:         "v1",
		TestPlanID: "checkbox",
		Title:      "Checkbox Example",
		UpdatedAt:  t0,
		Tests: []testplan.Test{
			{ID: "navigate", Index: 1, Title: "Navigate to checkbox", ATIDs: []string{"nvda", "jaws"}, Scenarios: []testplan.Scenario{
				{ID: "s1", ATID: "nvda", CommandIDs: []string{"tab"}, Assertions: []testplan.Assertion{
					{ID: "role", Priority: testplan.PriorityRequired},
					{ID: "state", Priority: testplan.PriorityOptional},
				}},
				{ID: "s1-jaws", ATID: "jaws", CommandIDs: []string{"tab"}, Assertions: []testplan.Assertion{
					{ID: "role", Priority: testplan.PriorityRequired},
				}},
			}},
			{ID: "operate", Index: 2, Title: "Operate checkbox", ATIDs: []string{"nvda"}, Scenarios: []testplan.Scenario{
				{ID: "s2", ATID: "nvda", CommandIDs: []string{"space"}, Assertions: []testplan.Assertion{
					{ID: "toggle", Priority: testplan.PriorityRequired},
				}},
			}},
			{ID: "jaws-only", Index: 3, Title: "Read checkbox group", ATIDs: []string{"jaws"}, Scenarios: []testplan.Scenario{
				{ID: "s3", ATID: "jaws", CommandIDs: []string{"ins-tab"}, Assertions: []testplan.Assertion{
					{ID: "group", Priority: testplan.PriorityRequired},
				}},
			}},
		},
	}
}

// verdicts holds the role verdict for test 1 and the toggle verdict for test 2.
type verdicts struct {
	role       bool
	toggle     bool
	behaviors  []result.BehaviorKind
	skipToggle bool
}

func completedRun(id string, seq int64, tester string, v verdicts) result.TestPlanRun {
	submitted := t0
	behaviors := make([]result.UnexpectedBehavior, 0, len(v.behaviors))
	for _, k := range v.behaviors {
		behaviors = append(behaviors, result.UnexpectedBehavior{Kind: k})
	}
	run := result.TestPlanRun{
		ID:               id,
		TestPlanReportID: "r1",
		TesterID:         "id-" + tester,
		TesterUsername:   tester,
		Seq:              seq,
		CreatedAt:        t0.Add(time.Duration(seq) * time.Minute),
		TestResults: []result.TestResult{
			{ID: id + "-1", TestPlanRunID: id, Index: 1, TestID: "navigate", SubmittedAt: &submitted, ScenarioResults: []result.ScenarioResult{
				{ScenarioID: "s1", AssertionResults: []result.AssertionResult{
					{AssertionID: "role", Passed: result.Bool(v.role)},
				}},
			}},
			{ID: id + "-2", TestPlanRunID: id, Index: 2, TestID: "operate", SubmittedAt: &submitted, ScenarioResults: []result.ScenarioResult{
				{ScenarioID: "s2", AssertionResults: []result.AssertionResult{
					{AssertionID: "toggle", Passed: result.Bool(v.toggle)},
				}, UnexpectedBehaviors: behaviors},
			}},
		},
	}
	if v.skipToggle {
		run.TestResults[1].SubmittedAt = nil
	}
	return run
}

func snapshot(status Status, runs ...result.TestPlanRun) Snapshot {
	return Snapshot{
		Report: Report{
			ID:                "r1",
			TestPlanVersionID: "v1",
			ATID:              "nvda",
			BrowserID:         "chrome",
			Status:            status,
			CreatedAt:         t0,
		},
		Version: checkboxVersion(),
		Runs:    runs,
	}
}

func admin() Caller {
	return Caller{UserID: "id-admin", Username: "admin", Roles: MustRoles(RoleAdmin)}
}

func tester() Caller {
	return Caller{UserID: "id-alice", Username: "alice", Roles: MustRoles(RoleTester)}
}

func vendor() Caller {
	return Caller{UserID: "id-vera", Username: "vera", Roles: MustRoles(RoleVendor)}
}
