// Package report owns the Test Plan Report: its status lifecycle, the
// conflict detector, and the resolved view served to callers.
package report

import (
	"sort"
	"time"

	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Report is the aggregate of all testers' runs for one (version, AT, browser).
type Report struct {
	ID                          string              `json:"id"`
	TestPlanVersionID           string              `json:"testPlanVersionId"`
	ATID                        string              `json:"atId"`
	BrowserID                   string              `json:"browserId"`
	Status                      Status              `json:"status"`
	VendorReviewStatus          *VendorReviewStatus `json:"vendorReviewStatus,omitempty"`
	CreatedAt                   time.Time           `json:"createdAt"`
	CandidateStatusReachedAt    *time.Time          `json:"candidateStatusReachedAt,omitempty"`
	RecommendedStatusTargetDate *time.Time          `json:"recommendedStatusTargetDate,omitempty"`
	RecommendedStatusReachedAt  *time.Time          `json:"recommendedStatusReachedAt,omitempty"`
}

// Snapshot is everything read from storage for one report within a single
// transaction. Every derived value is computed from it.
type Snapshot struct {
	Report  Report
	Version testplan.Version
	Runs    []result.TestPlanRun
}

// RunnableTests returns the version's tests for the report's AT.
func (s Snapshot) RunnableTests() []testplan.Test {
	return s.Version.RunnableTests(s.Report.ATID)
}

// OrderedRuns returns copies of the runs in creation order.
func (s Snapshot) OrderedRuns() []result.TestPlanRun {
	runs := make([]result.TestPlanRun, len(s.Runs))
	for i, run := range s.Runs {
		run.TestResults = append([]result.TestResult(nil), run.TestResults...)
		sort.SliceStable(run.TestResults, func(a, b int) bool {
			return run.TestResults[a].Index < run.TestResults[b].Index
		})
		runs[i] = run
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Seq != runs[j].Seq {
			return runs[i].Seq < runs[j].Seq
		}
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.Before(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs
}

// Run returns the run with the given ID.
func (s Snapshot) Run(runID string) (result.TestPlanRun, bool) {
	for _, run := range s.Runs {
		if run.ID == runID {
			return run, true
		}
	}
	return result.TestPlanRun{}, false
}

type RunView struct {
	result.TestPlanRun
	IsComplete      bool `json:"isComplete"`
	HasTestsToRun   bool `json:"hasTestsToRun"`
	TestResultCount int  `json:"testResultCount"`
}

// View is the fully resolved report returned by queries and mutations.
type View struct {
	Report
	TestPlanVersionTitle string              `json:"testPlanVersionTitle"`
	RunnableTests        []testplan.Test     `json:"runnableTests"`
	Runs                 []RunView           `json:"testPlanRuns"`
	Conflicts            Conflicts           `json:"conflicts"`
	IsComplete           bool                `json:"isComplete"`
	FinalizedTestResults []result.TestResult `json:"finalizedTestResults"`
}

// Resolve computes the derived view of s. Nothing is cached; each call walks
// the snapshot again.
func Resolve(s Snapshot) View {
	tests := s.RunnableTests()
	runs := s.OrderedRuns()

	view := View{
		Report:               s.Report,
		TestPlanVersionTitle: s.Version.DisplayTitle(),
		RunnableTests:        tests,
		Runs:                 make([]RunView, 0, len(runs)),
		Conflicts:            DetectConflicts(s),
		IsComplete:           true,
		FinalizedTestResults: FinalizedTestResults(s),
	}
	for _, run := range runs {
		result.Refresh(&run, tests)
		rv := RunView{
			TestPlanRun:     run,
			IsComplete:      result.IsRunComplete(run, tests),
			HasTestsToRun:   result.HasTestsToRun(run),
			TestResultCount: result.CompletedCount(run, tests),
		}
		if !rv.IsComplete {
			view.IsComplete = false
		}
		view.Runs = append(view.Runs, rv)
	}
	return view
}

// IncompleteRuns returns the IDs of runs that are not complete, in run order.
func IncompleteRuns(s Snapshot) []string {
	tests := s.RunnableTests()
	var ids []string
	for _, run := range s.OrderedRuns() {
		if !result.IsRunComplete(run, tests) {
			ids = append(ids, run.ID)
		}
	}
	return ids
}

// FinalizedTestResults returns, for a report past DRAFT, the first complete
// result for each runnable test in run order.
func FinalizedTestResults(s Snapshot) []result.TestResult {
	if s.Report.Status == StatusDraft {
		return nil
	}
	tests := s.RunnableTests()
	runs := s.OrderedRuns()
	out := make([]result.TestResult, 0, len(tests))
	for _, test := range tests {
		for _, run := range runs {
			r, ok := run.Result(test.Index)
			if !ok || !result.IsComplete(test, *r) {
				continue
			}
			final := *r
			final.IsComplete = true
			final.IsSkipped = false
			out = append(out, final)
			break
		}
	}
	return out
}

// DraftTestPlanRuns returns the report's runs in creation order with derived
// flags refreshed.
func DraftTestPlanRuns(s Snapshot) []result.TestPlanRun {
	tests := s.RunnableTests()
	runs := s.OrderedRuns()
	for i := range runs {
		result.Refresh(&runs[i], tests)
	}
	return runs
}
