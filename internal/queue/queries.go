package queue

import (
	"context"
	"strconv"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// TestPlanReports returns the resolved reports matching filter.
func (s *Service) TestPlanReports(ctx context.Context, filter ReportFilter) ([]report.View, error) {
	var out []report.View
	err := s.repo.InTx(ctx, func(tx Tx) error {
		reports, err := tx.Reports(ctx, filter)
		if err != nil {
			return err
		}
		out = make([]report.View, 0, len(reports))
		for _, r := range reports {
			view, err := resolveReport(ctx, tx, r.ID)
			if err != nil {
				return err
			}
			out = append(out, view)
		}
		return nil
	})
	return out, err
}

func (s *Service) Report(ctx context.Context, reportID string) (report.View, error) {
	var view report.View
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		view, err = resolveReport(ctx, tx, reportID)
		return err
	})
	return view, err
}

func (s *Service) Conflicts(ctx context.Context, reportID string) (report.Conflicts, error) {
	snap, err := s.snapshot(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return report.DetectConflicts(snap), nil
}

func (s *Service) FinalizedTestResults(ctx context.Context, reportID string) ([]result.TestResult, error) {
	snap, err := s.snapshot(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return report.FinalizedTestResults(snap), nil
}

func (s *Service) DraftTestPlanRuns(ctx context.Context, reportID string) ([]result.TestPlanRun, error) {
	snap, err := s.snapshot(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return report.DraftTestPlanRuns(snap), nil
}

// RunContext is what a tester needs to work through a run.
type RunContext struct {
	Report       report.Report
	VersionTitle string
	Tests        []testplan.Test
	Resolved     []testplan.ResolvedTest
	Run          result.TestPlanRun
	Navigator    []report.NavItem
	Issues       []report.Issue
}

// OpenIssues returns the open issues for one test of the run.
func (c RunContext) OpenIssues(index int) []report.Issue {
	return report.OpenIssues(c.Issues, c.Run.ID, index)
}

// RunSession loads a run for caller. Admins may open any tester's run.
func (s *Service) RunSession(ctx context.Context, caller report.Caller, runID string) (RunContext, error) {
	var rc RunContext
	err := s.repo.InTx(ctx, func(tx Tx) error {
		run, err := tx.Run(ctx, runID)
		if err != nil {
			return err
		}
		if run.TesterID != caller.UserID && !caller.Roles.Has(report.RoleAdmin) {
			return apperr.AuthorizationError{Action: "open run", Need: []string{string(report.RoleAdmin)}}
		}
		snap, err := loadSnapshot(ctx, tx, run.TestPlanReportID)
		if err != nil {
			return err
		}
		issues, err := tx.Issues(ctx, runID)
		if err != nil {
			return err
		}
		runnable := snap.Version
		runnable.Tests = snap.RunnableTests()
		resolved, err := testplan.ResolveTests(testplan.FromReport(runnable, snap.Report.ATID), s.support)
		if err != nil {
			return err
		}
		nav, _ := report.Navigator(snap, runID)
		runs := report.DraftTestPlanRuns(snap)
		for _, r := range runs {
			if r.ID == runID {
				run = r
			}
		}
		rc = RunContext{
			Report:       snap.Report,
			VersionTitle: snap.Version.DisplayTitle(),
			Tests:        runnable.Tests,
			Resolved:     resolved,
			Run:          run,
			Navigator:    nav,
			Issues:       issues,
		}
		return nil
	})
	return rc, err
}

// Issues returns the open issues filed against one test of a run.
func (s *Service) Issues(ctx context.Context, runID string, index int) ([]report.Issue, error) {
	var out []report.Issue
	err := s.repo.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Run(ctx, runID); err != nil {
			return err
		}
		issues, err := tx.Issues(ctx, runID)
		if err != nil {
			return err
		}
		out = report.OpenIssues(issues, runID, index)
		return nil
	})
	return out, err
}

// Summary reports the latest published report per AT and browser for a test
// plan.
func (s *Service) Summary(ctx context.Context, testPlanID string) (report.Summary, error) {
	var sum report.Summary
	err := s.repo.InTx(ctx, func(tx Tx) error {
		reports, err := tx.Reports(ctx, ReportFilter{
			TestPlanID: testPlanID,
			Statuses:   []report.Status{report.StatusCandidate, report.StatusRecommended},
		})
		if err != nil {
			return err
		}
		versions := map[string]testplan.Version{}
		entries := make([]report.Entry, 0, len(reports))
		for _, r := range reports {
			v, ok := versions[r.TestPlanVersionID]
			if !ok {
				v, err = tx.Version(ctx, r.TestPlanVersionID)
				if err != nil {
					return err
				}
				versions[r.TestPlanVersionID] = v
			}
			entries = append(entries, report.Entry{Report: r, Version: v})
		}
		sum = report.LatestByTarget(testPlanID, entries)
		return nil
	})
	return sum, err
}

func (s *Service) snapshot(ctx context.Context, reportID string) (report.Snapshot, error) {
	var snap report.Snapshot
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, reportID)
		return err
	})
	return snap, err
}

// RunSaver binds a caller and run so a session controller can save results
// without knowing about either.
type RunSaver struct {
	svc    *Service
	caller report.Caller
	runID  string
}

func (s *Service) RunSaver(caller report.Caller, runID string) *RunSaver {
	return &RunSaver{svc: s, caller: caller, runID: runID}
}

func (rs *RunSaver) SaveResult(ctx context.Context, index int, upd result.Update) (result.TestResult, error) {
	return rs.svc.RecordResult(ctx, rs.caller, rs.runID, index, upd)
}

func (rs *RunSaver) ClearResult(ctx context.Context, index int) (result.TestResult, error) {
	return rs.svc.ClearResult(ctx, rs.caller, rs.runID, index)
}

// ParseIndex parses a 1-based test index from user input.
func ParseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, apperr.NotFoundError{Kind: "test", ID: s}
	}
	return n, nil
}
