// Package queue implements the test queue operations. Each operation runs in
// one repository transaction and recomputes every derived value from what it
// reads there.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

type Options struct {
	Logger                *slog.Logger
	Support               testplan.Support
	Now                   func() time.Time
	NewID                 func() string
	RecommendedTargetDays int
}

type Service struct {
	repo       Repository
	log        *slog.Logger
	support    testplan.Support
	now        func() time.Time
	newID      func() string
	targetDays int
}

func New(repo Repository, opts Options) *Service {
	s := &Service{
		repo:       repo,
		log:        opts.Logger,
		support:    opts.Support,
		now:        opts.Now,
		newID:      opts.NewID,
		targetDays: opts.RecommendedTargetDays,
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.targetDays <= 0 {
		s.targetDays = report.DefaultRecommendedTargetDays
	}
	return s
}

func (s *Service) Support() testplan.Support {
	return s.support
}

// Caller resolves a username into a Caller with a validated role set.
func (s *Service) Caller(ctx context.Context, username string) (report.Caller, error) {
	var caller report.Caller
	err := s.repo.InTx(ctx, func(tx Tx) error {
		u, err := tx.User(ctx, username)
		if err != nil {
			return err
		}
		roles, err := report.ParseRoles(u.Roles)
		if err != nil {
			return fmt.Errorf("user %q: %w", username, err)
		}
		caller = report.Caller{UserID: u.ID, Username: u.Username, Roles: roles}
		return nil
	})
	return caller, err
}

func (s *Service) AddUser(ctx context.Context, username string, roles []string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("username required")
	}
	set, err := report.ParseRoles(roles)
	if err != nil {
		return User{}, err
	}
	u := User{ID: s.newID(), Username: username, Roles: set.Strings()}
	err = s.repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return User{}, err
	}
	s.log.Info("user added", "username", u.Username, "roles", strings.Join(u.Roles, ","))
	return u, nil
}

// ImportVersion validates v against the support catalogue and stores it.
// A version may be replaced only while no report refers to it.
func (s *Service) ImportVersion(ctx context.Context, v testplan.Version) error {
	if errs := testplan.Validate(v, &s.support); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("%w: test plan version %q:\n  %s", apperr.ErrInvalidInput, v.ID, strings.Join(msgs, "\n  "))
	}
	if err := s.repo.InTx(ctx, func(tx Tx) error {
		used, err := tx.Reports(ctx, ReportFilter{TestPlanVersionID: v.ID})
		if err != nil {
			return err
		}
		if len(used) > 0 {
			return fmt.Errorf("%w: test plan version %q is used by %d report(s); import it under a new id", apperr.ErrInvalidInput, v.ID, len(used))
		}
		return tx.SaveVersion(ctx, v)
	}); err != nil {
		return err
	}
	s.log.Info("test plan version imported", "version", v.ID, "testPlan", v.TestPlanID, "tests", len(v.Tests))
	return nil
}

func (s *Service) CreateReport(ctx context.Context, caller report.Caller, versionID, atID, browserID string) (report.Report, error) {
	if !caller.Roles.Has(report.RoleAdmin) {
		return report.Report{}, apperr.AuthorizationError{Action: "create report", Need: []string{string(report.RoleAdmin)}}
	}
	if _, ok := s.support.AT(atID); !ok {
		return report.Report{}, apperr.NotFoundError{Kind: "at", ID: atID}
	}
	if _, ok := s.support.Browser(browserID); !ok {
		return report.Report{}, apperr.NotFoundError{Kind: "browser", ID: browserID}
	}
	r := report.Report{
		ID:                s.newID(),
		TestPlanVersionID: versionID,
		ATID:              atID,
		BrowserID:         browserID,
		Status:            report.StatusDraft,
		CreatedAt:         s.now(),
	}
	err := s.repo.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Version(ctx, versionID); err != nil {
			return err
		}
		return tx.InsertReport(ctx, r)
	})
	if err != nil {
		return report.Report{}, err
	}
	s.log.Info("report created", "report", r.ID, "version", versionID, "at", atID, "browser", browserID)
	return r, nil
}

// AssignTester creates a run for username with one empty result per
// runnable test.
func (s *Service) AssignTester(ctx context.Context, caller report.Caller, reportID, username string) (result.TestPlanRun, error) {
	if !caller.Roles.Has(report.RoleAdmin) {
		return result.TestPlanRun{}, apperr.AuthorizationError{Action: "assign tester", Need: []string{string(report.RoleAdmin)}}
	}
	var run result.TestPlanRun
	err := s.repo.InTx(ctx, func(tx Tx) error {
		snap, err := loadSnapshot(ctx, tx, reportID)
		if err != nil {
			return err
		}
		u, err := tx.User(ctx, username)
		if err != nil {
			return err
		}
		for _, existing := range snap.Runs {
			if existing.TesterID == u.ID {
				return fmt.Errorf("assign tester: %w: %s already has run %s on report %s", apperr.ErrInvalidInput, username, existing.ID, reportID)
			}
		}
		now := s.now()
		run = result.TestPlanRun{
			ID:               s.newID(),
			TestPlanReportID: reportID,
			TesterID:         u.ID,
			TesterUsername:   u.Username,
			CreatedAt:        now,
		}
		for _, test := range snap.RunnableTests() {
			run.TestResults = append(run.TestResults, result.TestResult{
				ID:            s.newID(),
				TestPlanRunID: run.ID,
				Index:         test.Index,
				TestID:        test.ID,
				UpdatedAt:     now,
			})
		}
		return tx.InsertRun(ctx, &run)
	})
	if err != nil {
		return result.TestPlanRun{}, err
	}
	s.log.Info("tester assigned", "report", reportID, "run", run.ID, "tester", username, "tests", len(run.TestResults))
	return run, nil
}

// RecordResult applies upd to one result of a run. Only the run's tester or
// an admin may change it.
func (s *Service) RecordResult(ctx context.Context, caller report.Caller, runID string, index int, upd result.Update) (result.TestResult, error) {
	var saved result.TestResult
	err := s.repo.InTx(ctx, func(tx Tx) error {
		run, tests, err := s.loadOwnedRun(ctx, tx, caller, runID, "record result")
		if err != nil {
			return err
		}
		r, err := result.Record(&run, tests, index, upd, s.now())
		if err != nil {
			return err
		}
		if r.ID == "" {
			r.ID = s.newID()
		}
		if err := tx.SaveTestResult(ctx, *r); err != nil {
			return err
		}
		saved = *r
		return nil
	})
	if err != nil {
		return result.TestResult{}, err
	}
	s.log.Debug("result recorded", "run", runID, "index", index, "complete", saved.IsComplete, "submitted", saved.Submitted())
	return saved, nil
}

// ClearResult resets one result of a run to not started.
func (s *Service) ClearResult(ctx context.Context, caller report.Caller, runID string, index int) (result.TestResult, error) {
	var saved result.TestResult
	err := s.repo.InTx(ctx, func(tx Tx) error {
		run, _, err := s.loadOwnedRun(ctx, tx, caller, runID, "clear result")
		if err != nil {
			return err
		}
		r, err := result.Clear(&run, index, s.now())
		if err != nil {
			return err
		}
		if err := tx.SaveTestResult(ctx, *r); err != nil {
			return err
		}
		saved = *r
		return nil
	})
	if err != nil {
		return result.TestResult{}, err
	}
	s.log.Debug("result cleared", "run", runID, "index", index)
	return saved, nil
}

// PromoteReportStatus moves a report forward after the role, conflict and
// completeness gates pass, and returns the report as stored afterwards.
func (s *Service) PromoteReportStatus(ctx context.Context, caller report.Caller, reportID string, next report.Status) (report.View, error) {
	var (
		view report.View
		from report.Status
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		snap, err := loadSnapshot(ctx, tx, reportID)
		if err != nil {
			return err
		}
		from = snap.Report.Status
		if err := report.CheckPromotion(caller, snap, next); err != nil {
			return err
		}
		if report.ApplyStatus(&snap.Report, next, s.now(), s.targetDays) {
			if err := tx.UpdateReport(ctx, snap.Report); err != nil {
				return err
			}
		}
		view, err = resolveReport(ctx, tx, reportID)
		return err
	})
	if err != nil {
		s.logRejected("promotion rejected", reportID, from, string(next), caller, err)
		return report.View{}, err
	}
	s.log.Info("report promoted", "report", reportID, "from", from, "to", next, "by", caller.Username)
	return view, nil
}

// DemoteReportStatus moves a report backward. It is an explicit admin action
// and skips the conflict and completeness gates.
func (s *Service) DemoteReportStatus(ctx context.Context, caller report.Caller, reportID string, next report.Status) (report.View, error) {
	var (
		view report.View
		from report.Status
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		r, err := tx.Report(ctx, reportID)
		if err != nil {
			return err
		}
		from = r.Status
		if err := report.CheckDemotion(caller, r, next); err != nil {
			return err
		}
		if report.ApplyDemotion(&r, next) {
			if err := tx.UpdateReport(ctx, r); err != nil {
				return err
			}
		}
		view, err = resolveReport(ctx, tx, reportID)
		return err
	})
	if err != nil {
		s.logRejected("demotion rejected", reportID, from, string(next), caller, err)
		return report.View{}, err
	}
	s.log.Info("report demoted", "report", reportID, "from", from, "to", next, "by", caller.Username)
	return view, nil
}

func (s *Service) PromoteVendorReviewStatus(ctx context.Context, caller report.Caller, reportID string, next report.VendorReviewStatus) (report.View, error) {
	var view report.View
	err := s.repo.InTx(ctx, func(tx Tx) error {
		r, err := tx.Report(ctx, reportID)
		if err != nil {
			return err
		}
		if err := report.CheckVendorReview(caller, r, next); err != nil {
			return err
		}
		if report.ApplyVendorReview(&r, next) {
			if err := tx.UpdateReport(ctx, r); err != nil {
				return err
			}
		}
		view, err = resolveReport(ctx, tx, reportID)
		return err
	})
	if err != nil {
		s.logRejected("vendor review rejected", reportID, "", string(next), caller, err)
		return report.View{}, err
	}
	s.log.Info("vendor review updated", "report", reportID, "to", next, "by", caller.Username)
	return view, nil
}

// AddViewer records that caller has looked at a test. Repeat views are
// ignored.
func (s *Service) AddViewer(ctx context.Context, caller report.Caller, versionID, testID string) error {
	return s.repo.InTx(ctx, func(tx Tx) error {
		v, err := tx.Version(ctx, versionID)
		if err != nil {
			return err
		}
		found := false
		for _, t := range v.Tests {
			if t.ID == testID {
				found = true
				break
			}
		}
		if !found {
			return apperr.NotFoundError{Kind: "test", ID: testID}
		}
		return tx.AddViewer(ctx, versionID, testID, caller.UserID)
	})
}

func (s *Service) Viewers(ctx context.Context, versionID, testID string) ([]string, error) {
	var out []string
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Viewers(ctx, versionID, testID)
		return err
	})
	return out, err
}

func (s *Service) logRejected(msg, reportID string, from report.Status, to string, caller report.Caller, err error) {
	attrs := []any{"report", reportID, "to", to, "by", caller.Username, "reason", err.Error()}
	if from != "" {
		attrs = append(attrs, "from", from)
	}
	var ie report.IncompleteError
	if errors.As(err, &ie) {
		attrs = append(attrs, "incompleteRuns", ie.Detail())
	}
	s.log.Warn(msg, attrs...)
}

// loadOwnedRun loads a run and the runnable tests for it after checking that
// caller may write to it.
func (s *Service) loadOwnedRun(ctx context.Context, tx Tx, caller report.Caller, runID, action string) (result.TestPlanRun, []testplan.Test, error) {
	run, err := tx.Run(ctx, runID)
	if err != nil {
		return result.TestPlanRun{}, nil, err
	}
	if run.TesterID != caller.UserID && !caller.Roles.Has(report.RoleAdmin) {
		return result.TestPlanRun{}, nil, apperr.AuthorizationError{Action: action, Need: []string{string(report.RoleAdmin)}}
	}
	r, err := tx.Report(ctx, run.TestPlanReportID)
	if err != nil {
		return result.TestPlanRun{}, nil, err
	}
	v, err := tx.Version(ctx, r.TestPlanVersionID)
	if err != nil {
		return result.TestPlanRun{}, nil, err
	}
	return run, v.RunnableTests(r.ATID), nil
}

func loadSnapshot(ctx context.Context, tx Tx, reportID string) (report.Snapshot, error) {
	r, err := tx.Report(ctx, reportID)
	if err != nil {
		return report.Snapshot{}, err
	}
	v, err := tx.Version(ctx, r.TestPlanVersionID)
	if err != nil {
		return report.Snapshot{}, err
	}
	runs, err := tx.Runs(ctx, reportID)
	if err != nil {
		return report.Snapshot{}, err
	}
	return report.Snapshot{Report: r, Version: v, Runs: runs}, nil
}

func resolveReport(ctx context.Context, tx Tx, reportID string) (report.View, error) {
	snap, err := loadSnapshot(ctx, tx, reportID)
	if err != nil {
		return report.View{}, err
	}
	return report.Resolve(snap), nil
}
