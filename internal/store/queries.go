package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

const (
	selectReportSQL = `SELECT id, test_plan_version_id, at_id, browser_id, status, vendor_review_status,
	created_at, candidate_status_reached_at, recommended_status_target_date, recommended_status_reached_at
	FROM test_plan_reports`
	updateReportSQL = `UPDATE test_plan_reports SET status = ?, vendor_review_status = ?,
	candidate_status_reached_at = ?, recommended_status_target_date = ?, recommended_status_reached_at = ?
	WHERE id = ?`
	selectRunSQL = `SELECT r.id, r.test_plan_report_id, r.tester_id, u.username, r.seq, r.created_at
	FROM test_plan_runs r JOIN users u ON u.id = r.tester_id`
	selectResultsSQL = `SELECT id, test_plan_run_id, test_index, test_id, state_json, scenario_results_json,
	issues_json, submitted_at, updated_at FROM test_results WHERE test_plan_run_id = ? ORDER BY test_index`
	upsertResultSQL = `INSERT INTO test_results
	(id, test_plan_run_id, test_index, test_id, state_json, scenario_results_json, issues_json, submitted_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json,
	scenario_results_json = excluded.scenario_results_json, issues_json = excluded.issues_json,
	submitted_at = excluded.submitted_at, updated_at = excluded.updated_at`
)

func (t *tx) User(ctx context.Context, username string) (queue.User, error) {
	return t.scanUser(t.tx.QueryRowContext(ctx, "SELECT id, username, roles FROM users WHERE username = ?", username), username)
}

func (t *tx) UserByID(ctx context.Context, id string) (queue.User, error) {
	return t.scanUser(t.tx.QueryRowContext(ctx, "SELECT id, username, roles FROM users WHERE id = ?", id), id)
}

func (t *tx) scanUser(row *sql.Row, key string) (queue.User, error) {
	var (
		u     queue.User
		roles string
	)
	if err := row.Scan(&u.ID, &u.Username, &roles); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queue.User{}, apperr.NotFoundError{Kind: "user", ID: key}
		}
		return queue.User{}, fmt.Errorf("load user: %w", err)
	}
	if roles != "" {
		u.Roles = strings.Split(roles, ",")
	}
	return u, nil
}

func (t *tx) InsertUser(ctx context.Context, u queue.User) error {
	if _, err := t.tx.ExecContext(ctx, "INSERT INTO users (id, username, roles) VALUES (?, ?, ?)",
		u.ID, u.Username, strings.Join(u.Roles, ",")); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (t *tx) Version(ctx context.Context, id string) (testplan.Version, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT id, test_plan_id, title, directory, git_sha, updated_at, tests_json
	FROM test_plan_versions WHERE id = ?`, id)
	var (
		v         testplan.Version
		updatedAt int64
		testsJSON string
	)
	if err := row.Scan(&v.ID, &v.TestPlanID, &v.Title, &v.Directory, &v.GitSHA, &updatedAt, &testsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return testplan.Version{}, apperr.NotFoundError{Kind: "test plan version", ID: id}
		}
		return testplan.Version{}, fmt.Errorf("load version: %w", err)
	}
	v.UpdatedAt = fromMillis(updatedAt)
	if err := json.Unmarshal([]byte(testsJSON), &v.Tests); err != nil {
		return testplan.Version{}, fmt.Errorf("decode tests for version %s: %w", id, err)
	}
	return v, nil
}

func (t *tx) SaveVersion(ctx context.Context, v testplan.Version) error {
	testsJSON, err := json.Marshal(v.Tests)
	if err != nil {
		return fmt.Errorf("encode tests: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO test_plan_versions
	(id, test_plan_id, title, directory, git_sha, updated_at, tests_json) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET test_plan_id = excluded.test_plan_id, title = excluded.title,
	directory = excluded.directory, git_sha = excluded.git_sha, updated_at = excluded.updated_at,
	tests_json = excluded.tests_json`,
		v.ID, v.TestPlanID, v.Title, v.Directory, v.GitSHA, toMillis(v.UpdatedAt), string(testsJSON)); err != nil {
		return fmt.Errorf("save version: %w", err)
	}
	return nil
}

func (t *tx) Report(ctx context.Context, id string) (report.Report, error) {
	row := t.tx.QueryRowContext(ctx, selectReportSQL+" WHERE id = ?", id)
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report.Report{}, apperr.NotFoundError{Kind: "test plan report", ID: id}
		}
		return report.Report{}, fmt.Errorf("load report: %w", err)
	}
	return r, nil
}

func (t *tx) Reports(ctx context.Context, filter queue.ReportFilter) ([]report.Report, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.TestPlanVersionID != "" {
		where = append(where, "test_plan_version_id = ?")
		args = append(args, filter.TestPlanVersionID)
	}
	if filter.ATID != "" {
		where = append(where, "at_id = ?")
		args = append(args, filter.ATID)
	}
	if filter.TestPlanID != "" {
		where = append(where, "test_plan_version_id IN (SELECT id FROM test_plan_versions WHERE test_plan_id = ?)")
		args = append(args, filter.TestPlanID)
	}
	query := selectReportSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	var out []report.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (t *tx) InsertReport(ctx context.Context, r report.Report) error {
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO test_plan_reports
	(id, test_plan_version_id, at_id, browser_id, status, vendor_review_status, created_at,
	candidate_status_reached_at, recommended_status_target_date, recommended_status_reached_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TestPlanVersionID, r.ATID, r.BrowserID, string(r.Status), vendorReview(r.VendorReviewStatus),
		toMillis(r.CreatedAt), nullMillis(r.CandidateStatusReachedAt), nullMillis(r.RecommendedStatusTargetDate),
		nullMillis(r.RecommendedStatusReachedAt)); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (t *tx) UpdateReport(ctx context.Context, r report.Report) error {
	res, err := t.tx.ExecContext(ctx, updateReportSQL,
		string(r.Status), vendorReview(r.VendorReviewStatus), nullMillis(r.CandidateStatusReachedAt),
		nullMillis(r.RecommendedStatusTargetDate), nullMillis(r.RecommendedStatusReachedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n == 0 {
		return apperr.NotFoundError{Kind: "test plan report", ID: r.ID}
	}
	return nil
}

func (t *tx) Run(ctx context.Context, id string) (result.TestPlanRun, error) {
	row := t.tx.QueryRowContext(ctx, selectRunSQL+" WHERE r.id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result.TestPlanRun{}, apperr.NotFoundError{Kind: "test plan run", ID: id}
		}
		return result.TestPlanRun{}, fmt.Errorf("load run: %w", err)
	}
	run.TestResults, err = t.results(ctx, run.ID)
	if err != nil {
		return result.TestPlanRun{}, err
	}
	return run, nil
}

func (t *tx) Runs(ctx context.Context, reportID string) ([]result.TestPlanRun, error) {
	rows, err := t.tx.QueryContext(ctx, selectRunSQL+" WHERE r.test_plan_report_id = ? ORDER BY r.seq", reportID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []result.TestPlanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list runs: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		runs[i].TestResults, err = t.results(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (t *tx) InsertRun(ctx context.Context, run *result.TestPlanRun) error {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO test_plan_runs (id, test_plan_report_id, tester_id, created_at)
	VALUES (?, ?, ?, ?)`, run.ID, run.TestPlanReportID, run.TesterID, toMillis(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	run.Seq = seq
	for _, r := range run.TestResults {
		if err := t.SaveTestResult(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) SaveTestResult(ctx context.Context, r result.TestResult) error {
	scenarios := r.ScenarioResults
	if scenarios == nil {
		scenarios = []result.ScenarioResult{}
	}
	scenarioJSON, err := json.Marshal(scenarios)
	if err != nil {
		return fmt.Errorf("encode scenario results: %w", err)
	}
	issues := r.Issues
	if issues == nil {
		issues = []string{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}
	var state any
	if len(r.State) > 0 {
		state = string(r.State)
	}
	if _, err := t.tx.ExecContext(ctx, upsertResultSQL,
		r.ID, r.TestPlanRunID, r.Index, r.TestID, state, string(scenarioJSON), string(issuesJSON),
		nullMillis(r.SubmittedAt), toMillis(r.UpdatedAt)); err != nil {
		return fmt.Errorf("save test result: %w", err)
	}
	return nil
}

func (t *tx) results(ctx context.Context, runID string) ([]result.TestResult, error) {
	rows, err := t.tx.QueryContext(ctx, selectResultsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	var out []result.TestResult
	for rows.Next() {
		var (
			r            result.TestResult
			state        sql.NullString
			scenarioJSON string
			issuesJSON   string
			submittedAt  sql.NullInt64
			updatedAt    int64
		)
		if err := rows.Scan(&r.ID, &r.TestPlanRunID, &r.Index, &r.TestID, &state, &scenarioJSON, &issuesJSON, &submittedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if state.Valid {
			r.State = json.RawMessage(state.String)
		}
		if err := json.Unmarshal([]byte(scenarioJSON), &r.ScenarioResults); err != nil {
			return nil, fmt.Errorf("decode scenario results for %s: %w", r.ID, err)
		}
		if len(r.ScenarioResults) == 0 {
			r.ScenarioResults = nil
		}
		if err := json.Unmarshal([]byte(issuesJSON), &r.Issues); err != nil {
			return nil, fmt.Errorf("decode issues for %s: %w", r.ID, err)
		}
		if len(r.Issues) == 0 {
			r.Issues = nil
		}
		r.SubmittedAt = fromNullMillis(submittedAt)
		r.UpdatedAt = fromMillis(updatedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

func (t *tx) Issues(ctx context.Context, runID string) ([]report.Issue, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, test_plan_run_id, test_index, title, link, author, feedback_type, closed
	FROM issues WHERE test_plan_run_id = ? ORDER BY test_index, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()
	var out []report.Issue
	for rows.Next() {
		var is report.Issue
		if err := rows.Scan(&is.ID, &is.TestPlanRunID, &is.TestIndex, &is.Title, &is.Link, &is.Author, &is.FeedbackType, &is.Closed); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return out, nil
}

func (t *tx) AddViewer(ctx context.Context, versionID, testID, userID string) error {
	if _, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO viewers (test_plan_version_id, test_id, user_id)
	VALUES (?, ?, ?)`, versionID, testID, userID); err != nil {
		return fmt.Errorf("add viewer: %w", err)
	}
	return nil
}

func (t *tx) Viewers(ctx context.Context, versionID, testID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT u.username FROM viewers v JOIN users u ON u.id = v.user_id
	WHERE v.test_plan_version_id = ? AND v.test_id = ? ORDER BY u.username`, versionID, testID)
	if err != nil {
		return nil, fmt.Errorf("list viewers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan viewer: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list viewers: %w", err)
	}
	return out, nil
}

// ImportIssues replaces the mirrored issue rows with issues. Issues belong to
// an external tracker; this is the only way they enter the store.
func (s *Store) ImportIssues(ctx context.Context, issues []report.Issue) error {
	return s.InTx(ctx, func(qtx queue.Tx) error {
		t := qtx.(*tx)
		for _, is := range issues {
			if _, err := t.tx.ExecContext(ctx, `INSERT OR REPLACE INTO issues
			(id, test_plan_run_id, test_index, title, link, author, feedback_type, closed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				is.ID, is.TestPlanRunID, is.TestIndex, is.Title, is.Link, is.Author, is.FeedbackType, is.Closed); err != nil {
				return fmt.Errorf("import issue %s: %w", is.ID, err)
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (report.Report, error) {
	var (
		r                                  report.Report
		status                             string
		vendor                             sql.NullString
		createdAt                          int64
		candidateAt, targetAt, recommended sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.TestPlanVersionID, &r.ATID, &r.BrowserID, &status, &vendor,
		&createdAt, &candidateAt, &targetAt, &recommended); err != nil {
		return report.Report{}, err
	}
	r.Status = report.Status(status)
	if vendor.Valid {
		v := report.VendorReviewStatus(vendor.String)
		r.VendorReviewStatus = &v
	}
	r.CreatedAt = fromMillis(createdAt)
	r.CandidateStatusReachedAt = fromNullMillis(candidateAt)
	r.RecommendedStatusTargetDate = fromNullMillis(targetAt)
	r.RecommendedStatusReachedAt = fromNullMillis(recommended)
	return r, nil
}

func scanRun(row scanner) (result.TestPlanRun, error) {
	var (
		run       result.TestPlanRun
		createdAt int64
	)
	if err := row.Scan(&run.ID, &run.TestPlanReportID, &run.TesterID, &run.TesterUsername, &run.Seq, &createdAt); err != nil {
		return result.TestPlanRun{}, err
	}
	run.CreatedAt = fromMillis(createdAt)
	return run, nil
}

func vendorReview(v *report.VendorReviewStatus) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
