package queue

import (
	"context"

	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Repository runs fn inside a single storage transaction. If fn returns an
// error nothing it wrote is kept.
type Repository interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the storage view available inside a transaction. Lookups of missing
// rows return an error matching apperr.ErrNotFound.
type Tx interface {
	User(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	InsertUser(ctx context.Context, u User) error

	Version(ctx context.Context, id string) (testplan.Version, error)
	SaveVersion(ctx context.Context, v testplan.Version) error

	Report(ctx context.Context, id string) (report.Report, error)
	Reports(ctx context.Context, filter ReportFilter) ([]report.Report, error)
	InsertReport(ctx context.Context, r report.Report) error
	UpdateReport(ctx context.Context, r report.Report) error

	Run(ctx context.Context, id string) (result.TestPlanRun, error)
	Runs(ctx context.Context, reportID string) ([]result.TestPlanRun, error)
	// InsertRun stores the run and its results and assigns run.Seq.
	InsertRun(ctx context.Context, run *result.TestPlanRun) error
	SaveTestResult(ctx context.Context, r result.TestResult) error

	Issues(ctx context.Context, runID string) ([]report.Issue, error)

	AddViewer(ctx context.Context, versionID, testID, userID string) error
	Viewers(ctx context.Context, versionID, testID string) ([]string, error)
}

// User is a stored account. Roles are kept as stored; Service.Caller turns
// them into a validated report.RoleSet.
type User struct {
	ID       string
	Username string
	Roles    []string
}

type ReportFilter struct {
	Statuses          []report.Status
	TestPlanVersionID string
	ATID              string
	TestPlanID        string
}
