// Package api exposes the queue's mutations and queries as JSON over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
)

// UserHeader names the request header carrying the caller's username.
const UserHeader = "X-Testqueue-User"

const maxBodyBytes = 1 << 20

// Backend is the subset of queue.Service the server calls.
type Backend interface {
	Caller(ctx context.Context, username string) (report.Caller, error)

	RecordResult(ctx context.Context, caller report.Caller, runID string, index int, upd result.Update) (result.TestResult, error)
	ClearResult(ctx context.Context, caller report.Caller, runID string, index int) (result.TestResult, error)
	PromoteReportStatus(ctx context.Context, caller report.Caller, reportID string, next report.Status) (report.View, error)
	DemoteReportStatus(ctx context.Context, caller report.Caller, reportID string, next report.Status) (report.View, error)
	PromoteVendorReviewStatus(ctx context.Context, caller report.Caller, reportID string, next report.VendorReviewStatus) (report.View, error)
	AddViewer(ctx context.Context, caller report.Caller, versionID, testID string) error

	TestPlanReports(ctx context.Context, filter queue.ReportFilter) ([]report.View, error)
	Report(ctx context.Context, reportID string) (report.View, error)
	Conflicts(ctx context.Context, reportID string) (report.Conflicts, error)
	FinalizedTestResults(ctx context.Context, reportID string) ([]result.TestResult, error)
	DraftTestPlanRuns(ctx context.Context, reportID string) ([]result.TestPlanRun, error)
	Issues(ctx context.Context, runID string, index int) ([]report.Issue, error)
	Summary(ctx context.Context, testPlanID string) (report.Summary, error)
}

var _ Backend = (*queue.Service)(nil)

type Server struct {
	backend Backend
	log     *slog.Logger
	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(backend Backend, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{backend: backend, log: log}
	s.handler = s.logRequests(s.routes())
	return s
}

// Handler returns the server's router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{reportID}", s.handleReport)
	mux.HandleFunc("GET /api/reports/{reportID}/conflicts", s.handleConflicts)
	mux.HandleFunc("GET /api/reports/{reportID}/finalized", s.handleFinalized)
	mux.HandleFunc("GET /api/reports/{reportID}/runs", s.handleDraftRuns)
	mux.HandleFunc("POST /api/reports/{reportID}/status", s.handlePromote)
	mux.HandleFunc("POST /api/reports/{reportID}/demote", s.handleDemote)
	mux.HandleFunc("POST /api/reports/{reportID}/vendor-review", s.handleVendorReview)
	mux.HandleFunc("PUT /api/runs/{runID}/results/{index}", s.handleRecordResult)
	mux.HandleFunc("DELETE /api/runs/{runID}/results/{index}", s.handleClearResult)
	mux.HandleFunc("GET /api/runs/{runID}/results/{index}/issues", s.handleIssues)
	mux.HandleFunc("POST /api/versions/{versionID}/tests/{testID}/viewers", s.handleAddViewer)
	mux.HandleFunc("GET /api/plans/{testPlanID}/summary", s.handleSummary)
	return mux
}

// Start binds addr and serves in the background until Shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("api server already started")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.listener = listener
	s.server = srv
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", "err", err)
		}
	}()
	s.log.Info("api listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"user", r.Header.Get(UserHeader),
			"dur", time.Since(start),
		)
	})
}
