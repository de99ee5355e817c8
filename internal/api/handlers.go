package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
)

type statusRequest struct {
	Status string `json:"status"`
}

type conflictsResponse struct {
	ReportID  string            `json:"testPlanReportId"`
	Count     int               `json:"count"`
	Conflicts []report.Conflict `json:"conflicts"`
}

type summaryEntry struct {
	ATID              string        `json:"atId"`
	BrowserID         string        `json:"browserId"`
	Report            report.Report `json:"testPlanReport"`
	TestPlanVersionID string        `json:"testPlanVersionId"`
}

type summaryResponse struct {
	TestPlanID string         `json:"testPlanId"`
	Status     report.Status  `json:"status,omitempty"`
	Reports    []summaryEntry `json:"reports"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := queue.ReportFilter{
		TestPlanVersionID: q.Get("version"),
		ATID:              q.Get("at"),
		TestPlanID:        q.Get("testPlan"),
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := report.ParseStatus(part)
			if !ok {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid status %q", part))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	views, err := s.backend.TestPlanReports(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if views == nil {
		views = []report.View{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	view, err := s.backend.Report(r.Context(), r.PathValue("reportID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("reportID")
	conflicts, err := s.backend.Conflicts(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conflictsResponse{
		ReportID:  id,
		Count:     conflicts.Count(),
		Conflicts: flatten(conflicts),
	})
}

func (s *Server) handleFinalized(w http.ResponseWriter, r *http.Request) {
	results, err := s.backend.FinalizedTestResults(r.Context(), r.PathValue("reportID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if results == nil {
		results = []result.TestResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDraftRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.backend.DraftTestPlanRuns(r.Context(), r.PathValue("reportID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []result.TestPlanRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	next, ok := report.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid status %q", req.Status))
		return
	}
	view, err := s.backend.PromoteReportStatus(r.Context(), caller, r.PathValue("reportID"), next)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDemote(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	next, ok := report.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid status %q", req.Status))
		return
	}
	view, err := s.backend.DemoteReportStatus(r.Context(), caller, r.PathValue("reportID"), next)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleVendorReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	next, ok := report.ParseVendorReviewStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid status %q", req.Status))
		return
	}
	view, err := s.backend.PromoteVendorReviewStatus(r.Context(), caller, r.PathValue("reportID"), next)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	index, err := queue.ParseIndex(r.PathValue("index"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var upd result.Update
	if !decodeBody(w, r, &upd) {
		return
	}
	res, err := s.backend.RecordResult(r.Context(), caller, r.PathValue("runID"), index, upd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	index, err := queue.ParseIndex(r.PathValue("index"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.backend.ClearResult(r.Context(), caller, r.PathValue("runID"), index)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	index, err := queue.ParseIndex(r.PathValue("index"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	issues, err := s.backend.Issues(r.Context(), r.PathValue("runID"), index)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if issues == nil {
		issues = []report.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleAddViewer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.backend.AddViewer(r.Context(), caller, r.PathValue("versionID"), r.PathValue("testID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.backend.Summary(r.Context(), r.PathValue("testPlanID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := summaryResponse{TestPlanID: sum.TestPlanID, Status: sum.Status, Reports: []summaryEntry{}}
	for _, t := range sum.Targets() {
		e := sum.Latest[t]
		resp.Reports = append(resp.Reports, summaryEntry{
			ATID:              t.ATID,
			BrowserID:         t.BrowserID,
			Report:            e.Report,
			TestPlanVersionID: e.Version.ID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// caller resolves the request's user or writes a 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (report.Caller, bool) {
	username := strings.TrimSpace(r.Header.Get(UserHeader))
	if username == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing "+UserHeader+" header")
		return report.Caller{}, false
	}
	caller, err := s.backend.Caller(r.Context(), username)
	if err != nil {
		s.log.Warn("caller lookup failed", "user", username, "err", err)
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "unknown user")
		return report.Caller{}, false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "payload exceeds limit")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "empty body")
		default:
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

func flatten(c report.Conflicts) []report.Conflict {
	out := []report.Conflict{}
	for _, idx := range c.Indexes() {
		out = append(out, c[idx]...)
	}
	return out
}
