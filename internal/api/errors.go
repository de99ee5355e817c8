package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/report"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Conflicts []report.Conflict `json:"conflicts,omitempty"`
	RunIDs    []string          `json:"testPlanRunIds,omitempty"`
}

// fail maps a domain error onto a status code and JSON body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var conflictErr report.ConflictError
	var incompleteErr report.IncompleteError
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		status, resp.Code = http.StatusForbidden, "FORBIDDEN"
	case errors.As(err, &conflictErr):
		status, resp.Code = http.StatusConflict, "CONFLICTS"
		resp.Conflicts = flatten(conflictErr.Conflicts)
	case errors.As(err, &incompleteErr):
		status, resp.Code = http.StatusConflict, "INCOMPLETE"
		resp.RunIDs = incompleteErr.RunIDs
	case errors.Is(err, apperr.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperr.ErrInvalidTransition):
		status, resp.Code = http.StatusUnprocessableEntity, "INVALID_TRANSITION"
	case errors.Is(err, apperr.ErrInvalidInput):
		status, resp.Code = http.StatusBadRequest, "BAD_REQUEST"
	default:
		resp.Code = "INTERNAL"
		resp.Error = "internal error"
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
