package report

import (
	"strings"

	"github.com/jbonatakis/testqueue/internal/apperr"
)

// ConflictError rejects a promotion while testers disagree.
type ConflictError struct {
	Conflicts Conflicts
}

func (e ConflictError) Error() string {
	return "Cannot finalize test plan report due to conflicts"
}

func (e ConflictError) Is(target error) bool { return target == apperr.ErrConflicts }

// IncompleteError rejects a promotion while any run has unfinished results.
type IncompleteError struct {
	RunIDs []string
}

func (e IncompleteError) Error() string {
	return "Cannot finalize test plan due to incomplete test runs"
}

func (e IncompleteError) Is(target error) bool { return target == apperr.ErrIncomplete }

// Detail lists the offending runs for logs and CLI output.
func (e IncompleteError) Detail() string {
	return strings.Join(e.RunIDs, ", ")
}
