package report

import (
	"time"

	"github.com/jbonatakis/testqueue/internal/apperr"
)

const DefaultRecommendedTargetDays = 180

var allowedTransitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusCandidate:   true,
		StatusRecommended: true,
	},
	StatusCandidate: {
		StatusRecommended: true,
	},
	StatusRecommended: {},
}

var allowedDemotions = map[Status]map[Status]bool{
	StatusCandidate: {
		StatusDraft: true,
	},
	StatusRecommended: {
		StatusCandidate: true,
		StatusDraft:     true,
	},
}

var allowedVendorReview = map[VendorReviewStatus]map[VendorReviewStatus]bool{
	VendorReviewPending: {
		VendorReviewInProgress: true,
		VendorReviewApproved:   true,
	},
	VendorReviewInProgress: {
		VendorReviewApproved: true,
	},
	VendorReviewApproved: {},
}

// CheckPromotion runs the promotion gates in order: role, transition,
// conflicts, completeness. The first failing gate decides the error.
// The data gates only guard CANDIDATE and RECOMMENDED.
func CheckPromotion(caller Caller, s Snapshot, next Status) error {
	if !caller.Roles.Has(RoleAdmin) {
		return apperr.AuthorizationError{Action: "update report status", Need: []string{string(RoleAdmin)}}
	}
	if err := validateTransition(s.Report.Status, next); err != nil {
		return err
	}
	if next == StatusDraft {
		return nil
	}
	if conflicts := DetectConflicts(s); len(conflicts) > 0 {
		return ConflictError{Conflicts: conflicts}
	}
	if runIDs := IncompleteRuns(s); len(runIDs) > 0 {
		return IncompleteError{RunIDs: runIDs}
	}
	return nil
}

func validateTransition(from, to Status) error {
	if !to.Valid() {
		return apperr.TransitionError{Subject: "status", From: string(from), To: string(to), Reason: "unknown status"}
	}
	if from == to {
		return nil
	}
	if !allowedTransitions[from][to] {
		reason := ""
		if allowedDemotions[from][to] {
			reason = "use demote"
		}
		return apperr.TransitionError{Subject: "status", From: string(from), To: string(to), Reason: reason}
	}
	return nil
}

// ApplyStatus moves r to next and stamps the milestone dates. It is a no-op
// when r is already at next.
func ApplyStatus(r *Report, next Status, now time.Time, targetDays int) bool {
	if r.Status == next {
		return false
	}
	if targetDays <= 0 {
		targetDays = DefaultRecommendedTargetDays
	}
	switch next {
	case StatusCandidate:
		reached := now
		target := now.AddDate(0, 0, targetDays)
		pending := VendorReviewPending
		r.CandidateStatusReachedAt = &reached
		r.RecommendedStatusTargetDate = &target
		r.VendorReviewStatus = &pending
	case StatusRecommended:
		reached := now
		r.RecommendedStatusReachedAt = &reached
	}
	r.Status = next
	return true
}

// CheckDemotion validates an explicit backward move. Demotion skips the
// conflict and completeness gates.
func CheckDemotion(caller Caller, r Report, next Status) error {
	if !caller.Roles.Has(RoleAdmin) {
		return apperr.AuthorizationError{Action: "demote report status", Need: []string{string(RoleAdmin)}}
	}
	if !next.Valid() {
		return apperr.TransitionError{Subject: "status", From: string(r.Status), To: string(next), Reason: "unknown status"}
	}
	if r.Status == next {
		return nil
	}
	if !allowedDemotions[r.Status][next] {
		return apperr.TransitionError{Subject: "status", From: string(r.Status), To: string(next), Reason: "not a demotion"}
	}
	return nil
}

// ApplyDemotion moves r back to next and clears milestones it no longer holds.
func ApplyDemotion(r *Report, next Status) bool {
	if r.Status == next {
		return false
	}
	r.RecommendedStatusReachedAt = nil
	if next == StatusDraft {
		r.CandidateStatusReachedAt = nil
		r.RecommendedStatusTargetDate = nil
		r.VendorReviewStatus = nil
	}
	r.Status = next
	return true
}

// CheckVendorReview validates a vendor review change. It never looks at
// conflicts or completeness and never changes the report status.
func CheckVendorReview(caller Caller, r Report, next VendorReviewStatus) error {
	if !caller.Roles.Any(RoleVendor, RoleAdmin) {
		return apperr.AuthorizationError{Action: "update vendor review", Need: []string{string(RoleVendor), string(RoleAdmin)}}
	}
	if r.Status != StatusCandidate {
		return apperr.TransitionError{Subject: "vendor review", From: string(currentReview(r)), To: string(next), Reason: "report is " + string(r.Status)}
	}
	from := currentReview(r)
	if _, ok := allowedVendorReview[next]; !ok {
		return apperr.TransitionError{Subject: "vendor review", From: string(from), To: string(next), Reason: "unknown status"}
	}
	if from == next {
		return nil
	}
	if !allowedVendorReview[from][next] {
		return apperr.TransitionError{Subject: "vendor review", From: string(from), To: string(next)}
	}
	return nil
}

func ApplyVendorReview(r *Report, next VendorReviewStatus) bool {
	if currentReview(*r) == next && r.VendorReviewStatus != nil {
		return false
	}
	v := next
	r.VendorReviewStatus = &v
	return true
}

func currentReview(r Report) VendorReviewStatus {
	if r.VendorReviewStatus == nil {
		return VendorReviewPending
	}
	return *r.VendorReviewStatus
}
