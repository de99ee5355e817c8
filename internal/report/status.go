package report

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusCandidate   Status = "CANDIDATE"
	StatusRecommended Status = "RECOMMENDED"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusDraft, StatusCandidate, StatusRecommended:
		return st, true
	default:
		return "", false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusCandidate, StatusRecommended:
		return true
	default:
		return false
	}
}

func (s Status) Label() string { return label(string(s)) }

type VendorReviewStatus string

const (
	VendorReviewPending    VendorReviewStatus = "PENDING"
	VendorReviewInProgress VendorReviewStatus = "IN_PROGRESS"
	VendorReviewApproved   VendorReviewStatus = "APPROVED"
)

func ParseVendorReviewStatus(s string) (VendorReviewStatus, bool) {
	v := VendorReviewStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VendorReviewPending, VendorReviewInProgress, VendorReviewApproved:
		return v, true
	default:
		return "", false
	}
}

func (v VendorReviewStatus) Label() string { return label(string(v)) }

var titleCaser = cases.Title(language.English)

func label(s string) string {
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(s, "_", " ")))
}
