package report

import (
	"sort"

	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Entry pairs a report with the version it was run against.
type Entry struct {
	Report  Report
	Version testplan.Version
}

type Target struct {
	ATID      string `json:"atId"`
	BrowserID string `json:"browserId"`
}

// Summary is the published state of a test plan across AT and browser pairs.
type Summary struct {
	TestPlanID string           `json:"testPlanId"`
	Status     Status           `json:"status,omitempty"`
	Latest     map[Target]Entry `json:"-"`
}

// Targets returns the summary's targets sorted by AT then browser.
func (s Summary) Targets() []Target {
	out := make([]Target, 0, len(s.Latest))
	for t := range s.Latest {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ATID != out[j].ATID {
			return out[i].ATID < out[j].ATID
		}
		return out[i].BrowserID < out[j].BrowserID
	})
	return out
}

// LatestByTarget keeps, per AT and browser, the published report on the most
// recently updated version of testPlanID. The overall status is CANDIDATE if
// any kept report is still a candidate, RECOMMENDED otherwise, and empty when
// nothing is published.
func LatestByTarget(testPlanID string, entries []Entry) Summary {
	sum := Summary{TestPlanID: testPlanID, Latest: map[Target]Entry{}}
	for _, e := range entries {
		if e.Version.TestPlanID != testPlanID {
			continue
		}
		if e.Report.Status != StatusCandidate && e.Report.Status != StatusRecommended {
			continue
		}
		key := Target{ATID: e.Report.ATID, BrowserID: e.Report.BrowserID}
		cur, ok := sum.Latest[key]
		if !ok || newer(e, cur) {
			sum.Latest[key] = e
		}
	}
	if len(sum.Latest) == 0 {
		return sum
	}
	sum.Status = StatusRecommended
	for _, e := range sum.Latest {
		if e.Report.Status == StatusCandidate {
			sum.Status = StatusCandidate
			break
		}
	}
	return sum
}

func newer(a, b Entry) bool {
	if !a.Version.UpdatedAt.Equal(b.Version.UpdatedAt) {
		return a.Version.UpdatedAt.After(b.Version.UpdatedAt)
	}
	return a.Report.CreatedAt.After(b.Report.CreatedAt)
}
