package report

// Issue is feedback filed against a test from inside a run. Issues are owned
// by an external tracker; the queue only reads them.
type Issue struct {
	ID            string `json:"id"`
	TestPlanRunID string `json:"testPlanRunId"`
	TestIndex     int    `json:"testIndex"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	Author        string `json:"author"`
	FeedbackType  string `json:"feedbackType"`
	Closed        bool   `json:"closed"`
}

// OpenIssues returns the issues for one test of one run that are still open.
func OpenIssues(issues []Issue, runID string, index int) []Issue {
	var out []Issue
	for _, is := range issues {
		if is.Closed || is.TestPlanRunID != runID || is.TestIndex != index {
			continue
		}
		out = append(out, is)
	}
	return out
}
