package result

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type FailedReason string

const (
	FailedIncorrectOutput FailedReason = "INCORRECT_OUTPUT"
	FailedNoOutput        FailedReason = "NO_OUTPUT"
)

func (r FailedReason) Valid() bool {
	return r == FailedIncorrectOutput || r == FailedNoOutput
}

type BehaviorKind string

const (
	BehaviorExcessivelyVerbose       BehaviorKind = "EXCESSIVELY_VERBOSE"
	BehaviorUnexpectedCursorPosition BehaviorKind = "UNEXPECTED_CURSOR_POSITION"
	BehaviorSluggish                 BehaviorKind = "SLUGGISH"
	BehaviorATCrashed                BehaviorKind = "AT_CRASHED"
	BehaviorBrowserCrashed           BehaviorKind = "BROWSER_CRASHED"
	BehaviorOther                    BehaviorKind = "OTHER"
)

var behaviorKinds = map[BehaviorKind]struct{}{
	BehaviorExcessivelyVerbose:       {},
	BehaviorUnexpectedCursorPosition: {},
	BehaviorSluggish:                 {},
	BehaviorATCrashed:                {},
	BehaviorBrowserCrashed:           {},
	BehaviorOther:                    {},
}

func (k BehaviorKind) Valid() bool {
	_, ok := behaviorKinds[k]
	return ok
}

var titleCaser = cases.Title(language.English)

// Label renders the kind for display, keeping "AT" upper case.
func (k BehaviorKind) Label() string {
	words := strings.Split(strings.ToLower(string(k)), "_")
	for i, w := range words {
		if w == "at" {
			words[i] = "AT"
			continue
		}
		words[i] = titleCaser.String(w)
	}
	return strings.Join(words, " ")
}

// BehaviorKinds lists every known unexpected behavior kind in display order.
func BehaviorKinds() []BehaviorKind {
	return []BehaviorKind{
		BehaviorExcessivelyVerbose,
		BehaviorUnexpectedCursorPosition,
		BehaviorSluggish,
		BehaviorATCrashed,
		BehaviorBrowserCrashed,
		BehaviorOther,
	}
}

// AssertionResult records a tester's verdict on one assertion. A nil Passed
// means the assertion has not been judged.
type AssertionResult struct {
	AssertionID  string        `json:"assertionId"`
	Passed       *bool         `json:"passed"`
	FailedReason *FailedReason `json:"failedReason,omitempty"`
}

type UnexpectedBehavior struct {
	Kind BehaviorKind `json:"kind"`
	Text string       `json:"text,omitempty"`
}

type ScenarioResult struct {
	ScenarioID          string               `json:"scenarioId"`
	Output              string               `json:"output"`
	AssertionResults    []AssertionResult    `json:"assertionResults"`
	UnexpectedBehaviors []UnexpectedBehavior `json:"unexpectedBehaviors"`
}

// Assertion returns the recorded result for assertionID.
func (s ScenarioResult) Assertion(assertionID string) (AssertionResult, bool) {
	for _, a := range s.AssertionResults {
		if a.AssertionID == assertionID {
			return a, true
		}
	}
	return AssertionResult{}, false
}

// BehaviorSet returns the distinct unexpected behavior kinds, sorted.
func (s ScenarioResult) BehaviorSet() []BehaviorKind {
	seen := make(map[BehaviorKind]struct{}, len(s.UnexpectedBehaviors))
	out := make([]BehaviorKind, 0, len(s.UnexpectedBehaviors))
	for _, b := range s.UnexpectedBehaviors {
		if _, ok := seen[b.Kind]; ok {
			continue
		}
		seen[b.Kind] = struct{}{}
		out = append(out, b.Kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TestResult is one tester's result for one test within a run. The row is
// created at assignment and survives Clear; only its contents reset.
type TestResult struct {
	ID              string           `json:"id"`
	TestPlanRunID   string           `json:"testPlanRunId"`
	Index           int              `json:"index"`
	TestID          string           `json:"testId"`
	State           json.RawMessage  `json:"state,omitempty"`
	ScenarioResults []ScenarioResult `json:"scenarioResults"`
	Issues          []string         `json:"issues,omitempty"`
	SubmittedAt     *time.Time       `json:"submittedAt,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	IsComplete      bool             `json:"isComplete"`
	IsSkipped       bool             `json:"isSkipped"`
}

func (r TestResult) Submitted() bool {
	return r.SubmittedAt != nil
}

// Started reports whether the tester has touched the result at all.
func (r TestResult) Started() bool {
	return len(r.State) > 0 || len(r.ScenarioResults) > 0 || r.SubmittedAt != nil
}

// Scenario returns the recorded result for scenarioID.
func (r TestResult) Scenario(scenarioID string) (ScenarioResult, bool) {
	for _, s := range r.ScenarioResults {
		if s.ScenarioID == scenarioID {
			return s, true
		}
	}
	return ScenarioResult{}, false
}

// Submission is the full result payload a tester submits for a test.
type Submission struct {
	ScenarioResults []ScenarioResult `json:"scenarioResults"`
}

// Update is a partial change to a TestResult. Nil fields leave the stored
// value alone. Reopen withdraws a prior submission while keeping the recorded
// scenario data.
type Update struct {
	State  json.RawMessage `json:"state,omitempty"`
	Result *Submission     `json:"result,omitempty"`
	Reopen bool            `json:"reopen,omitempty"`
	Issues []string        `json:"issues,omitempty"`
}

// Empty reports whether applying u would change nothing.
func (u Update) Empty() bool {
	return u.State == nil && u.Result == nil && !u.Reopen && u.Issues == nil
}

// TestPlanRun is one tester's execution of a report. Seq is positional and
// assigned by storage in creation order.
type TestPlanRun struct {
	ID               string       `json:"id"`
	TestPlanReportID string       `json:"testPlanReportId"`
	TesterID         string       `json:"testerId"`
	TesterUsername   string       `json:"testerUsername"`
	Seq              int64        `json:"seq"`
	CreatedAt        time.Time    `json:"createdAt"`
	TestResults      []TestResult `json:"testResults"`
}

// Result returns a pointer to the run's result for index so callers can
// update it in place.
func (r *TestPlanRun) Result(index int) (*TestResult, bool) {
	for i := range r.TestResults {
		if r.TestResults[i].Index == index {
			return &r.TestResults[i], true
		}
	}
	return nil, false
}

func Bool(v bool) *bool { return &v }
