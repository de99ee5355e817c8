package testplan

import (
	"sort"
	"time"
)

const (
	DefaultSupportFilename = "support.yaml"
	SchemaVersion          = 1
)

type Priority string

const (
	PriorityRequired Priority = "REQUIRED"
	PriorityOptional Priority = "OPTIONAL"
)

// ParsePriority validates and parses a priority string.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityRequired, PriorityOptional:
		return Priority(s), true
	default:
		return "", false
	}
}

type Assertion struct {
	ID       string   `json:"id" yaml:"id"`
	Text     string   `json:"text" yaml:"text"`
	Priority Priority `json:"priority" yaml:"priority"`
}

// Scenario binds a test to one AT command sequence.
type Scenario struct {
	ID         string      `json:"id" yaml:"id"`
	ATID       string      `json:"atId" yaml:"atId"`
	CommandIDs []string    `json:"commandIds" yaml:"commandIds"`
	Assertions []Assertion `json:"assertions" yaml:"assertions"`
}

// Test is an immutable unit of work. Index is stable within a Version and is
// how results are keyed in storage.
type Test struct {
	ID        string     `json:"id" yaml:"id"`
	Index     int        `json:"index" yaml:"index"`
	Title     string     `json:"title" yaml:"title"`
	ATIDs     []string   `json:"atIds" yaml:"atIds"`
	Scenarios []Scenario `json:"scenarios" yaml:"scenarios"`
}

type Version struct {
	ID         string    `json:"id" yaml:"id"`
	TestPlanID string    `json:"testPlanId" yaml:"testPlanId"`
	Title      string    `json:"title" yaml:"title"`
	Directory  string    `json:"directory" yaml:"directory"`
	GitSHA     string    `json:"gitSha" yaml:"gitSha"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
	Tests      []Test    `json:"tests" yaml:"tests"`
}

// DisplayTitle falls back to the directory when a version has no title.
func (v Version) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return v.Directory
}

// TestByIndex returns the test with the given stable index.
func (v Version) TestByIndex(index int) (Test, bool) {
	for _, t := range v.Tests {
		if t.Index == index {
			return t, true
		}
	}
	return Test{}, false
}

// RunnableTests returns the tests that apply to atID, ordered by index, with
// each test's scenarios narrowed to the ones bound to atID.
func (v Version) RunnableTests(atID string) []Test {
	out := make([]Test, 0, len(v.Tests))
	for _, t := range v.Tests {
		if !t.AppliesTo(atID) {
			continue
		}
		runnable := cloneTest(t)
		runnable.Scenarios = t.ScenariosFor(atID)
		out = append(out, runnable)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

func (t Test) AppliesTo(atID string) bool {
	for _, id := range t.ATIDs {
		if id == atID {
			return true
		}
	}
	return false
}

// ScenariosFor returns the scenarios bound to atID in declaration order.
func (t Test) ScenariosFor(atID string) []Scenario {
	out := make([]Scenario, 0, len(t.Scenarios))
	for _, s := range t.Scenarios {
		if s.ATID == atID {
			out = append(out, cloneScenario(s))
		}
	}
	return out
}

// Scenario looks up a scenario by ID.
func (t Test) Scenario(id string) (Scenario, bool) {
	for _, s := range t.Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// Assertion looks up an assertion by ID.
func (s Scenario) Assertion(id string) (Assertion, bool) {
	for _, a := range s.Assertions {
		if a.ID == id {
			return a, true
		}
	}
	return Assertion{}, false
}

// FindTest returns the test with the given index from a runnable list.
func FindTest(tests []Test, index int) (Test, bool) {
	for _, t := range tests {
		if t.Index == index {
			return t, true
		}
	}
	return Test{}, false
}

func cloneTest(t Test) Test {
	out := t
	if t.ATIDs != nil {
		out.ATIDs = append([]string{}, t.ATIDs...)
	}
	if t.Scenarios != nil {
		out.Scenarios = make([]Scenario, 0, len(t.Scenarios))
		for _, s := range t.Scenarios {
			out.Scenarios = append(out.Scenarios, cloneScenario(s))
		}
	}
	return out
}

func cloneScenario(s Scenario) Scenario {
	out := s
	if s.CommandIDs != nil {
		out.CommandIDs = append([]string{}, s.CommandIDs...)
	}
	if s.Assertions != nil {
		out.Assertions = append([]Assertion{}, s.Assertions...)
	}
	return out
}
