package tui

import (
	"encoding/json"

	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// draft is the tester's unsaved work on one test. It is stored as the
// result's state so a partially filled test survives navigation.
type draft struct {
	Scenarios []scenarioDraft `json:"scenarios"`
}

type scenarioDraft struct {
	ScenarioID string                `json:"scenarioId"`
	Output     string                `json:"output"`
	Assertions []assertionDraft      `json:"assertions"`
	Behaviors  []result.BehaviorKind `json:"behaviors,omitempty"`
}

type assertionDraft struct {
	AssertionID string `json:"assertionId"`
	Passed      *bool  `json:"passed"`
}

// newDraft builds a draft for test, seeded from the stored state when it
// decodes, otherwise from the stored scenario results.
func newDraft(test testplan.Test, stored result.TestResult, ok bool) draft {
	d := emptyDraft(test)
	if !ok {
		return d
	}
	if len(stored.State) > 0 {
		var saved draft
		if err := json.Unmarshal(stored.State, &saved); err == nil {
			d.merge(saved)
			return d
		}
	}
	for i, sd := range d.Scenarios {
		sr, found := stored.Scenario(sd.ScenarioID)
		if !found {
			continue
		}
		d.Scenarios[i].Output = sr.Output
		for j, ad := range sd.Assertions {
			if ar, found := sr.Assertion(ad.AssertionID); found && ar.Passed != nil {
				d.Scenarios[i].Assertions[j].Passed = result.Bool(*ar.Passed)
			}
		}
		d.Scenarios[i].Behaviors = sr.BehaviorSet()
	}
	return d
}

func emptyDraft(test testplan.Test) draft {
	d := draft{Scenarios: make([]scenarioDraft, 0, len(test.Scenarios))}
	for _, s := range test.Scenarios {
		sd := scenarioDraft{ScenarioID: s.ID, Assertions: make([]assertionDraft, 0, len(s.Assertions))}
		for _, a := range s.Assertions {
			sd.Assertions = append(sd.Assertions, assertionDraft{AssertionID: a.ID})
		}
		d.Scenarios = append(d.Scenarios, sd)
	}
	return d
}

// merge copies values from saved for scenarios and assertions the test
// still has.
func (d *draft) merge(saved draft) {
	for i := range d.Scenarios {
		for _, ss := range saved.Scenarios {
			if ss.ScenarioID != d.Scenarios[i].ScenarioID {
				continue
			}
			d.Scenarios[i].Output = ss.Output
			d.Scenarios[i].Behaviors = append([]result.BehaviorKind(nil), ss.Behaviors...)
			for j := range d.Scenarios[i].Assertions {
				for _, sa := range ss.Assertions {
					if sa.AssertionID == d.Scenarios[i].Assertions[j].AssertionID && sa.Passed != nil {
						d.Scenarios[i].Assertions[j].Passed = result.Bool(*sa.Passed)
					}
				}
			}
		}
	}
}

func (d draft) state() json.RawMessage {
	b, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	return b
}

func (d draft) submission() result.Submission {
	sub := result.Submission{ScenarioResults: make([]result.ScenarioResult, 0, len(d.Scenarios))}
	for _, sd := range d.Scenarios {
		sr := result.ScenarioResult{
			ScenarioID:          sd.ScenarioID,
			Output:              sd.Output,
			AssertionResults:    make([]result.AssertionResult, 0, len(sd.Assertions)),
			UnexpectedBehaviors: make([]result.UnexpectedBehavior, 0, len(sd.Behaviors)),
		}
		for _, ad := range sd.Assertions {
			ar := result.AssertionResult{AssertionID: ad.AssertionID}
			if ad.Passed != nil {
				ar.Passed = result.Bool(*ad.Passed)
				if !*ad.Passed {
					reason := result.FailedIncorrectOutput
					if sd.Output == "" {
						reason = result.FailedNoOutput
					}
					ar.FailedReason = &reason
				}
			}
			sr.AssertionResults = append(sr.AssertionResults, ar)
		}
		for _, k := range sd.Behaviors {
			sr.UnexpectedBehaviors = append(sr.UnexpectedBehaviors, result.UnexpectedBehavior{Kind: k})
		}
		sub.ScenarioResults = append(sub.ScenarioResults, sr)
	}
	return sub
}

// toggleBehavior adds kind to scenario i, or removes it if present.
func (d *draft) toggleBehavior(i int, kind result.BehaviorKind) {
	kinds := d.Scenarios[i].Behaviors
	for j, k := range kinds {
		if k == kind {
			d.Scenarios[i].Behaviors = append(kinds[:j:j], kinds[j+1:]...)
			return
		}
	}
	d.Scenarios[i].Behaviors = append(kinds, kind)
}

// row addresses one assertion in the draft.
type row struct {
	scenario  int
	assertion int
}

func (d draft) rows() []row {
	var out []row
	for i, sd := range d.Scenarios {
		for j := range sd.Assertions {
			out = append(out, row{scenario: i, assertion: j})
		}
	}
	return out
}
