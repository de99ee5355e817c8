package testplan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReportsStructuralErrors(t *testing.T) {
	v := Version{
		ID:         "v1",
		TestPlanID: "menu",
		Tests: []Test{
			{ID: "a", Index: 1, Title: "A", ATIDs: []string{"nvda"}, Scenarios: []Scenario{
				{ID: "s1", ATID: "jaws", Assertions: []Assertion{{ID: "x", Priority: "MAYBE"}}},
				{ID: "s1", ATID: "nvda"},
			}},
			{ID: "a", Index: 1, Title: "", ATIDs: nil},
		},
	}

	errs := Validate(v, nil)
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	joined := strings.Join(msgs, "\n")

	assert.Contains(t, joined, `$.tests[0].scenarios[0].atId: at "jaws" is not listed`)
	assert.Contains(t, joined, `$.tests[0].scenarios[0].assertions[0].priority: invalid priority "MAYBE"`)
	assert.Contains(t, joined, `$.tests[0].scenarios[1].id: duplicate scenario id "s1"`)
	assert.Contains(t, joined, `$.tests[1].id: duplicate test id "a"`)
	assert.Contains(t, joined, `$.tests[1].index: duplicate index 1`)
	assert.Contains(t, joined, `$.tests[1].title: required`)
	assert.Contains(t, joined, `$.tests[1].atIds: at least one AT required`)
}

func TestValidateChecksSupportReferences(t *testing.T) {
	support := &Support{
		ATs:      []AT{{ID: "nvda", Name: "NVDA"}},
		Commands: []Command{{ID: "tab", Text: "Tab"}},
	}
	v := Version{
		ID:         "v1",
		TestPlanID: "menu",
		Tests: []Test{{
			ID: "a", Index: 1, Title: "A", ATIDs: []string{"nvda", "talkback"},
			Scenarios: []Scenario{{ID: "s1", ATID: "nvda", CommandIDs: []string{"tab", "swipe"}}},
		}},
	}

	errs := Validate(v, support)
	if assert.Len(t, errs, 2) {
		assert.Equal(t, "$.tests[0].atIds[1]", errs[0].Path)
		assert.Equal(t, "$.tests[0].scenarios[0].commandIds[1]", errs[1].Path)
	}
}
