package testplan

import "fmt"

type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks structural invariants of a version. When support is
// non-nil, AT and command references are checked against it too.
func Validate(v Version, support *Support) []ValidationError {
	var errs []ValidationError

	if v.ID == "" {
		errs = append(errs, ValidationError{Path: "$.id", Message: "required"})
	}
	if v.TestPlanID == "" {
		errs = append(errs, ValidationError{Path: "$.testPlanId", Message: "required (or set directory)"})
	}
	if v.Tests == nil {
		errs = append(errs, ValidationError{Path: "$.tests", Message: "required (use [] if none)"})
		return errs
	}

	seenID := map[string]bool{}
	seenIndex := map[int]bool{}
	for i, t := range v.Tests {
		path := fmt.Sprintf("$.tests[%d]", i)

		if t.ID == "" {
			errs = append(errs, ValidationError{Path: path + ".id", Message: "required"})
		} else if seenID[t.ID] {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("duplicate test id %q", t.ID)})
		}
		seenID[t.ID] = true

		if t.Index < 1 {
			errs = append(errs, ValidationError{Path: path + ".index", Message: "must be >= 1"})
		} else if seenIndex[t.Index] {
			errs = append(errs, ValidationError{Path: path + ".index", Message: fmt.Sprintf("duplicate index %d", t.Index)})
		}
		seenIndex[t.Index] = true

		if t.Title == "" {
			errs = append(errs, ValidationError{Path: path + ".title", Message: "required"})
		}
		if len(t.ATIDs) == 0 {
			errs = append(errs, ValidationError{Path: path + ".atIds", Message: "at least one AT required"})
		}
		if support != nil {
			for j, atID := range t.ATIDs {
				if _, ok := support.AT(atID); !ok {
					errs = append(errs, ValidationError{Path: fmt.Sprintf("%s.atIds[%d]", path, j), Message: fmt.Sprintf("unknown at %q", atID)})
				}
			}
		}

		errs = append(errs, validateScenarios(path, t, support)...)
	}

	return errs
}

func validateScenarios(path string, t Test, support *Support) []ValidationError {
	var errs []ValidationError
	seen := map[string]bool{}
	for i, s := range t.Scenarios {
		spath := fmt.Sprintf("%s.scenarios[%d]", path, i)
		if s.ID == "" {
			errs = append(errs, ValidationError{Path: spath + ".id", Message: "required"})
		} else if seen[s.ID] {
			errs = append(errs, ValidationError{Path: spath + ".id", Message: fmt.Sprintf("duplicate scenario id %q", s.ID)})
		}
		seen[s.ID] = true

		if !t.AppliesTo(s.ATID) {
			errs = append(errs, ValidationError{Path: spath + ".atId", Message: fmt.Sprintf("at %q is not listed in the test's atIds", s.ATID)})
		}
		if support != nil {
			for j, commandID := range s.CommandIDs {
				if _, ok := support.Command(commandID); !ok {
					errs = append(errs, ValidationError{Path: fmt.Sprintf("%s.commandIds[%d]", spath, j), Message: fmt.Sprintf("unknown command %q", commandID)})
				}
			}
		}

		seenAssertion := map[string]bool{}
		for j, a := range s.Assertions {
			apath := fmt.Sprintf("%s.assertions[%d]", spath, j)
			if a.ID == "" {
				errs = append(errs, ValidationError{Path: apath + ".id", Message: "required"})
			} else if seenAssertion[a.ID] {
				errs = append(errs, ValidationError{Path: apath + ".id", Message: fmt.Sprintf("duplicate assertion id %q", a.ID)})
			}
			seenAssertion[a.ID] = true
			if _, ok := ParsePriority(string(a.Priority)); !ok {
				errs = append(errs, ValidationError{Path: apath + ".priority", Message: fmt.Sprintf("invalid priority %q", a.Priority)})
			}
		}
	}
	return errs
}
