package testplan

import "fmt"

type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceVersion
	SourceReport
)

func (k SourceKind) String() string {
	switch k {
	case SourceVersion:
		return "TestPlanVersion"
	case SourceReport:
		return "TestPlanReport"
	default:
		return "unknown"
	}
}

// Source says where tests are being resolved from. A report source carries
// the report's AT so child lookups can default to it; a version source has
// no AT.
type Source struct {
	Kind    SourceKind
	Version Version
	ATID    string
}

func FromVersion(v Version) Source {
	return Source{Kind: SourceVersion, Version: v}
}

func FromReport(v Version, atID string) Source {
	return Source{Kind: SourceReport, Version: v, ATID: atID}
}

type ResolvedScenario struct {
	Scenario
	AT       AT
	Commands []Command
}

type ResolvedTest struct {
	Test
	InferredATID string
	ATs          []AT
	Scenarios    []ResolvedScenario
}

// ResolveTests expands tests from their stored form into the populated form
// with AT and command records from support.
func ResolveTests(src Source, support Support) ([]ResolvedTest, error) {
	switch src.Kind {
	case SourceVersion, SourceReport:
	default:
		return nil, fmt.Errorf("resolve tests: unsupported source kind %d", src.Kind)
	}
	if src.Kind == SourceReport && src.ATID == "" {
		return nil, fmt.Errorf("resolve tests: report source requires an AT")
	}

	out := make([]ResolvedTest, 0, len(src.Version.Tests))
	for _, t := range src.Version.Tests {
		rt := ResolvedTest{
			Test:         cloneTest(t),
			InferredATID: src.ATID,
			ATs:          make([]AT, 0, len(t.ATIDs)),
			Scenarios:    make([]ResolvedScenario, 0, len(t.Scenarios)),
		}
		for _, atID := range t.ATIDs {
			at, ok := support.AT(atID)
			if !ok {
				return nil, fmt.Errorf("resolve test %q: unknown at %q", t.ID, atID)
			}
			rt.ATs = append(rt.ATs, at)
		}
		for _, s := range t.Scenarios {
			at, ok := support.AT(s.ATID)
			if !ok {
				return nil, fmt.Errorf("resolve test %q scenario %q: unknown at %q", t.ID, s.ID, s.ATID)
			}
			rs := ResolvedScenario{
				Scenario: cloneScenario(s),
				AT:       at,
				Commands: make([]Command, 0, len(s.CommandIDs)),
			}
			for _, commandID := range s.CommandIDs {
				cmd, ok := support.Command(commandID)
				if !ok {
					return nil, fmt.Errorf("resolve test %q scenario %q: unknown command %q", t.ID, s.ID, commandID)
				}
				rs.Commands = append(rs.Commands, cmd)
			}
			rt.Scenarios = append(rt.Scenarios, rs)
		}
		out = append(out, rt)
	}
	return out, nil
}
