package testplan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrVersionFileNotFound = errors.New("test plan file not found")

type versionFile struct {
	SchemaVersion int        `yaml:"schemaVersion"`
	ID            string     `yaml:"id"`
	TestPlanID    string     `yaml:"testPlanId"`
	Title         string     `yaml:"title"`
	Directory     string     `yaml:"directory"`
	GitSHA        string     `yaml:"gitSha"`
	UpdatedAt     time.Time  `yaml:"updatedAt"`
	Tests         []testFile `yaml:"tests"`
}

// testFile allows assertions to be declared once per test; scenarios that
// declare none inherit them.
type testFile struct {
	ID         string      `yaml:"id"`
	Index      int         `yaml:"index"`
	Title      string      `yaml:"title"`
	ATIDs      []string    `yaml:"atIds"`
	Assertions []Assertion `yaml:"assertions"`
	Scenarios  []Scenario  `yaml:"scenarios"`
}

// Load reads a test plan version from a YAML file.
func Load(path string) (Version, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Version{}, ErrVersionFileNotFound
		}
		return Version{}, fmt.Errorf("read test plan file %s: %w", path, err)
	}
	v, err := Decode(b)
	if err != nil {
		return Version{}, fmt.Errorf("parse test plan file %s: %w", path, err)
	}
	return v, nil
}

// Decode parses a YAML test plan version. Unknown fields are rejected.
func Decode(b []byte) (Version, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f versionFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Version{}, fmt.Errorf("empty document")
		}
		return Version{}, err
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return Version{}, fmt.Errorf("trailing YAML documents")
		}
		return Version{}, fmt.Errorf("trailing data: %w", err)
	}
	if f.SchemaVersion != 0 && f.SchemaVersion != SchemaVersion {
		return Version{}, fmt.Errorf("unsupported schemaVersion %d (expected %d)", f.SchemaVersion, SchemaVersion)
	}
	return f.version(), nil
}

func (f versionFile) version() Version {
	v := Version{
		ID:         f.ID,
		TestPlanID: f.TestPlanID,
		Title:      f.Title,
		Directory:  f.Directory,
		GitSHA:     f.GitSHA,
		UpdatedAt:  f.UpdatedAt.UTC(),
		Tests:      make([]Test, 0, len(f.Tests)),
	}
	if v.TestPlanID == "" {
		v.TestPlanID = f.Directory
	}
	for i, tf := range f.Tests {
		t := Test{
			ID:        tf.ID,
			Index:     tf.Index,
			Title:     tf.Title,
			ATIDs:     append([]string{}, tf.ATIDs...),
			Scenarios: make([]Scenario, 0, len(tf.Scenarios)),
		}
		if t.Index == 0 {
			t.Index = i + 1
		}
		for _, s := range tf.Scenarios {
			s = cloneScenario(s)
			if len(s.Assertions) == 0 {
				s.Assertions = append([]Assertion{}, tf.Assertions...)
			}
			if s.CommandIDs == nil {
				s.CommandIDs = []string{}
			}
			for j := range s.Assertions {
				if s.Assertions[j].Priority == "" {
					s.Assertions[j].Priority = PriorityRequired
				}
			}
			t.Scenarios = append(t.Scenarios, s)
		}
		v.Tests = append(v.Tests, t)
	}
	return v
}
