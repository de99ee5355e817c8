package testplan

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type AT struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Key  string `json:"key" yaml:"key"`
}

type Browser struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Command struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// Support is the read-only AT, browser and command catalogue. It is loaded
// once at startup and passed to whatever needs it.
type Support struct {
	ATs      []AT      `json:"ats" yaml:"ats"`
	Browsers []Browser `json:"browsers" yaml:"browsers"`
	Commands []Command `json:"commands" yaml:"commands"`
}

// LoadSupport reads the catalogue. A missing file yields an empty catalogue.
func LoadSupport(path string) (Support, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Support{}, nil
		}
		return Support{}, fmt.Errorf("read support file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var s Support
	if err := dec.Decode(&s); err != nil {
		return Support{}, fmt.Errorf("parse support file %s: %w", path, err)
	}
	return s, nil
}

func (s Support) AT(id string) (AT, bool) {
	for _, at := range s.ATs {
		if at.ID == id {
			return at, true
		}
	}
	return AT{}, false
}

func (s Support) Browser(id string) (Browser, bool) {
	for _, b := range s.Browsers {
		if b.ID == id {
			return b, true
		}
	}
	return Browser{}, false
}

func (s Support) Command(id string) (Command, bool) {
	for _, c := range s.Commands {
		if c.ID == id {
			return c, true
		}
	}
	return Command{}, false
}

// ATName returns the display name for atID, or atID itself if unknown.
func (s Support) ATName(atID string) string {
	if at, ok := s.AT(atID); ok && at.Name != "" {
		return at.Name
	}
	return atID
}

// BrowserName returns the display name for browserID, or browserID itself.
func (s Support) BrowserName(browserID string) string {
	if b, ok := s.Browser(browserID); ok && b.Name != "" {
		return b.Name
	}
	return browserID
}
