package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// WriteError reports which step of a config write failed.
type WriteError struct {
	Path string
	Step string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write config %s: %s: %v", e.Path, e.Step, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// writeConfigFile replaces path with data through a temp file in the same
// directory, so readers see either the old or the new config.
func writeConfigFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	fail := func(step string, err error) error {
		return &WriteError{Path: path, Step: step, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*.tmp")
	if err != nil {
		return fail("create temp file", err)
	}
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return fail("chmod", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail("replace", err)
	}
	committed = true

	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fail("open dir", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fail("fsync dir", err)
	}
	return nil
}
