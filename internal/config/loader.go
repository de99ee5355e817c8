package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DirName  = ".testqueue"
	FileName = "config.yaml"
)

var userHomeDir = os.UserHomeDir

// UseHomeDir points global config lookup at dir until restore is called.
// An empty dir makes the lookup fail, as on a machine without a home.
func UseHomeDir(dir string) (restore func()) {
	orig := userHomeDir
	userHomeDir = func() (string, error) {
		if dir == "" {
			return "", os.ErrNotExist
		}
		return dir, nil
	}
	return func() { userHomeDir = orig }
}

func GlobalConfigPath() (string, bool) {
	home, err := userHomeDir()
	if err != nil || home == "" {
		return "", false
	}
	return filepath.Join(home, DirName, FileName), true
}

func ProjectConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, FileName)
}

func LoadGlobalConfig() (RawConfig, bool, error) {
	path, ok := GlobalConfigPath()
	if !ok {
		return RawConfig{}, false, nil
	}
	return loadConfigFile(path)
}

func LoadProjectConfig(projectRoot string) (RawConfig, bool, error) {
	if projectRoot == "" {
		return RawConfig{}, false, nil
	}
	return loadConfigFile(ProjectConfigPath(projectRoot))
}

// LoadConfig reads global and project configs and returns the resolved config
// with relative paths anchored at projectRoot.
// Precedence per key: project > global > defaults.
func LoadConfig(projectRoot string) (ResolvedConfig, error) {
	globalCfg, _, err := LoadGlobalConfig()
	if err != nil {
		return ResolvedConfig{}, err
	}
	projectCfg, _, err := LoadProjectConfig(projectRoot)
	if err != nil {
		return ResolvedConfig{}, err
	}
	return ResolveConfig(projectCfg, globalCfg).Rooted(projectRoot), nil
}

func loadConfigFile(path string) (RawConfig, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, false, nil
		}
		return RawConfig{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var cfg RawConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return RawConfig{}, true, nil
		}
		return RawConfig{}, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return RawConfig{}, false, fmt.Errorf("parse config %s: multiple documents", path)
	}
	if !isSupportedSchemaVersion(cfg.SchemaVersion) {
		return RawConfig{}, false, fmt.Errorf("config %s: unsupported schemaVersion %d", path, *cfg.SchemaVersion)
	}
	return cfg, true, nil
}

// Save writes cfg as the project config.
func Save(projectRoot string, cfg RawConfig) error {
	path := ProjectConfigPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if cfg.SchemaVersion == nil {
		v := SchemaVersion
		cfg.SchemaVersion = &v
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeConfigFile(path, b)
}

func isSupportedSchemaVersion(version *int) bool {
	if version == nil {
		return true
	}
	return *version == SchemaVersion
}
