package config

import (
	"path/filepath"
	"strings"
)

// ResolveConfig merges project/global configs with built-in defaults.
// Precedence per key: project > global > defaults. Out-of-range numbers are
// clamped; unknown log levels fall back to the default.
func ResolveConfig(project RawConfig, global RawConfig) ResolvedConfig {
	defaults := DefaultResolvedConfig()

	storePath := resolveString(
		pick(project.Store, func(s RawStore) *string { return s.Path }),
		pick(global.Store, func(s RawStore) *string { return s.Path }),
		defaults.Store.Path,
	)
	level := resolveLogLevel(
		pick(project.Log, func(l RawLog) *string { return l.Level }),
		pick(global.Log, func(l RawLog) *string { return l.Level }),
		defaults.Log.Level,
	)
	targetDays := resolveIntWithBounds(
		pick(project.Report, func(r RawReport) *int { return r.RecommendedTargetDays }),
		pick(global.Report, func(r RawReport) *int { return r.RecommendedTargetDays }),
		defaults.Report.RecommendedTargetDays,
		MinRecommendedTargetDays,
		MaxRecommendedTargetDays,
	)
	listenAddr := resolveString(
		pick(project.API, func(a RawAPI) *string { return a.ListenAddr }),
		pick(global.API, func(a RawAPI) *string { return a.ListenAddr }),
		defaults.API.ListenAddr,
	)
	supportPath := resolveString(
		pick(project.Support, func(s RawSupport) *string { return s.Path }),
		pick(global.Support, func(s RawSupport) *string { return s.Path }),
		defaults.Support.Path,
	)

	return ResolvedConfig{
		SchemaVersion: SchemaVersion,
		Store:         ResolvedStore{Path: storePath},
		Log:           ResolvedLog{Level: level},
		Report:        ResolvedReport{RecommendedTargetDays: targetDays},
		API:           ResolvedAPI{ListenAddr: listenAddr},
		Support:       ResolvedSupport{Path: supportPath},
	}
}

// Rooted returns cfg with relative file paths joined to projectRoot.
func (cfg ResolvedConfig) Rooted(projectRoot string) ResolvedConfig {
	if projectRoot == "" {
		return cfg
	}
	if !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(projectRoot, cfg.Store.Path)
	}
	if !filepath.IsAbs(cfg.Support.Path) {
		cfg.Support.Path = filepath.Join(projectRoot, cfg.Support.Path)
	}
	return cfg
}

func pick[S any, V any](section *S, get func(S) *V) *V {
	if section == nil {
		return nil
	}
	return get(*section)
}

func resolveString(projectVal *string, globalVal *string, defaultVal string) string {
	if projectVal != nil && strings.TrimSpace(*projectVal) != "" {
		return strings.TrimSpace(*projectVal)
	}
	if globalVal != nil && strings.TrimSpace(*globalVal) != "" {
		return strings.TrimSpace(*globalVal)
	}
	return defaultVal
}

func resolveLogLevel(projectVal *string, globalVal *string, defaultVal string) string {
	for _, v := range []*string{projectVal, globalVal} {
		if v == nil {
			continue
		}
		level := strings.ToLower(strings.TrimSpace(*v))
		if logLevels[level] {
			return level
		}
	}
	return defaultVal
}

func resolveIntWithBounds(projectVal *int, globalVal *int, defaultVal int, minVal int, maxVal int) int {
	if projectVal != nil {
		return clampInt(*projectVal, minVal, maxVal)
	}
	if globalVal != nil {
		return clampInt(*globalVal, minVal, maxVal)
	}
	return clampInt(defaultVal, minVal, maxVal)
}

func clampInt(value int, minVal int, maxVal int) int {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
