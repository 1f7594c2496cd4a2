// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/autobrr/sweeparr/internal/domain"
)

// PersistOverrides applies mutate to a copy of the current config, validates
// the result and writes the changed keys back into the config file in place,
// preserving comments and layout. The write is atomic (tmp file + rename) and
// the in-memory snapshot is swapped on success.
func (c *AppConfig) PersistOverrides(mutate func(*domain.Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := *c.config
	mutate(&updated)
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	raw, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	content := string(raw)
	for _, sec := range diffSettings(c.config, &updated) {
		content = updateKeysInTOML(content, sec.section, sec.settings)
	}

	if err := atomicWriteFile(c.configPath, []byte(content), 0o644); err != nil {
		return err
	}

	c.config = &updated
	return nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

type tomlSetting struct {
	key   string
	value string
	// remove comments the key out instead of setting it, used when an
	// optional override is cleared.
	remove bool
}

type sectionSettings struct {
	section  string
	settings []tomlSetting
}

// updateKeysInTOML rewrites the given keys of one section (empty string means
// the top level) in place. Commented template lines like "#logPath = ..." are
// uncommented and updated where they sit; keys the file never mentions are
// appended at the end of the section, before the next section header.
func updateKeysInTOML(content, section string, settings []tomlSetting) string {
	lines := strings.Split(content, "\n")
	done := make(map[string]bool, len(settings))

	current := ""
	for i, line := range lines {
		if name, ok := sectionHeader(line); ok {
			current = name
			continue
		}
		if current != section {
			continue
		}
		for _, s := range settings {
			if done[s.key] || !lineSetsKey(line, s.key) {
				continue
			}
			if s.remove {
				if !strings.HasPrefix(strings.TrimSpace(line), "#") {
					lines[i] = "#" + line
				}
			} else {
				lines[i] = s.key + " = " + s.value
			}
			done[s.key] = true
			break
		}
	}

	var missing []string
	for _, s := range settings {
		if !done[s.key] && !s.remove {
			missing = append(missing, s.key+" = "+s.value)
		}
	}
	if len(missing) == 0 {
		return strings.Join(lines, "\n")
	}

	start, end := -1, len(lines)
	if section == "" {
		start = 0
		for i, line := range lines {
			if _, ok := sectionHeader(line); ok {
				end = i
				break
			}
		}
	} else {
		for i, line := range lines {
			name, ok := sectionHeader(line)
			if !ok {
				continue
			}
			if start >= 0 {
				end = i
				break
			}
			if name == section {
				start = i + 1
			}
		}
	}

	if start < 0 {
		out := strings.Join(lines, "\n")
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return out + "\n[" + section + "]\n" + strings.Join(missing, "\n") + "\n"
	}

	// Keep appended keys with the section body, above its trailing spacer.
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	out := make([]string, 0, len(lines)+len(missing))
	out = append(out, lines[:end]...)
	out = append(out, missing...)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

func sectionHeader(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return strings.Trim(s, "[]"), true
	}
	return "", false
}

// lineSetsKey reports whether the line assigns the key, commented out or not.
func lineSetsKey(line, key string) bool {
	s := strings.TrimSpace(line)
	for strings.HasPrefix(s, "#") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
	}
	if !strings.HasPrefix(s, key) {
		return false
	}
	rest := strings.TrimLeft(s[len(key):], " \t")
	return strings.HasPrefix(rest, "=")
}

func formatTOMLValue(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case []string:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = strconv.Quote(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", t)
	}
}

type settingDiff struct {
	settings []tomlSetting
}

func (d *settingDiff) set(key string, v any) {
	d.settings = append(d.settings, tomlSetting{key: key, value: formatTOMLValue(v)})
}

func (d *settingDiff) strVal(key, old, next string) {
	if old != next {
		d.set(key, next)
	}
}

func (d *settingDiff) intVal(key string, old, next int) {
	if old != next {
		d.set(key, next)
	}
}

func (d *settingDiff) floatVal(key string, old, next float64) {
	if old != next {
		d.set(key, next)
	}
}

func (d *settingDiff) boolVal(key string, old, next bool) {
	if old != next {
		d.set(key, next)
	}
}

func (d *settingDiff) strSlice(key string, old, next []string) {
	if !slices.Equal(old, next) {
		d.set(key, next)
	}
}

func (d *settingDiff) boolPtr(key string, old, next *bool) {
	switch {
	case next == nil && old != nil:
		d.settings = append(d.settings, tomlSetting{key: key, remove: true})
	case next != nil && (old == nil || *old != *next):
		d.set(key, *next)
	}
}

func (d *settingDiff) floatPtr(key string, old, next *float64) {
	switch {
	case next == nil && old != nil:
		d.settings = append(d.settings, tomlSetting{key: key, remove: true})
	case next != nil && (old == nil || *old != *next):
		d.set(key, *next)
	}
}

// diffSettings lists the keys whose values changed between two configs, so a
// persist only rewrites what the caller actually touched.
func diffSettings(old, updated *domain.Config) []sectionSettings {
	var out []sectionSettings
	add := func(section string, d settingDiff) {
		if len(d.settings) > 0 {
			out = append(out, sectionSettings{section: section, settings: d.settings})
		}
	}

	var top settingDiff
	top.strVal("host", old.Host, updated.Host)
	top.intVal("port", old.Port, updated.Port)
	top.strVal("baseUrl", old.BaseURL, updated.BaseURL)
	top.strVal("logLevel", old.LogLevel, updated.LogLevel)
	top.strVal("logPath", old.LogPath, updated.LogPath)
	top.intVal("logMaxSize", old.LogMaxSize, updated.LogMaxSize)
	top.intVal("logMaxBackups", old.LogMaxBackups, updated.LogMaxBackups)
	top.strVal("dataDir", old.DataDir, updated.DataDir)
	top.boolVal("checkForUpdates", old.CheckForUpdates, updated.CheckForUpdates)
	top.boolVal("metricsEnabled", old.MetricsEnabled, updated.MetricsEnabled)
	top.boolVal("pprofEnabled", old.PprofEnabled, updated.PprofEnabled)
	top.strVal("pprofHost", old.PprofHost, updated.PprofHost)
	top.intVal("pprofPort", old.PprofPort, updated.PprofPort)
	top.strVal("apiKeyHash", old.APIKeyHash, updated.APIKeyHash)
	top.strSlice("corsOrigins", old.CORSOrigins, updated.CORSOrigins)
	top.strSlice("notificationUrls", old.NotificationURLs, updated.NotificationURLs)
	add("", top)

	var qbt settingDiff
	qbt.strVal("host", old.QBittorrent.Host, updated.QBittorrent.Host)
	qbt.strVal("username", old.QBittorrent.Username, updated.QBittorrent.Username)
	qbt.strVal("password", old.QBittorrent.Password, updated.QBittorrent.Password)
	qbt.strVal("basicUser", old.QBittorrent.BasicUser, updated.QBittorrent.BasicUser)
	qbt.strVal("basicPass", old.QBittorrent.BasicPass, updated.QBittorrent.BasicPass)
	qbt.boolVal("tlsSkipVerify", old.QBittorrent.TLSSkipVerify, updated.QBittorrent.TLSSkipVerify)
	add("qbittorrent", qbt)

	var limits settingDiff
	limits.floatVal("fallbackRatio", old.Limits.FallbackRatio, updated.Limits.FallbackRatio)
	limits.floatVal("fallbackDays", old.Limits.FallbackDays, updated.Limits.FallbackDays)
	limits.floatVal("privateRatio", old.Limits.PrivateRatio, updated.Limits.PrivateRatio)
	limits.floatVal("privateDays", old.Limits.PrivateDays, updated.Limits.PrivateDays)
	limits.floatVal("publicRatio", old.Limits.PublicRatio, updated.Limits.PublicRatio)
	limits.floatVal("publicDays", old.Limits.PublicDays, updated.Limits.PublicDays)
	limits.boolVal("ignoreDaemonRatioPrivate", old.Limits.IgnoreDaemonRatioPrivate, updated.Limits.IgnoreDaemonRatioPrivate)
	limits.boolVal("ignoreDaemonRatioPublic", old.Limits.IgnoreDaemonRatioPublic, updated.Limits.IgnoreDaemonRatioPublic)
	limits.boolVal("ignoreDaemonTimePrivate", old.Limits.IgnoreDaemonTimePrivate, updated.Limits.IgnoreDaemonTimePrivate)
	limits.boolVal("ignoreDaemonTimePublic", old.Limits.IgnoreDaemonTimePublic, updated.Limits.IgnoreDaemonTimePublic)
	add("limits", limits)

	var behavior settingDiff
	behavior.boolVal("deleteFiles", old.Behavior.DeleteFiles, updated.Behavior.DeleteFiles)
	behavior.boolVal("dryRun", old.Behavior.DryRun, updated.Behavior.DryRun)
	behavior.boolVal("checkPausedOnly", old.Behavior.CheckPausedOnly, updated.Behavior.CheckPausedOnly)
	behavior.boolPtr("checkPrivatePausedOnly", old.Behavior.CheckPrivatePausedOnly, updated.Behavior.CheckPrivatePausedOnly)
	behavior.boolPtr("checkPublicPausedOnly", old.Behavior.CheckPublicPausedOnly, updated.Behavior.CheckPublicPausedOnly)
	behavior.floatVal("forceDeleteHours", old.Behavior.ForceDeleteHours, updated.Behavior.ForceDeleteHours)
	behavior.floatPtr("forceDeletePrivateHours", old.Behavior.ForceDeletePrivateHours, updated.Behavior.ForceDeletePrivateHours)
	behavior.floatPtr("forceDeletePublicHours", old.Behavior.ForceDeletePublicHours, updated.Behavior.ForceDeletePublicHours)
	behavior.boolVal("cleanupStalled", old.Behavior.CleanupStalled, updated.Behavior.CleanupStalled)
	behavior.floatVal("maxStalledDays", old.Behavior.MaxStalledDays, updated.Behavior.MaxStalledDays)
	behavior.floatPtr("maxStalledPrivateDays", old.Behavior.MaxStalledPrivateDays, updated.Behavior.MaxStalledPrivateDays)
	behavior.floatPtr("maxStalledPublicDays", old.Behavior.MaxStalledPublicDays, updated.Behavior.MaxStalledPublicDays)
	behavior.boolVal("deleteUnregistered", old.Behavior.DeleteUnregistered, updated.Behavior.DeleteUnregistered)
	behavior.floatVal("maxUnregisteredHours", old.Behavior.MaxUnregisteredHours, updated.Behavior.MaxUnregisteredHours)
	behavior.strVal("protectExpr", old.Behavior.ProtectExpr, updated.Behavior.ProtectExpr)
	add("behavior", behavior)

	var schedule settingDiff
	schedule.intVal("intervalHours", old.Schedule.IntervalHours, updated.Schedule.IntervalHours)
	schedule.boolVal("runOnce", old.Schedule.RunOnce, updated.Schedule.RunOnce)
	add("schedule", schedule)

	var fileflows settingDiff
	fileflows.boolVal("enabled", old.FileFlows.Enabled, updated.FileFlows.Enabled)
	fileflows.strVal("host", old.FileFlows.Host, updated.FileFlows.Host)
	fileflows.intVal("port", old.FileFlows.Port, updated.FileFlows.Port)
	fileflows.intVal("timeout", old.FileFlows.Timeout, updated.FileFlows.Timeout)
	add("fileflows", fileflows)

	var orphans settingDiff
	orphans.boolVal("enabled", old.Orphans.Enabled, updated.Orphans.Enabled)
	orphans.strSlice("scanDirs", old.Orphans.ScanDirs, updated.Orphans.ScanDirs)
	orphans.strSlice("ignorePaths", old.Orphans.IgnorePaths, updated.Orphans.IgnorePaths)
	orphans.floatVal("minAgeHours", old.Orphans.MinAgeHours, updated.Orphans.MinAgeHours)
	orphans.intVal("intervalHours", old.Orphans.IntervalHours, updated.Orphans.IntervalHours)
	orphans.strVal("recycleDir", old.Orphans.RecycleDir, updated.Orphans.RecycleDir)
	orphans.intVal("recycleRetentionDays", old.Orphans.RecycleRetentionDays, updated.Orphans.RecycleRetentionDays)
	add("orphans", orphans)

	return out
}
