// SPDX-License-Identifier: MIT
package build

import (
	"runtime/debug"
	"testing"
)

func withBuildVars(t *testing.T, name, version, commit, tm string) {
	t.Helper()
	origName, origVersion, origCommit, origTime := buildName, buildVersion, buildCommit, buildTime
	buildName, buildVersion, buildCommit, buildTime = name, version, commit, tm
	t.Cleanup(func() {
		buildName, buildVersion, buildCommit, buildTime = origName, origVersion, origCommit, origTime
	})
}

func withBuildInfo(t *testing.T, bi *debug.BuildInfo, ok bool) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, ok }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestLoad_LdflagsWin(t *testing.T) {
	withBuildVars(t, "orbit-ci", "v0.3.0", "abcdef1234567890", "2026-01-02T03:04:05Z")
	withBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v9.9.9"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	}, true)

	info := Load()
	if info.Name != "orbit-ci" {
		t.Errorf("Name = %q, want orbit-ci", info.Name)
	}
	if info.Version != "v0.3.0" {
		t.Errorf("Version = %q, want v0.3.0", info.Version)
	}
	if info.Commit != "abcdef1234567890" {
		t.Errorf("Commit = %q", info.Commit)
	}
	if got, want := info.String(), "v0.3.0 (commit abcdef123456, built 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLoad_FallsBackToBuildInfo(t *testing.T) {
	withBuildVars(t, "", "", "", "")
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234abcd"},
			{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
		},
	}, true)

	info := Load()
	if info.Name != defaultName {
		t.Errorf("Name = %q, want %q", info.Name, defaultName)
	}
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.Commit != "1234abcd" || info.Time != "2026-10-01T00:00:00Z" {
		t.Errorf("unexpected VCS fallback: %+v", info)
	}
}

func TestLoad_NoBuildInfo(t *testing.T) {
	withBuildVars(t, "", "", "", "")
	withBuildInfo(t, nil, false)

	info := Load()
	if info.Version != "dev" || info.Commit != unknown || info.Time != unknown {
		t.Errorf("unexpected defaults: %+v", info)
	}
}
