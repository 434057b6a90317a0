// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time embedded in
// the binary. Release builds inject them with linker flags:
//
//	go build -ldflags "-X orbit/pkg/build.buildVersion=0.3.0 -X orbit/pkg/build.buildCommit=$(git rev-parse HEAD)"
//
// Development builds fall back to the module information recorded by the Go
// toolchain, so a plain `go build` still reports something useful.
package build

import (
	"fmt"
	"runtime/debug"
)

// Info holds build metadata.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

const (
	defaultName        = "orbit"
	defaultDescription = "Audio-reactive driver for the whale, astronaut and ring scene"
	unknown            = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Load resolves build metadata. Linker flags take precedence, then the
// toolchain's VCS stamps, then "unknown".
func Load() Info {
	info := Info{
		Name:        orDefault(buildName, defaultName),
		Description: defaultDescription,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}

	if bi, ok := readBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Time == "" {
					info.Time = s.Value
				}
			}
		}
	}

	info.Version = orDefault(info.Version, "dev")
	info.Commit = orDefault(info.Commit, unknown)
	info.Time = orDefault(info.Time, unknown)
	return info
}

// String renders the metadata for `--version`.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, commit, i.Time)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
