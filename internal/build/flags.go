// SPDX-License-Identifier: MIT
//
// Package build exposes metadata injected at link time, for example:
//
//	go build -ldflags "-X audioreact/internal/build.buildName=audioreact \
//	  -X audioreact/internal/build.buildVersion=0.1.0 ..."
//
// Development builds carry "unknown" for every field.
package build

import "fmt"

type ldFlags struct {
	Name    string // Application name
	Time    string // Build timestamp (RFC3339)
	Commit  string // Git commit hash
	Version string // Semantic version
	Uuid    string // Unique build identifier
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildUuid    string
	buildFlags   = &ldFlags{
		Name:    "unknown",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
		Uuid:    "unknown",
	}
)

// Initialize copies the ldflags variables into the build information. It
// returns an error naming the first missing flag, in which case the
// "unknown" defaults are kept.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}
	if buildUuid == "" {
		return fmt.Errorf("BuildUuid is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	buildFlags.Uuid = buildUuid

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for the version command.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, build %s)", f.Name, f.Version, f.Commit, f.Time, f.Uuid)
}
