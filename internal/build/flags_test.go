// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origUuid    string
	origFlags   ldFlags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origUuid = buildUuid
	origFlags = *buildFlags

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	buildUuid = origUuid
	*buildFlags = origFlags

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		buildUuid   string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "u-1", "BuildName is required"},
		{"Missing BuildTime", "testapp", "", "abcdef123", "v1.0.0", "u-1", "BuildTime is required"},
		{"Missing BuildCommit", "testapp", "2025-04-13", "", "v1.0.0", "u-1", "BuildCommit is required"},
		{"Missing BuildVersion", "testapp", "2025-04-13", "abcdef123", "", "u-1", "BuildVersion is required"},
		{"Missing BuildUuid", "testapp", "2025-04-13", "abcdef123", "v1.0.0", "", "BuildUuid is required"},
		{"Success Case", "testapp", "2025-04-13", "abcdef123", "v1.0.0", "u-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildFlags = &ldFlags{Name: "unknown", Time: "unknown", Commit: "unknown", Version: "unknown", Uuid: "unknown"}
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer
			buildUuid = tt.buildUuid

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if buildFlags.Name != "unknown" {
					t.Errorf("failed Initialize() changed Name to %q", buildFlags.Name)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			want := ldFlags{tt.buildName, tt.buildTime, tt.buildCommit, tt.buildVer, tt.buildUuid}
			if *buildFlags != want {
				t.Errorf("buildFlags = %+v, want %+v", *buildFlags, want)
			}
		})
	}
}

func TestGetBuildFlagsString(t *testing.T) {
	buildFlags = &ldFlags{Name: "testapp", Time: "2025-04-13", Commit: "abcdef123", Version: "v1.0.0", Uuid: "u-1"}

	flags := GetBuildFlags()
	want := "testapp v1.0.0 (commit abcdef123, built 2025-04-13, build u-1)"
	if got := flags.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
