package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bacalhau-project/contractnet/pkg/models"
)

// DevelopmentGitVersion is reported by binaries built without a release tag.
const DevelopmentGitVersion = "v0.0.0-dev"

// GITVERSION is set at build time with
// -ldflags "-X github.com/bacalhau-project/contractnet/pkg/version.GITVERSION=v1.2.3"
var GITVERSION = DevelopmentGitVersion

// Get returns the version of the running binary.
func Get() *models.BuildVersionInfo {
	info := &models.BuildVersionInfo{
		GitVersion: GITVERSION,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}

	major, rest, _ := strings.Cut(strings.TrimPrefix(GITVERSION, "v"), ".")
	minor, _, _ := strings.Cut(rest, ".")
	info.Major = major
	info.Minor = minor

	if build, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range build.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = setting.Value
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildDate = t
				}
			}
		}
	}
	return info
}
