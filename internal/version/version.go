package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the application name reported to storage backends.
const Name = "release-publisher"

//nolint:gochecknoglobals // Overridden through -ldflags "-X".
var (
	// Version is the semantic version of the build.
	Version = "0.1.0"
	// Commit is the git revision; filled from the module build info when not injected.
	Commit = ""
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version line printed by the `version` subcommand.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		Name, Version, revision(), BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// revision returns the injected commit, the VCS revision recorded by the Go
// toolchain, or "none".
func revision() string {
	if Commit != "" {
		return Commit
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return shortRevision(setting.Value)
			}
		}
	}

	return "none"
}

func shortRevision(rev string) string {
	const length = 12

	if len(rev) > length {
		return rev[:length]
	}

	return rev
}
