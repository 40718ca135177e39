package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/ternarybob/batchmon/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string
	Build     string
	Commit    string
	GoVersion string
	Platform  string
}

// GetBuildInfo falls back to the module version recorded by `go install`
// when no version was stamped at link time.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Build:     Build,
		Commit:    GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	return info
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s, %s %s)", b.Version, b.Build, b.Commit, b.GoVersion, b.Platform)
}

// GetVersion returns the current version string
func GetVersion() string {
	return GetBuildInfo().Version
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return GetBuildInfo().String()
}
