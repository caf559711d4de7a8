package version

import "fmt"

var (
	// Version is the release version of the build. It can be overridden via ldflags.
	Version = "0.0.1"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the version number.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
// The update client parses this output back out of installed executables,
// so the format is part of the compatibility surface.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
