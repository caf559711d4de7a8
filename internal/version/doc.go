// Package version exposes build metadata for the project.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Helper functions Short and Full render the version string for CLI output and logs.
//
// The update client parses the Full output of an installed binary to detect
// its current release, so the format is part of the update contract.
package version
