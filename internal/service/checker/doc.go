// Package checker audits the release repository: it verifies every
// published artifact against its recorded size and digest, validates the
// latest pointer, and can repair a release's metadata from the artifact
// actually on disk.
package checker
