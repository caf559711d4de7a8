// Package release contains the core domain types of the release
// distribution engine.
//
// It defines Version with its total ordering, Metadata describing one
// published release, the UpdateDecision produced by update checks, and the
// error taxonomy every engine operation reports. The package performs no
// I/O; reading repository state is the job of internal/repository/release.
package release
