// Package resolver implements the release resolution engine.
//
// The Service façade composes the repository view, the update decision
// logic, and the integrity verifier into the operations the boundary layer
// calls: get-latest, check-update, get-version, list-versions,
// get-changelog, and resolve-artifact-for-download. The engine holds no
// locks and no mutable state, so it is safe to invoke concurrently from any
// number of request handlers.
package resolver
