// Package release implements the read-only filesystem view over a release
// repository.
//
// The FileStore resolves the latest pointer, per-version metadata, and
// artifact locations, and exposes a Store interface the resolver service
// depends on. Metadata documents are validated in two phases: a JSON Schema
// pass over the raw bytes, then typed cross-checks (version/directory match,
// digest format, min_version parse). Every call re-reads the filesystem;
// the repository may be republished at any time between calls.
package release
