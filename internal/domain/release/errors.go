package release

import (
	"errors"
	"fmt"
)

// The engine surfaces every failure as one of these distinct kinds so the
// boundary layer can map them to HTTP status codes without string matching.
var (
	// ErrMalformedVersion indicates a version string that is not a dotted numeric sequence.
	ErrMalformedVersion = errors.New("malformed version")
	// ErrVersionNotFound indicates a valid version with no published release.
	ErrVersionNotFound = errors.New("version not found")
	// ErrNoLatestConfigured indicates the latest pointer file is absent.
	ErrNoLatestConfigured = errors.New("no latest version configured")
	// ErrMalformedMetadata indicates a metadata file that exists but fails validation.
	ErrMalformedMetadata = errors.New("malformed release metadata")
	// ErrArtifactNotFound indicates metadata exists but the binary is missing.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrIntegrityMismatch indicates the binary disagrees with its recorded checksum or size.
	ErrIntegrityMismatch = errors.New("artifact integrity mismatch")
	// ErrEmptyVersionSet indicates an operation over versions received none.
	ErrEmptyVersionSet = errors.New("empty version set")
	// ErrUnknownArtifactKind indicates an artifact kind outside application/installer.
	ErrUnknownArtifactKind = errors.New("unknown artifact kind")
)

// IntegrityError carries the expected and actual values of a failed
// artifact verification. It matches ErrIntegrityMismatch via errors.Is.
type IntegrityError struct {
	// Version is the release whose artifact failed verification.
	Version Version
	// Kind is the artifact kind that was verified.
	Kind ArtifactKind
	// Field names the property that disagreed ("sha256" or "size").
	Field string
	// Expected is the value recorded in the release metadata.
	Expected string
	// Actual is the value computed from the artifact bytes.
	Actual string
}

// Error renders the mismatch with both values for diagnostics.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %s of version %s: %s mismatch: expected %s, actual %s",
		ErrIntegrityMismatch, e.Kind, e.Version, e.Field, e.Expected, e.Actual)
}

// Unwrap ties the detail type to the ErrIntegrityMismatch kind.
func (e *IntegrityError) Unwrap() error {
	return ErrIntegrityMismatch
}
