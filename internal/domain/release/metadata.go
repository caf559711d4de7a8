package release

import "time"

// ArtifactKind distinguishes the payloads published for a release.
type ArtifactKind string

const (
	// ArtifactApplication is the application executable stored inside a version directory.
	ArtifactApplication ArtifactKind = "application"
	// ArtifactInstaller is the standalone installer stored in the repository root.
	ArtifactInstaller ArtifactKind = "installer"
)

// ParseArtifactKind validates the text form of an artifact kind.
func ParseArtifactKind(text string) (ArtifactKind, error) {
	switch ArtifactKind(text) {
	case ArtifactApplication, ArtifactInstaller:
		return ArtifactKind(text), nil
	default:
		return "", ErrUnknownArtifactKind
	}
}

// Metadata describes one published release. Instances are produced by the
// release store after full validation and are treated as immutable.
type Metadata struct {
	// Version is the release version, equal to its directory name.
	Version Version
	// Build is a monotonic build counter or timestamp for the version.
	Build int64
	// ReleaseDate is when the release was published.
	ReleaseDate time.Time
	// DownloadURL is where clients fetch the application artifact.
	DownloadURL string
	// Size is the byte count of the application artifact.
	Size int64
	// SHA256 is the lowercase hex digest of the application artifact.
	SHA256 string
	// Changelog lists human-readable entries, newest entry last.
	Changelog []string
	// Required forces any client below this version to upgrade.
	Required bool
	// MinVersion is the lowest client version this release upgrades from
	// directly. Nil when the release carries no such floor.
	MinVersion *Version
	// Fingerprint is the lowercase hex sha256 of the canonicalized metadata
	// document. The HTTP layer serves it as a strong ETag.
	Fingerprint string
}

// Clone returns a deep copy of the metadata to avoid leaking internal references.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}

	cloned := *m
	cloned.Changelog = append([]string(nil), m.Changelog...)

	if m.MinVersion != nil {
		minVersion := *m.MinVersion
		cloned.MinVersion = &minVersion
	}

	return &cloned
}

// Installer identifies a standalone installer artifact found in the
// repository root, named <prefix><version><ext>.
type Installer struct {
	// Version is parsed from the installer filename.
	Version Version
	// Filename is the artifact name inside the repository root.
	Filename string
	// Size is the byte count of the installer file.
	Size int64
}

// UpdateDecision is the outcome of an update check for one client.
type UpdateDecision struct {
	// CurrentVersion is the parsed client version, nil when absent or unparseable.
	CurrentVersion *Version
	// LatestVersion is the version named by the latest pointer.
	LatestVersion Version
	// UpdateAvailable reports whether the client is below the latest release.
	UpdateAvailable bool
	// Required reports whether any release the client must pass through demands the upgrade.
	Required bool
	// MinVersionViolated reports a client below the latest release's supported floor.
	// The client can still fetch the full artifact, so this is a flag, not an error.
	MinVersionViolated bool
	// Latest is the metadata of the latest release, set when an update is available.
	Latest *Metadata
	// Changelog aggregates entries of every release above the client's
	// version up to latest, oldest release first, stored entry order kept.
	Changelog []string
}

// Changelog is a single release's own changelog entries.
type Changelog struct {
	// Version is the release the entries belong to.
	Version Version
	// Entries are the stored changelog lines, newest entry last.
	Entries []string
	// ReleaseDate is when the release was published.
	ReleaseDate time.Time
}
