package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/manekisoft/update-server/internal/domain/release"
	repository "github.com/manekisoft/update-server/internal/repository/release"
)

// LatestKeyword resolves to the version named by the latest pointer in
// artifact downloads.
const LatestKeyword = "latest"

// downloadURLFormat is where clients fetch a version's application artifact.
// Generated when the stored metadata leaves download_url blank.
const downloadURLFormat = "/api/updates/download/%s"

// Service is the release resolution engine: the façade the boundary layer
// calls. It is stateless; all state lives in the repository, which is
// re-read on every operation.
type Service struct {
	// store is the read-only repository view.
	store repository.Store
	// verifier checks artifact integrity at resolution time.
	verifier *Verifier
}

// New wires the engine over the provided store.
func New(store repository.Store) *Service {
	return &Service{
		store:    store,
		verifier: NewVerifier(store),
	}
}

// Verifier exposes the integrity verifier for tooling that checks whole
// repositories (the release-checker CLI).
func (s *Service) Verifier() *Verifier {
	return s.verifier
}

// GetLatest returns the metadata of the release named by the latest pointer.
// A pointer naming a version with no metadata is a store-consistency failure
// and propagates as ErrVersionNotFound, never silently substituted with the
// numeric maximum.
func (s *Service) GetLatest(ctx context.Context) (*domain.Metadata, error) {
	v, err := s.store.LatestPointer(ctx)
	if err != nil {
		return nil, err
	}

	return s.metadataWithDownloadURL(ctx, v)
}

// GetVersion returns one release's metadata.
func (s *Service) GetVersion(ctx context.Context, versionText string) (*domain.Metadata, error) {
	v, err := domain.ParseVersion(strings.TrimSpace(versionText))
	if err != nil {
		return nil, err
	}

	return s.metadataWithDownloadURL(ctx, v)
}

// ListVersions returns metadata for every published release, newest first.
// Internal enumeration is ascending; the public listing reverses it for
// display.
func (s *Service) ListVersions(ctx context.Context) ([]*domain.Metadata, error) {
	versions, err := s.store.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	listed := make([]*domain.Metadata, 0, len(versions))

	for i := len(versions) - 1; i >= 0; i-- {
		metadata, metadataErr := s.metadataWithDownloadURL(ctx, versions[i])
		if metadataErr != nil {
			return nil, metadataErr
		}

		listed = append(listed, metadata)
	}

	return listed, nil
}

// GetChangelog returns a single release's own changelog entries.
func (s *Service) GetChangelog(ctx context.Context, versionText string) (*domain.Changelog, error) {
	metadata, err := s.GetVersion(ctx, versionText)
	if err != nil {
		return nil, err
	}

	return &domain.Changelog{
		Version:     metadata.Version,
		Entries:     metadata.Changelog,
		ReleaseDate: metadata.ReleaseDate,
	}, nil
}

// Artifact is an integrity-verified handle to a stored payload, ready for
// the boundary layer to stream.
type Artifact struct {
	// Version is the release the artifact belongs to.
	Version domain.Version
	// Kind is the artifact kind that was resolved.
	Kind domain.ArtifactKind
	// Filename is the suggested download name.
	Filename string
	// Path is the artifact location on disk.
	Path string
	// Size is the artifact byte count.
	Size int64
	// ModTime is the artifact modification time, used for cache headers.
	ModTime time.Time
}

// Open returns a fresh read handle on the artifact bytes.
func (a *Artifact) Open() (io.ReadSeekCloser, error) {
	file, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	return file, nil
}

// ResolveArtifact locates the payload for a version (or the "latest"
// keyword) and verifies its integrity before handing it out. A corrupted
// artifact is never served.
func (s *Service) ResolveArtifact(ctx context.Context, versionOrLatest string, kind domain.ArtifactKind) (*Artifact, error) {
	var (
		v   domain.Version
		err error
	)

	if strings.EqualFold(strings.TrimSpace(versionOrLatest), LatestKeyword) {
		v, err = s.store.LatestPointer(ctx)
	} else {
		v, err = domain.ParseVersion(strings.TrimSpace(versionOrLatest))
	}

	if err != nil {
		return nil, err
	}

	if err = s.verifier.Verify(ctx, v, kind); err != nil {
		return nil, err
	}

	path, err := s.store.ArtifactPath(ctx, v, kind)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact of %s: %w", v, err)
	}

	return &Artifact{
		Version:  v,
		Kind:     kind,
		Filename: downloadFilename(path, v, kind),
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// LatestInstaller returns the newest installer found in the repository
// root. This operation is filename-driven, independent of the latest
// pointer, mirroring how installers are published.
func (s *Service) LatestInstaller(ctx context.Context) (*domain.Installer, error) {
	installers, err := s.store.ListInstallers(ctx)
	if err != nil {
		return nil, err
	}

	if len(installers) == 0 {
		return nil, fmt.Errorf("%w: no installers published", domain.ErrArtifactNotFound)
	}

	newest := installers[0]

	return &newest, nil
}

// metadataWithDownloadURL loads metadata and generates the download URL when
// the stored document leaves it blank.
func (s *Service) metadataWithDownloadURL(ctx context.Context, v domain.Version) (*domain.Metadata, error) {
	metadata, err := s.store.GetMetadata(ctx, v)
	if err != nil {
		return nil, err
	}

	if metadata.DownloadURL == "" {
		metadata.DownloadURL = fmt.Sprintf(downloadURLFormat, metadata.Version)
	}

	return metadata, nil
}

// downloadFilename derives the attachment name offered to clients:
// applications become <base>-<version><ext>, installers keep their stored name.
func downloadFilename(path string, v domain.Version, kind domain.ArtifactKind) string {
	base := filepath.Base(path)
	if kind != domain.ArtifactApplication {
		return base
	}

	ext := filepath.Ext(base)

	return strings.TrimSuffix(base, ext) + "-" + v.String() + ext
}
