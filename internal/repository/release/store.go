package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/manekisoft/update-server/internal/config"
	domain "github.com/manekisoft/update-server/internal/domain/release"
	"github.com/manekisoft/update-server/internal/logger"
)

const (
	// LatestPointerFilename names the repository-root document declaring the latest version.
	LatestPointerFilename = "latest.json"

	// MetadataFilename names the per-version metadata document.
	MetadataFilename = "version.json"
)

// Store is a read-only view over a release repository. Implementations
// re-read repository state on every call; the store never caches and never
// mutates the repository.
type Store interface {
	// ListVersions enumerates published versions in ascending order.
	ListVersions(ctx context.Context) ([]domain.Version, error)
	// GetMetadata loads and validates one version's metadata.
	GetMetadata(ctx context.Context, v domain.Version) (*domain.Metadata, error)
	// LatestPointer reads the declared latest version.
	LatestPointer(ctx context.Context) (domain.Version, error)
	// ArtifactPath locates the artifact file for a version and kind.
	ArtifactPath(ctx context.Context, v domain.Version, kind domain.ArtifactKind) (string, error)
	// ListInstallers enumerates root-level installers, newest first.
	ListInstallers(ctx context.Context) ([]domain.Installer, error)
}

// FileStore reads a release repository laid out on the local filesystem:
//
//	<root>/latest.json
//	<root>/<prefix><version><ext>     installers
//	<root>/<version>/version.json
//	<root>/<version>/<application>    application artifact
type FileStore struct {
	// root is the repository root directory.
	root string
	// applicationFilename is the artifact filename inside each version directory.
	applicationFilename string
	// installerPrefix is the filename prefix of root-level installers.
	installerPrefix string
	// installerExtension is the filename extension of installers.
	installerExtension string
}

// NewFileStore creates a store over the given repository root. Empty naming
// parameters fall back to the ManekiTerminal defaults.
func NewFileStore(root, applicationFilename, installerPrefix, installerExtension string) *FileStore {
	if applicationFilename == "" {
		applicationFilename = config.DefaultApplicationFilename
	}

	if installerPrefix == "" {
		installerPrefix = config.DefaultInstallerPrefix
	}

	if installerExtension == "" {
		installerExtension = config.DefaultInstallerExtension
	}

	return &FileStore{
		root:                filepath.Clean(root),
		applicationFilename: applicationFilename,
		installerPrefix:     installerPrefix,
		installerExtension:  installerExtension,
	}
}

// ListVersions enumerates version directories in ascending order.
// Directories whose names fail version parsing, and directories without a
// metadata document, are logged and skipped, not fatal.
func (s *FileStore) ListVersions(ctx context.Context) ([]domain.Version, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read repository root: %w", err)
	}

	versions := make([]domain.Version, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		v, parseErr := domain.ParseVersion(entry.Name())
		if parseErr != nil {
			logger.WarnKV(ctx, "Skipping directory that is not a version", "name", entry.Name())
			continue
		}

		if _, statErr := os.Stat(s.metadataPath(v)); statErr != nil {
			logger.WarnKV(ctx, "Skipping version directory without metadata", "version", v.String())
			continue
		}

		versions = append(versions, v)
	}

	domain.SortVersionsAscending(versions)

	return versions, nil
}

// GetMetadata loads, validates, and converts one version's metadata document.
func (s *FileStore) GetMetadata(_ context.Context, v domain.Version) (*domain.Metadata, error) {
	raw, err := os.ReadFile(s.metadataPath(v))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrVersionNotFound, v)
		}

		return nil, fmt.Errorf("read metadata of %s: %w", v, err)
	}

	if err = validateDocument(raw); err != nil {
		return nil, fmt.Errorf("version %s: %w", v, err)
	}

	var doc metadataDocument
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("version %s: %w: %v", v, domain.ErrMalformedMetadata, err)
	}

	metadata, err := doc.toDomain(v, raw)
	if err != nil {
		return nil, err
	}

	return metadata, nil
}

// LatestPointer reads the declared latest version from latest.json.
func (s *FileStore) LatestPointer(_ context.Context) (domain.Version, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, LatestPointerFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Version{}, domain.ErrNoLatestConfigured
		}

		return domain.Version{}, fmt.Errorf("read latest pointer: %w", err)
	}

	var doc pointerDocument
	if err = json.Unmarshal(raw, &doc); err != nil {
		return domain.Version{}, fmt.Errorf("latest pointer: %w: %v", domain.ErrMalformedMetadata, err)
	}

	v, err := domain.ParseVersion(doc.Version)
	if err != nil {
		return domain.Version{}, fmt.Errorf("latest pointer: %w: version %q", domain.ErrMalformedMetadata, doc.Version)
	}

	return v, nil
}

// ArtifactPath locates the artifact for a version and kind, verifying the
// file exists.
func (s *FileStore) ArtifactPath(_ context.Context, v domain.Version, kind domain.ArtifactKind) (string, error) {
	var path string

	switch kind {
	case domain.ArtifactApplication:
		path = filepath.Join(s.root, v.String(), s.applicationFilename)
	case domain.ArtifactInstaller:
		path = filepath.Join(s.root, s.installerPrefix+v.String()+s.installerExtension)
	default:
		return "", domain.ErrUnknownArtifactKind
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s %s", domain.ErrArtifactNotFound, kind, v)
		}

		return "", fmt.Errorf("stat artifact of %s: %w", v, err)
	}

	return path, nil
}

// ListInstallers enumerates root-level installer files, newest version
// first. Files that do not follow the <prefix><version><ext> convention are
// logged and skipped.
func (s *FileStore) ListInstallers(ctx context.Context) ([]domain.Installer, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read repository root: %w", err)
	}

	installers := make([]domain.Installer, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, s.installerPrefix) || !strings.HasSuffix(name, s.installerExtension) {
			continue
		}

		versionText := strings.TrimSuffix(strings.TrimPrefix(name, s.installerPrefix), s.installerExtension)

		v, parseErr := domain.ParseVersion(versionText)
		if parseErr != nil {
			logger.WarnKV(ctx, "Skipping installer with unparseable version", "name", name)
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil, fmt.Errorf("stat installer %s: %w", name, infoErr)
		}

		installers = append(installers, domain.Installer{
			Version:  v,
			Filename: name,
			Size:     info.Size(),
		})
	}

	sort.Slice(installers, func(i, j int) bool {
		return installers[j].Version.Less(installers[i].Version)
	})

	return installers, nil
}

// metadataPath returns the version.json location for a version.
func (s *FileStore) metadataPath(v domain.Version) string {
	return filepath.Join(s.root, v.String(), MetadataFilename)
}
