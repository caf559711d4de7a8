package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manekisoft/update-server/internal/config"
	domain "github.com/manekisoft/update-server/internal/domain/release"
	"github.com/manekisoft/update-server/internal/logger"
	repository "github.com/manekisoft/update-server/internal/repository/release"
	"github.com/manekisoft/update-server/internal/service/resolver"
)

// Options controls the release-checker behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ReleasesDir provides an optional releases directory override.
	ReleasesDir string
	// FixVersion, when set, recomputes size and sha256 for that version
	// and rewrites its metadata instead of checking the repository.
	FixVersion string
}

// ErrChecksFailed indicates at least one release failed verification.
var ErrChecksFailed = errors.New("release checks failed")

// Run verifies every published release against its recorded metadata,
// or repairs a single release's metadata when FixVersion is set.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "release-checker")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	releasesDir := cfg.ReleasesDir
	if opts.ReleasesDir != "" {
		releasesDir = opts.ReleasesDir
	}

	store := repository.NewFileStore(releasesDir,
		cfg.ApplicationFilename,
		cfg.InstallerPrefix,
		cfg.InstallerExtension)

	if opts.FixVersion != "" {
		return fixRelease(ctx, store, releasesDir, opts.FixVersion)
	}

	return checkReleases(ctx, store)
}

// checkReleases walks every version directory, verifies the application
// artifact against its metadata, and dereferences the latest pointer.
// All problems are logged; the first pass collects everything instead of
// stopping at the first failure.
func checkReleases(ctx context.Context, store repository.Store) error {
	verifier := resolver.NewVerifier(store)

	versions, err := store.ListVersions(ctx)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}

	if len(versions) == 0 {
		logger.Warn(ctx, "No releases found in repository")
		return ErrChecksFailed
	}

	failures := 0

	for _, version := range versions {
		versionCtx := logger.WithKV(ctx, "version", version.String())

		meta, err := store.GetMetadata(versionCtx, version)
		if err != nil {
			logger.ErrorKV(versionCtx, "Metadata is unreadable", "error", err)

			failures++

			continue
		}

		if err = verifier.Verify(versionCtx, version, domain.ArtifactApplication); err != nil {
			logger.ErrorKV(versionCtx, "Verification failed", "error", err)

			failures++

			continue
		}

		logger.InfoKV(versionCtx, "Release verified",
			"build", meta.Build,
			"size", meta.Size,
			"required", meta.Required,
			"changelog_entries", len(meta.Changelog))
	}

	if err = checkLatestPointer(ctx, store); err != nil {
		logger.ErrorKV(ctx, "Latest pointer check failed", "error", err)

		failures++
	}

	if failures > 0 {
		logger.ErrorKV(ctx, "Repository has problems", "failures", failures)
		return ErrChecksFailed
	}

	logger.InfoKV(ctx, "All releases verified", "count", len(versions))

	return nil
}

// checkLatestPointer ensures the pointer exists and names a published version.
func checkLatestPointer(ctx context.Context, store repository.Store) error {
	latest, err := store.LatestPointer(ctx)
	if err != nil {
		return err
	}

	if _, err = store.GetMetadata(ctx, latest); err != nil {
		return fmt.Errorf("pointer names version %s: %w", latest, err)
	}

	logger.InfoKV(ctx, "Latest pointer is valid", "version", latest.String())

	return nil
}

// fixRelease recomputes the application artifact's size and sha256 and
// rewrites the version's metadata with the actual values. Unknown metadata
// fields survive the rewrite. When the latest pointer file carries a full
// metadata document for the same version, it is rewritten too.
func fixRelease(ctx context.Context, store repository.Store, releasesDir, versionText string) error {
	version, err := domain.ParseVersion(versionText)
	if err != nil {
		return fmt.Errorf("parse version %q: %w", versionText, err)
	}

	ctx = logger.WithKV(ctx, "version", version.String())

	artifactPath, err := store.ArtifactPath(ctx, version, domain.ArtifactApplication)
	if err != nil {
		return fmt.Errorf("locate artifact: %w", err)
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	file, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}

	digest, err := resolver.NewVerifier(store).Digest(file)

	_ = file.Close()

	if err != nil {
		return fmt.Errorf("digest artifact: %w", err)
	}

	metadataPath := filepath.Join(releasesDir, version.String(), repository.MetadataFilename)
	if err = rewriteDocument(metadataPath, info.Size(), digest); err != nil {
		return fmt.Errorf("rewrite metadata: %w", err)
	}

	logger.InfoKV(ctx, "Metadata repaired", "size", info.Size(), "sha256", digest)

	// Legacy pointer files hold a copy of the release document.
	pointerPath := filepath.Join(releasesDir, repository.LatestPointerFilename)
	if pointsAt(pointerPath, version.String()) {
		if err = rewriteDocument(pointerPath, info.Size(), digest); err != nil {
			return fmt.Errorf("rewrite latest pointer: %w", err)
		}

		logger.Info(ctx, "Latest pointer repaired")
	}

	return nil
}

// rewriteDocument patches size and sha256 in a JSON document in place,
// preserving every other field.
func rewriteDocument(path string, size int64, digest string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc map[string]any
	if err = json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	doc["size"] = size
	doc["sha256"] = digest

	updated, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, updated, config.DefaultFilePermissions)
}

// pointsAt reports whether the pointer file exists and names the version.
func pointsAt(path, version string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var doc struct {
		Version string `json:"version"`
	}

	if err = json.Unmarshal(raw, &doc); err != nil {
		return false
	}

	return doc.Version == version
}
