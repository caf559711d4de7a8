package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/manekisoft/update-server/internal/domain/release"
)

// writeVersion publishes a release fixture under root with consistent
// metadata. Overrides replace individual version.json fields.
func writeVersion(t *testing.T, root, version string, artifact []byte, overrides map[string]any) {
	t.Helper()

	dir := filepath.Join(root, version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ManekiTerminal.exe"), artifact, 0o755))

	digest := sha256.Sum256(artifact)

	doc := map[string]any{
		"version":      version,
		"build":        1,
		"release_date": "2025-06-01T12:00:00Z",
		"size":         len(artifact),
		"sha256":       hex.EncodeToString(digest[:]),
		"changelog":    []string{"entry for " + version},
		"required":     false,
	}

	for key, value := range overrides {
		if value == nil {
			delete(doc, key)
			continue
		}

		doc[key] = value
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFilename), raw, 0o644))
}

// writePointer publishes a latest.json naming the given version.
func writePointer(t *testing.T, root, version string) {
	t.Helper()

	raw, err := json.Marshal(map[string]string{"version": version})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, LatestPointerFilename), raw, 0o644))
}

// TestListVersions verifies ascending order and exclusion of invalid entries.
func TestListVersions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeVersion(t, root, "0.0.10", []byte("ten"), nil)
	writeVersion(t, root, "0.0.2", []byte("two"), nil)
	writeVersion(t, root, "0.0.9", []byte("nine"), nil)

	// Not a version directory.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "archive"), 0o755))
	// Version directory without metadata.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "0.0.11"), 0o755))

	store := NewFileStore(root, "", "", "")

	versions, err := store.ListVersions(context.Background())
	require.NoError(t, err)

	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}

	require.Equal(t, []string{"0.0.2", "0.0.9", "0.0.10"}, got)
}

// TestGetMetadata covers the happy path and each failure kind.
func TestGetMetadata(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	artifact := []byte("payload")
	writeVersion(t, root, "0.0.2", artifact, map[string]any{
		"changelog":   []string{"first", "second"},
		"required":    true,
		"min_version": "0.0.1",
	})

	store := NewFileStore(root, "", "", "")
	ctx := context.Background()

	metadata, err := store.GetMetadata(ctx, domain.MustParseVersion("0.0.2"))
	require.NoError(t, err)
	require.Equal(t, "0.0.2", metadata.Version.String())
	require.Equal(t, int64(len(artifact)), metadata.Size)
	require.Equal(t, []string{"first", "second"}, metadata.Changelog)
	require.True(t, metadata.Required)
	require.NotNil(t, metadata.MinVersion)
	require.Equal(t, "0.0.1", metadata.MinVersion.String())
	require.Len(t, metadata.Fingerprint, 64)

	// Unknown version.
	_, err = store.GetMetadata(ctx, domain.MustParseVersion("9.9.9"))
	require.ErrorIs(t, err, domain.ErrVersionNotFound)

	// Missing required field.
	writeVersion(t, root, "0.0.3", artifact, map[string]any{"sha256": nil})
	_, err = store.GetMetadata(ctx, domain.MustParseVersion("0.0.3"))
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)

	// Digest with wrong length.
	writeVersion(t, root, "0.0.4", artifact, map[string]any{"sha256": "abc123"})
	_, err = store.GetMetadata(ctx, domain.MustParseVersion("0.0.4"))
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)

	// Version field disagreeing with the directory.
	writeVersion(t, root, "0.0.5", artifact, map[string]any{"version": "0.0.6"})
	_, err = store.GetMetadata(ctx, domain.MustParseVersion("0.0.5"))
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)

	// Negative size.
	writeVersion(t, root, "0.0.7", artifact, map[string]any{"size": -5})
	_, err = store.GetMetadata(ctx, domain.MustParseVersion("0.0.7"))
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)

	// Torn write: truncated document.
	dir := filepath.Join(root, "0.0.8")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFilename), []byte(`{"version": "0.0.`), 0o644))
	_, err = store.GetMetadata(ctx, domain.MustParseVersion("0.0.8"))
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)
}

// TestMetadataFingerprintStability ensures formatting does not change the fingerprint.
func TestMetadataFingerprintStability(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeVersion(t, root, "0.0.1", []byte("payload"), nil)

	store := NewFileStore(root, "", "", "")
	ctx := context.Background()

	first, err := store.GetMetadata(ctx, domain.MustParseVersion("0.0.1"))
	require.NoError(t, err)

	// Rewrite the document with different formatting but identical content.
	path := filepath.Join(root, "0.0.1", MetadataFilename)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	pretty, err := json.MarshalIndent(doc, "", "    ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, pretty, 0o644))

	second, err := store.GetMetadata(ctx, domain.MustParseVersion("0.0.1"))
	require.NoError(t, err)
	require.Equal(t, first.Fingerprint, second.Fingerprint)
}

// TestLatestPointer covers the pointer read and its failure kinds.
func TestLatestPointer(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewFileStore(root, "", "", "")
	ctx := context.Background()

	// Absent pointer, even with releases present.
	writeVersion(t, root, "0.0.1", []byte("one"), nil)
	_, err := store.LatestPointer(ctx)
	require.ErrorIs(t, err, domain.ErrNoLatestConfigured)

	writePointer(t, root, "0.0.1")

	v, err := store.LatestPointer(ctx)
	require.NoError(t, err)
	require.Equal(t, "0.0.1", v.String())

	// Malformed pointer document.
	require.NoError(t, os.WriteFile(filepath.Join(root, LatestPointerFilename), []byte(`{"version": ""}`), 0o644))
	_, err = store.LatestPointer(ctx)
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)
}

// TestArtifactPath resolves application and installer locations.
func TestArtifactPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeVersion(t, root, "0.0.2", []byte("app"), nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "ManekiTerminal-Setup-0.0.2.exe"), []byte("setup"), 0o755))

	store := NewFileStore(root, "", "", "")
	ctx := context.Background()
	v := domain.MustParseVersion("0.0.2")

	path, err := store.ArtifactPath(ctx, v, domain.ArtifactApplication)
	require.NoError(t, err)
	require.FileExists(t, path)

	path, err = store.ArtifactPath(ctx, v, domain.ArtifactInstaller)
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = store.ArtifactPath(ctx, domain.MustParseVersion("0.0.3"), domain.ArtifactApplication)
	require.ErrorIs(t, err, domain.ErrArtifactNotFound)

	_, err = store.ArtifactPath(ctx, v, domain.ArtifactKind("delta"))
	require.ErrorIs(t, err, domain.ErrUnknownArtifactKind)
}

// TestListInstallers verifies newest-first ordering and skipping of foreign files.
func TestListInstallers(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{
		"ManekiTerminal-Setup-0.0.2.exe",
		"ManekiTerminal-Setup-0.0.10.exe",
		"ManekiTerminal-Setup-draft.exe",
		"README.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}

	store := NewFileStore(root, "", "", "")

	installers, err := store.ListInstallers(context.Background())
	require.NoError(t, err)
	require.Len(t, installers, 2)
	require.Equal(t, "0.0.10", installers[0].Version.String())
	require.Equal(t, "ManekiTerminal-Setup-0.0.10.exe", installers[0].Filename)
	require.Equal(t, "0.0.2", installers[1].Version.String())
	require.Positive(t, installers[0].Size)
}
