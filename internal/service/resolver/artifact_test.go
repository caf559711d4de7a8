package resolver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/manekisoft/update-server/internal/domain/release"
	repository "github.com/manekisoft/update-server/internal/repository/release"
)

// publishRelease writes a consistent release fixture into a FileStore root.
func publishRelease(t *testing.T, root, version string, artifact []byte) {
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
		"changelog":    []string{"entry"},
		"required":     false,
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, repository.MetadataFilename), raw, 0o644))
}

// TestResolveArtifact_ServesVerifiedBytes covers the happy path including the latest keyword.
func TestResolveArtifact_ServesVerifiedBytes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	payload := []byte("application bytes")
	publishRelease(t, root, "0.0.2", payload)

	pointer, err := json.Marshal(map[string]string{"version": "0.0.2"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, repository.LatestPointerFilename), pointer, 0o644))

	svc := New(repository.NewFileStore(root, "", "", ""))
	ctx := context.Background()

	artifact, err := svc.ResolveArtifact(ctx, "0.0.2", domain.ArtifactApplication)
	require.NoError(t, err)
	require.Equal(t, "ManekiTerminal-0.0.2.exe", artifact.Filename)
	require.Equal(t, int64(len(payload)), artifact.Size)

	reader, err := artifact.Open()
	require.NoError(t, err)

	defer reader.Close()

	served, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, served))

	// The latest keyword resolves through the pointer.
	artifact, err = svc.ResolveArtifact(ctx, "latest", domain.ArtifactApplication)
	require.NoError(t, err)
	require.Equal(t, "0.0.2", artifact.Version.String())
}

// TestResolveArtifact_IntegrityMismatch refuses to serve corrupted payloads,
// even when sizes still agree.
func TestResolveArtifact_IntegrityMismatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	payload := []byte("application bytes")
	publishRelease(t, root, "0.0.2", payload)

	// Same length, different content.
	corrupted := []byte("tampered app bytes")[:len(payload)]
	require.NoError(t, os.WriteFile(filepath.Join(root, "0.0.2", "ManekiTerminal.exe"), corrupted, 0o755))

	svc := New(repository.NewFileStore(root, "", "", ""))

	_, err := svc.ResolveArtifact(context.Background(), "0.0.2", domain.ArtifactApplication)
	require.ErrorIs(t, err, domain.ErrIntegrityMismatch)

	var detail *domain.IntegrityError

	require.ErrorAs(t, err, &detail)
	require.Equal(t, "sha256", detail.Field)
	require.NotEqual(t, detail.Expected, detail.Actual)
}

// TestResolveArtifact_SizeMismatch reports size disagreement distinctly.
func TestResolveArtifact_SizeMismatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	publishRelease(t, root, "0.0.2", []byte("application bytes"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "0.0.2", "ManekiTerminal.exe"), []byte("short"), 0o755))

	svc := New(repository.NewFileStore(root, "", "", ""))

	_, err := svc.ResolveArtifact(context.Background(), "0.0.2", domain.ArtifactApplication)
	require.ErrorIs(t, err, domain.ErrIntegrityMismatch)

	var detail *domain.IntegrityError

	require.ErrorAs(t, err, &detail)
	require.Equal(t, "size", detail.Field)
}

// TestResolveArtifact_Failures covers malformed input and missing payloads.
func TestResolveArtifact_Failures(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	publishRelease(t, root, "0.0.2", []byte("application bytes"))

	svc := New(repository.NewFileStore(root, "", "", ""))
	ctx := context.Background()

	_, err := svc.ResolveArtifact(ctx, "bogus", domain.ArtifactApplication)
	require.ErrorIs(t, err, domain.ErrMalformedVersion)

	_, err = svc.ResolveArtifact(ctx, "0.0.9", domain.ArtifactApplication)
	require.ErrorIs(t, err, domain.ErrArtifactNotFound)

	_, err = svc.ResolveArtifact(ctx, "latest", domain.ArtifactApplication)
	require.ErrorIs(t, err, domain.ErrNoLatestConfigured)

	_, err = svc.ResolveArtifact(ctx, "0.0.2", domain.ArtifactInstaller)
	require.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

// TestResolveArtifact_Installer serves installers without a recorded digest.
func TestResolveArtifact_Installer(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	publishRelease(t, root, "0.0.2", []byte("application bytes"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ManekiTerminal-Setup-0.0.2.exe"), []byte("installer bytes"), 0o755))

	svc := New(repository.NewFileStore(root, "", "", ""))

	artifact, err := svc.ResolveArtifact(context.Background(), "0.0.2", domain.ArtifactInstaller)
	require.NoError(t, err)
	require.Equal(t, "ManekiTerminal-Setup-0.0.2.exe", artifact.Filename)
}

// TestVerifierDigest checks streaming digest output format.
func TestVerifierDigest(t *testing.T) {
	t.Parallel()

	verifier := NewVerifier(nil)

	digest, err := verifier.Digest(strings.NewReader("payload"))
	require.NoError(t, err)

	expected := sha256.Sum256([]byte("payload"))
	require.Equal(t, hex.EncodeToString(expected[:]), digest)
}
