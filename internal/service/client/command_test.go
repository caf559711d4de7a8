package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer serves an update check decision and one downloadable artifact.
func fakeServer(t *testing.T, check map[string]any, artifact []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/updates/check", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, check)
	})
	mux.HandleFunc("GET /api/updates/download/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(artifact)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	}))
}

func releasePayload(version string, artifact []byte) map[string]any {
	digest := sha256.Sum256(artifact)

	return map[string]any{
		"version":      version,
		"download_url": "/api/updates/download/" + version,
		"size":         len(artifact),
		"sha256":       hex.EncodeToString(digest[:]),
	}
}

func TestRun_UpToDate(t *testing.T) {
	t.Chdir(t.TempDir())

	server := fakeServer(t, map[string]any{
		"update_available": false,
		"latest_version":   "1.2.0",
	}, nil)

	err := Run(context.Background(), &Options{
		ServerURL: server.URL,
		Target:    filepath.Join(t.TempDir(), "app.bin"),
		NoRestart: true,
	})
	require.NoError(t, err)
}

func TestRun_AppliesUpdate(t *testing.T) {
	t.Chdir(t.TempDir())

	artifact := []byte("the new application body")
	target := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, os.WriteFile(target, []byte("the old application body"), 0o755))

	server := fakeServer(t, map[string]any{
		"update_available": true,
		"required":         true,
		"latest_version":   "1.2.0",
		"changelog":        []string{"B", "C"},
		"release":          releasePayload("1.2.0", artifact),
	}, artifact)

	err := Run(context.Background(), &Options{
		ServerURL: server.URL,
		Target:    target,
		NoRestart: true,
	})
	require.NoError(t, err)

	replaced, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, artifact, replaced)

	// The backup left by the swap is removed.
	_, err = os.Stat(target + ".old")
	require.ErrorIs(t, err, os.ErrNotExist)

	// The concurrency marker is removed on exit.
	_, err = os.Stat(MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_RefusesCorruptedArtifact(t *testing.T) {
	t.Chdir(t.TempDir())

	artifact := []byte("the new application body")
	oldBody := []byte("the old application body")
	target := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, os.WriteFile(target, oldBody, 0o755))

	// Announce a digest that does not match the served bytes.
	release := releasePayload("1.2.0", []byte("something else entirely!"))
	release["size"] = len(artifact)

	server := fakeServer(t, map[string]any{
		"update_available": true,
		"latest_version":   "1.2.0",
		"release":          release,
	}, artifact)

	err := Run(context.Background(), &Options{
		ServerURL: server.URL,
		Target:    target,
		NoRestart: true,
	})
	require.Error(t, err)

	// The installed executable is untouched.
	current, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, oldBody, current)
}

func TestRun_SizeMismatch(t *testing.T) {
	t.Chdir(t.TempDir())

	artifact := []byte("the new application body")
	release := releasePayload("1.2.0", artifact)
	release["size"] = len(artifact) + 10

	server := fakeServer(t, map[string]any{
		"update_available": true,
		"latest_version":   "1.2.0",
		"release":          release,
	}, artifact)

	err := Run(context.Background(), &Options{
		ServerURL: server.URL,
		Target:    filepath.Join(t.TempDir(), "app.bin"),
		NoRestart: true,
	})
	require.ErrorIs(t, err, errSizeMismatch)
}

func TestRun_AlreadyRunning(t *testing.T) {
	t.Chdir(t.TempDir())

	// A fresh marker means another client run is in progress.
	require.NoError(t, os.WriteFile(MarkerFilename, nil, 0o644))

	err := Run(context.Background(), &Options{ServerURL: "http://127.0.0.1:1"})
	require.ErrorIs(t, err, errClientAlreadyRunning)
}

func TestParseVersionFromOutput(t *testing.T) {
	t.Parallel()

	version, err := parseVersionFromOutput("version: 1.2.0, commit: abc123, built at: 2025-05-01\n")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", version)

	version, err = parseVersionFromOutput("version: 1.2.0")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", version)

	_, err = parseVersionFromOutput("some unrelated output")
	require.ErrorIs(t, err, errInvalidVersionOutput)

	_, err = parseVersionFromOutput("version: ")
	require.ErrorIs(t, err, errInvalidVersionOutput)
}
