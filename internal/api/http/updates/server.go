package updates

import (
	"context"
	"net/http"

	domain "github.com/manekisoft/update-server/internal/domain/release"
	"github.com/manekisoft/update-server/internal/logger"
	"github.com/manekisoft/update-server/internal/service/resolver"
	"github.com/manekisoft/update-server/internal/version"
)

// serviceName identifies this server in the health probe response.
const serviceName = "ManekiTerminal Update Server"

// Service abstracts the engine operations the transport layer depends on.
type Service interface {
	GetLatest(ctx context.Context) (*domain.Metadata, error)
	CheckUpdate(ctx context.Context, currentText string) (*domain.UpdateDecision, error)
	GetVersion(ctx context.Context, versionText string) (*domain.Metadata, error)
	ListVersions(ctx context.Context) ([]*domain.Metadata, error)
	GetChangelog(ctx context.Context, versionText string) (*domain.Changelog, error)
	ResolveArtifact(ctx context.Context, versionOrLatest string, kind domain.ArtifactKind) (*resolver.Artifact, error)
	LatestInstaller(ctx context.Context) (*domain.Installer, error)
}

// Server maps the engine operations onto the documented HTTP API.
type Server struct {
	// service provides the release resolution logic.
	service Service
}

// NewServer wires the provided engine implementation into an HTTP handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Handler builds the route table for the update and setup APIs.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/updates/latest", s.handleLatest)
	mux.HandleFunc("GET /api/updates/check", s.handleCheck)
	mux.HandleFunc("GET /api/updates/download/{version}", s.handleDownload)
	mux.HandleFunc("GET /api/updates/changelog/{version}", s.handleChangelog)
	mux.HandleFunc("GET /api/updates/versions", s.handleVersions)
	mux.HandleFunc("GET /api/setup/latest", s.handleSetupLatest)
	mux.HandleFunc("GET /api/setup/download/latest", s.handleSetupDownloadLatest)
	mux.HandleFunc("GET /api/setup/download/{version}", s.handleSetupDownload)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// handleLatest serves the metadata of the release named by the latest pointer.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	metadata, err := s.service.GetLatest(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if notModified(w, r, metadata.Fingerprint) {
		return
	}

	writeSuccess(w, http.StatusOK, metadataToPayload(metadata))
}

// handleCheck answers whether the client's version needs an update.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	decision, err := s.service.CheckUpdate(r.Context(), r.URL.Query().Get("current"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeSuccess(w, http.StatusOK, decisionToPayload(decision))
}

// handleDownload streams an application artifact after integrity verification.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, r.PathValue("version"), domain.ArtifactApplication)
}

// handleChangelog serves a single release's own changelog entries.
func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	changelog, err := s.service.GetChangelog(r.Context(), r.PathValue("version"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeSuccess(w, http.StatusOK, changelogToPayload(changelog))
}

// handleVersions lists every published release, newest first.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	listed, err := s.service.ListVersions(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	payloads := make([]metadataPayload, len(listed))
	for i, metadata := range listed {
		payloads[i] = metadataToPayload(metadata)
	}

	writeSuccess(w, http.StatusOK, versionsPayload{
		Versions: payloads,
		Count:    len(payloads),
	})
}

// handleSetupLatest describes the newest installer in the repository root.
func (s *Server) handleSetupLatest(w http.ResponseWriter, r *http.Request) {
	installer, err := s.service.LatestInstaller(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeSuccess(w, http.StatusOK, installerPayload{
		Version:     installer.Version.String(),
		Filename:    installer.Filename,
		Size:        installer.Size,
		DownloadURL: "/api/setup/download/latest",
	})
}

// handleSetupDownloadLatest streams the newest installer.
func (s *Server) handleSetupDownloadLatest(w http.ResponseWriter, r *http.Request) {
	installer, err := s.service.LatestInstaller(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	s.serveArtifact(w, r, installer.Version.String(), domain.ArtifactInstaller)
}

// handleSetupDownload streams a specific version's installer.
func (s *Server) handleSetupDownload(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, r.PathValue("version"), domain.ArtifactInstaller)
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthPayload{
		Status:  "healthy",
		Service: serviceName,
		Version: version.Short(),
	})
}

// serveArtifact resolves, verifies, and streams one payload. Integrity
// failures surface as server errors; a corrupted artifact is never served.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, versionOrLatest string, kind domain.ArtifactKind) {
	ctx := r.Context()

	artifact, err := s.service.ResolveArtifact(ctx, versionOrLatest, kind)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	reader, err := artifact.Open()
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	defer func() {
		_ = reader.Close()
	}()

	logger.InfoKV(ctx, "Serving artifact",
		"version", artifact.Version.String(), "kind", string(artifact.Kind), "size", artifact.Size)

	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	http.ServeContent(w, r, artifact.Filename, artifact.ModTime, reader)
}

// notModified handles ETag revalidation for metadata responses.
func notModified(w http.ResponseWriter, r *http.Request, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}

	etag := `"` + fingerprint + `"`
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	return false
}
