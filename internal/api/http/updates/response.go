package updates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	domain "github.com/manekisoft/update-server/internal/domain/release"
	"github.com/manekisoft/update-server/internal/logger"
)

// envelope is the wire format of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// metadataPayload is the public JSON rendering of release metadata,
// matching the stored version.json schema.
type metadataPayload struct {
	Version     string   `json:"version"`
	Build       int64    `json:"build"`
	ReleaseDate string   `json:"release_date"`
	DownloadURL string   `json:"download_url"`
	Size        int64    `json:"size"`
	SHA256      string   `json:"sha256"`
	Changelog   []string `json:"changelog"`
	Required    bool     `json:"required"`
	MinVersion  string   `json:"min_version,omitempty"`
}

// checkPayload is the update-check response body.
type checkPayload struct {
	UpdateAvailable    bool             `json:"update_available"`
	Required           bool             `json:"required"`
	MinVersionViolated bool             `json:"min_version_violated"`
	LatestVersion      string           `json:"latest_version"`
	CurrentVersion     string           `json:"current_version,omitempty"`
	Changelog          []string         `json:"changelog,omitempty"`
	Release            *metadataPayload `json:"release,omitempty"`
}

// changelogPayload is the per-version changelog response body.
type changelogPayload struct {
	Version     string   `json:"version"`
	Changelog   []string `json:"changelog"`
	ReleaseDate string   `json:"release_date"`
}

// versionsPayload is the listing response body.
type versionsPayload struct {
	Versions []metadataPayload `json:"versions"`
	Count    int               `json:"count"`
}

// installerPayload describes the newest installer.
type installerPayload struct {
	Version     string `json:"version"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// healthPayload is the liveness probe body. It is served bare, without the
// success envelope.
type healthPayload struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// metadataToPayload renders domain metadata in the public schema.
func metadataToPayload(m *domain.Metadata) metadataPayload {
	payload := metadataPayload{
		Version:     m.Version.String(),
		Build:       m.Build,
		ReleaseDate: m.ReleaseDate.Format(time.RFC3339),
		DownloadURL: m.DownloadURL,
		Size:        m.Size,
		SHA256:      m.SHA256,
		Changelog:   m.Changelog,
		Required:    m.Required,
	}

	if m.MinVersion != nil {
		payload.MinVersion = m.MinVersion.String()
	}

	return payload
}

// decisionToPayload renders an update decision in the public schema.
func decisionToPayload(d *domain.UpdateDecision) checkPayload {
	payload := checkPayload{
		UpdateAvailable:    d.UpdateAvailable,
		Required:           d.Required,
		MinVersionViolated: d.MinVersionViolated,
		LatestVersion:      d.LatestVersion.String(),
		Changelog:          d.Changelog,
	}

	if d.CurrentVersion != nil {
		payload.CurrentVersion = d.CurrentVersion.String()
	}

	if d.Latest != nil {
		release := metadataToPayload(d.Latest)
		payload.Release = &release
	}

	return payload
}

// changelogToPayload renders a single release's changelog.
func changelogToPayload(c *domain.Changelog) changelogPayload {
	return changelogPayload{
		Version:     c.Version.String(),
		Changelog:   c.Entries,
		ReleaseDate: c.ReleaseDate.Format(time.RFC3339),
	}
}

// statusForError maps every engine failure kind to its HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedVersion),
		errors.Is(err, domain.ErrUnknownArtifactKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrNoLatestConfigured),
		errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound
	default:
		// MalformedMetadata, IntegrityMismatch, and unexpected I/O failures
		// are all server-side faults.
		return http.StatusInternalServerError
	}
}

// writeError renders the failure envelope with the mapped status code.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)

	if status >= http.StatusInternalServerError {
		logger.ErrorKV(ctx, "Request failed", "error", err)
	} else {
		logger.DebugKV(ctx, "Request rejected", "error", err)
	}

	writeJSON(w, status, envelope{
		Success: false,
		Error:   err.Error(),
	})
}

// writeSuccess renders the success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{
		Success: true,
		Data:    data,
	})
}

// writeJSON serializes a body with the JSON content type.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
