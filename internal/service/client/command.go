package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/manekisoft/update-server/internal/config"
	"github.com/manekisoft/update-server/internal/logger"
)

var (
	errClientAlreadyRunning = errors.New("the update client is already running")
	errBadHTTPStatus        = errors.New("unexpected http status")
	errServerRejected       = errors.New("server rejected the request")
	errNoReleaseInResponse  = errors.New("update response carries no release")
	errSizeMismatch         = errors.New("downloaded size does not match metadata")
	errInvalidVersionOutput = errors.New("invalid version output format")
)

// Options are inputs accepted by the update client entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// ServerURL provides an optional update server base URL override.
	ServerURL string
	// Target is the path to the application executable to update.
	// Defaults to the configured application filename in the working directory.
	Target string
	// Force applies the latest release even when the server reports
	// the local version as current.
	Force bool
	// NoRestart suppresses relaunching the application after the update.
	NoRestart bool
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// releaseInfo is the subset of release metadata the client acts on.
type releaseInfo struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// updateCheck mirrors the server's update check payload.
type updateCheck struct {
	UpdateAvailable    bool         `json:"update_available"`
	Required           bool         `json:"required"`
	MinVersionViolated bool         `json:"min_version_violated"`
	LatestVersion      string       `json:"latest_version"`
	Changelog          []string     `json:"changelog"`
	Release            *releaseInfo `json:"release"`
}

// runner holds the mutable state for a single update execution.
// It is intentionally unexported, call Run(ctx, opts) from callers.
type runner struct {
	cfg          *config.Config
	httpClient   *http.Client
	serverURL    string
	target       string
	localVersion string
}

// Run executes the update client lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "update-client")

	u, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer u.cleanup(ctx)

	if err = u.run(ctx, opts); err != nil {
		logger.ErrorKV(ctx, "Update run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Update client completed")

	return nil
}

// newRunner prepares the run and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	u := &runner{}

	if IsClientRunningNow(ctx) {
		return u, errClientAlreadyRunning
	}

	updateMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return u, err
	}

	if err = updateMarker.Close(); err != nil {
		return u, err
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return u, err
	}

	u.cfg = settings
	u.httpClient = &http.Client{Timeout: settings.Timeout}

	u.serverURL = settings.ServerURL
	if opts.ServerURL != "" {
		u.serverURL = opts.ServerURL
	}

	u.target = settings.ApplicationFilename
	if opts.Target != "" {
		u.target = opts.Target
	}

	return u, nil
}

// run executes the workflow for this runner instance:
// 1) Detect the local version from the installed executable.
// 2) Ask the server whether an update is available.
// 3) Download the latest artifact and verify its digest.
// 4) Stop running application processes.
// 5) Apply the new executable in place.
// 6) Relaunch the application.
func (u *runner) run(ctx context.Context, opts *Options) error {
	logger.Info(ctx, "Detecting local version from installed executable")

	u.localVersion = u.detectLocalVersion(ctx)

	logger.Info(ctx, "Requesting update decision from the server")

	check, err := u.checkForUpdate(ctx)
	if err != nil {
		return fmt.Errorf("check for update: %w", err)
	}

	if !check.UpdateAvailable && !opts.Force {
		logger.InfoKV(ctx, "Application is up to date", "version", check.LatestVersion)
		return nil
	}

	u.logDecision(ctx, check)

	if check.Release == nil {
		// A forced run against an up-to-date client has no release payload,
		// fetch the latest release explicitly.
		if check.Release, err = u.fetchLatestRelease(ctx); err != nil {
			return fmt.Errorf("fetch latest release: %w", err)
		}
	}

	logger.InfoKV(ctx, "Downloading artifact", "version", check.Release.Version)

	data, err := u.downloadArtifact(ctx, check.Release)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	logger.Info(ctx, "Terminating application processes")

	if err = terminateProcessByName(filepath.Base(u.target)); err != nil {
		return fmt.Errorf("terminate application: %w", err)
	}

	logger.Info(ctx, "Applying update")

	if err = u.applyUpdate(check.Release, data); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	if opts.NoRestart {
		return nil
	}

	logger.Info(ctx, "Relaunching application")

	if err = startExecutable(ctx, u.target); err != nil {
		return fmt.Errorf("relaunch application: %w", err)
	}

	return nil
}

// logDecision reports why an update is going to be applied.
func (u *runner) logDecision(ctx context.Context, check *updateCheck) {
	if check.MinVersionViolated {
		logger.WarnKV(ctx, "Installed version is below the supported minimum",
			"local", u.localVersion)
	}

	if check.Required {
		logger.InfoKV(ctx, "Update is mandatory", "latest", check.LatestVersion)
	} else {
		logger.InfoKV(ctx, "Update is available", "latest", check.LatestVersion)
	}

	for _, entry := range check.Changelog {
		logger.InfoKV(ctx, "Changelog", "entry", entry)
	}
}

// detectLocalVersion runs the installed executable to get the current version.
// An empty result is not an error, it might be a first install.
func (u *runner) detectLocalVersion(ctx context.Context) string {
	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, u.target, "version")

	output, err := cmd.Output()
	if err != nil {
		logger.Warnf(ctx, "Could not get local version from %s: %v", u.target, err)
		return ""
	}

	version, err := parseVersionFromOutput(string(output))
	if err != nil {
		logger.Warnf(ctx, "Could not parse version output from %s: %v", u.target, err)
		return ""
	}

	return version
}

// checkForUpdate asks the server whether the local version is current.
func (u *runner) checkForUpdate(ctx context.Context) (*updateCheck, error) {
	endpoint, err := u.apiURL("/api/updates/check")
	if err != nil {
		return nil, err
	}

	if u.localVersion != "" {
		endpoint += "?current=" + url.QueryEscape(u.localVersion)
	}

	var check updateCheck
	if err = u.getJSON(ctx, endpoint, &check); err != nil {
		return nil, err
	}

	return &check, nil
}

// fetchLatestRelease retrieves the latest release metadata directly.
func (u *runner) fetchLatestRelease(ctx context.Context) (*releaseInfo, error) {
	endpoint, err := u.apiURL("/api/updates/latest")
	if err != nil {
		return nil, err
	}

	var release releaseInfo
	if err = u.getJSON(ctx, endpoint, &release); err != nil {
		return nil, err
	}

	if release.DownloadURL == "" {
		return nil, errNoReleaseInResponse
	}

	return &release, nil
}

// downloadArtifact fetches the release binary and checks its recorded size.
// The digest is validated during apply.
func (u *runner) downloadArtifact(ctx context.Context, release *releaseInfo) ([]byte, error) {
	endpoint, err := u.apiURL(release.DownloadURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", endpoint, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if int64(len(data)) != release.Size {
		return nil, fmt.Errorf("got %d bytes, expected %d: %w", len(data), release.Size, errSizeMismatch)
	}

	return data, nil
}

// applyUpdate replaces the target executable, verifying the artifact digest.
func (u *runner) applyUpdate(release *releaseInfo, data []byte) error {
	checksum, err := hex.DecodeString(release.SHA256)
	if err != nil {
		return fmt.Errorf("decode recorded digest: %w", err)
	}

	if _, err = os.Stat(u.target); err != nil && os.IsNotExist(err) {
		if _, err = os.Create(u.target); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: u.target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := u.target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// getJSON performs a GET request and decodes the data field of the envelope.
func (u *runner) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}

	response, err := u.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	var wrapper envelope
	if err = json.Unmarshal(body, &wrapper); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}

	if !wrapper.Success {
		return fmt.Errorf("%s: %s: %w", endpoint, wrapper.Error, errServerRejected)
	}

	return json.Unmarshal(wrapper.Data, out)
}

// apiURL joins an API path onto the configured server base URL.
func (u *runner) apiURL(apiPath string) (string, error) {
	base, err := url.Parse(u.serverURL)
	if err != nil {
		return "", err
	}

	// path.Join normalizes duplicate slashes when composing the URL path.
	base.Path = path.Join(base.Path, apiPath)

	return base.String(), nil
}

// startExecutable launches the application the way the platform expects.
func startExecutable(ctx context.Context, executable string) error {
	osLC := strings.ToLower(runtime.GOOS)
	if strings.Contains(osLC, "windows") {
		return exec.CommandContext(ctx, "cmd.exe", "/C", "start", executable).Start()
	}

	return exec.CommandContext(ctx, executable).Start()
}

// cleanup removes the running marker.
func (u *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Info(ctx, "The update client has been stopped")
}
