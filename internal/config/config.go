package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the update-server binaries.
type Config struct {
	// ListenAddress is the host:port the HTTP API binds to.
	ListenAddress string `yaml:"listen_addr" env:"UPDATE_SERVER_LISTEN_ADDR"`
	// ReleasesDir is the root directory of the release repository.
	ReleasesDir string `yaml:"releases_dir" env:"UPDATE_SERVER_RELEASES_DIR"`
	// ServerURL is the base URL of a running update server.
	// It is used by the update client and the release checker, not by the server itself.
	ServerURL string `yaml:"server_url" env:"UPDATE_SERVER_URL"`
	// LogLevel is the minimum level for log output (debug, info, warn, error).
	LogLevel string `yaml:"log_level" env:"UPDATE_SERVER_LOG_LEVEL"`
	// Timeout is the duration for network operations performed by the clients.
	Timeout time.Duration `yaml:"timeout" env:"UPDATE_SERVER_TIMEOUT"`
	// ApplicationFilename is the artifact filename inside each version directory.
	ApplicationFilename string `yaml:"application_filename" env:"UPDATE_SERVER_APPLICATION_FILENAME"`
	// InstallerPrefix is the filename prefix of root-level installer artifacts.
	InstallerPrefix string `yaml:"installer_prefix" env:"UPDATE_SERVER_INSTALLER_PREFIX"`
	// InstallerExtension is the filename extension of installer artifacts.
	InstallerExtension string `yaml:"installer_ext" env:"UPDATE_SERVER_INSTALLER_EXT"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "update-server-settings.yaml"

	// DefaultListenAddress matches the port the original deployment exposed.
	DefaultListenAddress = "0.0.0.0:5000"

	// DefaultReleasesDir is the default release repository root.
	DefaultReleasesDir = "releases"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultApplicationFilename is the application artifact stored per version.
	DefaultApplicationFilename = "ManekiTerminal.exe"

	// DefaultInstallerPrefix identifies installer artifacts in the repository root.
	DefaultInstallerPrefix = "ManekiTerminal-Setup-"

	// DefaultInstallerExtension is appended to installer filenames.
	DefaultInstallerExtension = ".exe"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Load reads configuration from the provided path, applies environment
// overrides, and validates essential fields.
//
// A missing file at the default path is not an error: the server can run
// entirely from defaults and UPDATE_SERVER_* environment variables.
func Load(path string) (*Config, error) {
	usingDefaultPath := path == ""
	if usingDefaultPath {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && usingDefaultPath:
		// Fall through to defaults.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for everything left unset.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.ReleasesDir == "" {
		cfg.ReleasesDir = DefaultReleasesDir
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ApplicationFilename == "" {
		cfg.ApplicationFilename = DefaultApplicationFilename
	}

	if cfg.InstallerPrefix == "" {
		cfg.InstallerPrefix = DefaultInstallerPrefix
	}

	if cfg.InstallerExtension == "" {
		cfg.InstallerExtension = DefaultInstallerExtension
	}

	if cfg.ServerURL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	return nil
}
