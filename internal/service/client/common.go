package client

import (
	"context"
	"crypto"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/manekisoft/update-server/internal/logger"

	// Ensure SHA256 is available for artifact verification.
	_ "crypto/sha256"
)

const (
	// MarkerFilename marks that the client is applying an update right now
	// to avoid parallel execution.
	MarkerFilename = "maneki-update-marker.bin"

	// DefaultFileMode is used for the replaced application executable.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction matches the digest recorded in release metadata.
	DefaultChecksumFunction crypto.Hash = crypto.SHA256

	// markerLifetime is the period after which a stale update marker is ignored.
	markerLifetime = 30 * time.Second

	// versionCommandTimeout is the timeout for executing version commands.
	versionCommandTimeout = 10 * time.Second
)

// IsClientRunningNow checks presence of a marker file and removes it if it looks stale.
func IsClientRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of an update marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The update marker is too old, attempting cleanup")

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Update marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read update marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// parseVersionFromOutput extracts the version number from "version: 1.0.0,
// commit: abc123, built at: ..." style output.
func parseVersionFromOutput(output string) (string, error) {
	output = strings.TrimSpace(output)
	if strings.HasPrefix(output, "version: ") {
		parts := strings.Split(output, ",")
		if len(parts) > 0 {
			version := strings.TrimSpace(strings.TrimPrefix(parts[0], "version: "))
			if version != "" {
				return version, nil
			}
		}
	}

	return "", errInvalidVersionOutput
}
