package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/manekisoft/update-server/internal/api/http/updates"
	"github.com/manekisoft/update-server/internal/config"
	"github.com/manekisoft/update-server/internal/logger"
	repository "github.com/manekisoft/update-server/internal/repository/release"
	"github.com/manekisoft/update-server/internal/service/resolver"
)

// Options controls the update-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// ReleasesDir provides an optional releases directory override.
	ReleasesDir string
}

// shutdownTimeout bounds how long in-flight downloads may finish
// before the server gives up on graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Run starts the HTTP server and blocks until context is canceled or the server stops.
// Loads configuration first, then determines listen address and releases root
// from config or the command line overrides.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "update-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Command line options win over the settings file.
	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	releasesDir := settings.ReleasesDir
	if opts.ReleasesDir != "" {
		releasesDir = opts.ReleasesDir
	}

	// Initialize the release repository and the resolution service over it.
	store := repository.NewFileStore(releasesDir,
		settings.ApplicationFilename,
		settings.InstallerPrefix,
		settings.InstallerExtension)

	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           updates.NewServer(resolver.New(store)).Handler(),
		ReadHeaderTimeout: settings.Timeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.InfoKV(ctx, "Update server listening",
		"listen_address", listenAddress,
		"releases_dir", releasesDir)

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "Graceful shutdown failed", "error", err)
		}

		close(done)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}
