package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manekisoft/update-server/internal/config"
	"github.com/manekisoft/update-server/internal/service/server"
	"github.com/manekisoft/update-server/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// releasesDir is the release repository root override.
	releasesDir string

	// rootCmd represents the base command for running the update server.
	rootCmd = &cobra.Command{
		Use:   "update-server [listen-address]",
		Short: "Run the HTTP server distributing application updates.",
		Long: `Starts the HTTP update server that publishes release metadata and artifacts.

The server exposes the latest release, per-client update decisions with
aggregated changelogs, and integrity-verified artifact downloads.
Releases live in a directory of version subfolders, each holding the
application executable and its metadata document; a pointer file at the
repository root names the release served as latest.
Listen address can be provided as argument to override configuration
(e.g., :5000, 0.0.0.0:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				ReleasesDir:   releasesDir,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the update-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.Flags().StringVarP(&releasesDir, "releases-dir", "r", "",
		"path to the release repository (default "+config.DefaultReleasesDir+")")
}
