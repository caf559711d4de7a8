package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manekisoft/update-server/internal/config"
	"github.com/manekisoft/update-server/internal/service/client"
	"github.com/manekisoft/update-server/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverURL is the update server base URL override.
	serverURL string
	// target is the path to the application executable to update.
	target string
	// force applies the latest release even when already current.
	force bool
	// noRestart suppresses relaunching the application after the update.
	noRestart bool

	// rootCmd represents the base command for the self-update client.
	rootCmd = &cobra.Command{
		Use:   "update-client",
		Short: "Update the installed application from the update server.",
		Long: `Checks the update server for a newer application release, downloads it,
verifies the artifact against the digest recorded in release metadata,
and swaps the installed executable in place.

The local version is detected by running the installed executable with
the version argument. When detection fails, the client treats the
installation as fresh and applies the latest release.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &client.Options{
				ConfigPath: configPath,
				ServerURL:  serverURL,
				Target:     target,
				Force:      force,
				NoRestart:  noRestart,
			}

			return client.Run(ctx, options)
		},
	}
)

// Execute runs the update-client CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "",
		"update server base URL")
	rootCmd.Flags().StringVarP(&target, "target", "t", "",
		"path to the application executable (default "+config.DefaultApplicationFilename+")")
	rootCmd.Flags().BoolVar(&force, "force", false,
		"apply the latest release even when already current")
	rootCmd.Flags().BoolVar(&noRestart, "no-restart", false,
		"do not relaunch the application after updating")
}
