package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manekisoft/update-server/internal/config"
	"github.com/manekisoft/update-server/internal/service/checker"
	"github.com/manekisoft/update-server/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// releasesDir is the release repository root override.
	releasesDir string
	// fixVersion names a release whose metadata should be repaired.
	fixVersion string

	// rootCmd represents the base command for auditing the release repository.
	rootCmd = &cobra.Command{
		Use:   "release-checker",
		Short: "Verify published releases against their recorded metadata.",
		Long: `Walks the release repository, recomputes the size and SHA-256 digest
of every published artifact, and compares them with the metadata served
to clients. Also validates that the latest pointer names a published
version. Exits with non-zero status when any release fails verification.

With --fix, recomputes the metadata of a single release from the artifact
actually on disk and rewrites it in place.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &checker.Options{
				ConfigPath:  configPath,
				ReleasesDir: releasesDir,
				FixVersion:  fixVersion,
			}

			return checker.Run(ctx, options)
		},
	}
)

// Execute runs the release-checker CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVar(&fixVersion, "fix", "",
		"repair the metadata of this version from the artifact on disk")
}
