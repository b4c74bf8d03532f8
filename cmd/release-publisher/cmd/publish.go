package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/service/publisher"
)

var (
	errResultsAndInline = errors.New("--results cannot be combined with artifact arguments")
	errNoInput          = errors.New("either --results or artifact arguments are required")
)

var (
	// resultsPath is the YAML file listing build results.
	resultsPath string
	// dryRun uploads into memory instead of the configured store.
	dryRun bool
	// inline describes a single build result given through flags.
	inline release.BuildResult

	// publishCmd uploads artifacts and updates manifests.
	publishCmd = &cobra.Command{
		Use:   "publish [artifact...]",
		Short: "Upload artifacts and update release manifests",
		Long: `Uploads the artifacts of one or more build results and updates the manifest of
the platform/arch whose installer finished uploading last.

Build results are read from --results, or a single one is described by flags with
the artifact paths passed as arguments.`,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			results, err := buildResults(args)
			if err != nil {
				return err
			}

			status := newStatusSink(ctx, os.Stderr)
			defer status.Close()

			report, err := publisher.Run(ctx, &publisher.Options{
				Config:  cfg,
				Results: results,
				DryRun:  dryRun,
				Status:  status.Update,
			})
			if err != nil {
				return err
			}

			status.Close()

			logger.InfoKV(ctx, "Publish finished", "uploaded", len(report.Uploaded), "manifest", report.ManifestKey)

			return nil
		},
	}
)

// buildResults returns the build results from the results file or the inline flags.
func buildResults(args []string) ([]release.BuildResult, error) {
	switch {
	case resultsPath != "" && len(args) > 0:
		return nil, errResultsAndInline
	case resultsPath != "":
		return config.LoadBuildResults(resultsPath)
	case len(args) == 0:
		return nil, errNoInput
	}

	result := inline
	result.Artifacts = args

	if err := config.FillFromPackageJSON(&result); err != nil {
		return nil, err
	}

	return []release.BuildResult{result}, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := publishCmd.Flags()
	flags.StringVarP(&resultsPath, "results", "r", "", "path to a YAML file listing build results")
	flags.BoolVar(&dryRun, "dry-run", false, "upload to an in-memory store without touching the configured one")
	flags.StringVar(&inline.Package, "package", "", "package identifier of the artifacts")
	flags.StringVar(&inline.Version, "version", "", "semantic version of the artifacts")
	flags.StringVar(&inline.Platform, "platform", "", "target platform, e.g. darwin or win32")
	flags.StringVar(&inline.Arch, "arch", "", "target architecture, e.g. x64 or arm64")
	flags.StringVar(&inline.PackageJSON, "package-json", "", "package.json providing missing package and version")
}
