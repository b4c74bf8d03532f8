package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the level from the configuration file.
	logLevel string

	// rootCmd represents the base command for publishing release artifacts.
	rootCmd = &cobra.Command{
		Use:   version.Name,
		Short: "Publish build artifacts and maintain release manifests",
		Long: `Uploads installer and update artifacts to an object store and keeps the
per-platform RELEASES.json manifest consumed by auto-updating clients in sync.

All artifacts of a run are uploaded concurrently. When an installer is among them,
its version becomes the current release of its platform/arch manifest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the release-publisher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()
	if err != nil {
		logger.Logger().Error(err)
	}

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the effective log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err = applyLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLogLevel sets the logger level, giving the flag priority over the configuration.
func applyLogLevel(configured string) error {
	raw := configured
	if logLevel != "" {
		raw = logLevel
	}

	level, ok := logger.ParseLogLevel(raw)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, raw)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(publishCmd, manifestCmd)
}
