package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/service/publisher"
)

var (
	// showPlatform selects the manifest platform.
	showPlatform string
	// showArch selects the manifest architecture.
	showArch string

	// manifestCmd groups manifest inspection commands.
	manifestCmd = &cobra.Command{
		Use:   "manifest",
		Short: "Inspect release manifests",
	}

	// manifestShowCmd prints a stored manifest.
	manifestShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the RELEASES.json of a platform/arch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			m, err := publisher.ShowManifest(ctx, cfg, showPlatform, showArch)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal manifest: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	manifestShowCmd.Flags().StringVar(&showPlatform, "platform", "", "manifest platform")
	manifestShowCmd.Flags().StringVar(&showArch, "arch", "", "manifest architecture")

	for _, name := range []string{"platform", "arch"} {
		if err := manifestShowCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	manifestCmd.AddCommand(manifestShowCmd)
}
