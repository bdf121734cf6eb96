package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"screenshotsvc/internal/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file without starting the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			if err := config.Validate(*cfg); err != nil {
				return err
			}
			fmt.Printf("config valid: pool_size=%d max_concurrent=%d timeout=%s format=%s\n",
				cfg.PoolSize, cfg.MaxConcurrentCaptures, cfg.ScreenshotTimeout, cfg.OutputFormat)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}
