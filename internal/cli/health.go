package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"screenshotsvc/internal/app"
)

func newHealthCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Launch the browser pool briefly and report its health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			log, err := buildLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := context.Background()
			a, err := app.New(ctx, cfg, log, false)
			if err != nil {
				fmt.Println("status: unhealthy")
				return err
			}
			defer a.Shutdown(ctx)

			stats := a.Pool.Stats()
			status := "healthy"
			if stats.Healthy == 0 {
				status = "unhealthy"
			} else if stats.Failed > 0 {
				status = "degraded"
			}

			fmt.Printf("status: %s\n", status)
			fmt.Printf("instances: %d total, %d healthy, %d busy, %d failed\n",
				stats.Total, stats.Healthy, stats.Busy, stats.Failed)

			if detailed {
				fmt.Printf("pool size configured: %d\n", cfg.PoolSize)
				fmt.Printf("max concurrent captures: %d\n", cfg.MaxConcurrentCaptures)
				fmt.Printf("screenshot timeout: %s\n", cfg.ScreenshotTimeout)
				fmt.Printf("output format: %s\n", cfg.OutputFormat)
			}

			if status == "unhealthy" {
				return fmt.Errorf("no healthy browser instances")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "include configuration details in the report")
	return cmd
}
