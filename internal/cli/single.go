package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screenshotsvc/internal/app"
	"screenshotsvc/internal/model"
)

func newSingleCmd() *cobra.Command {
	var (
		url      string
		output   string
		format   string
		width    int64
		height   int64
		fullPage bool
		waitMS   int64
		selector string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "single",
		Short: "Capture a single URL to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			if of, ok := parseOutputFormat(format); ok {
				cfg.OutputFormat = of
			}
			if width > 0 && height > 0 {
				cfg.Viewport.Width, cfg.Viewport.Height = width, height
			}

			log, err := buildLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := context.Background()
			a, err := app.New(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer a.Shutdown(ctx)

			req := model.Request{
				URL:             url,
				Priority:        parsePriorityFlag(priority),
				FullPage:        fullPage,
				ElementSelector: selector,
				WaitTime:        millisToDuration(waitMS),
			}

			result := a.Dispatcher.ScreenshotSingle(ctx, req)
			if !result.Success {
				errMsg := "unknown error"
				if result.Error != nil {
					errMsg = result.Error.Error()
				}
				return fmt.Errorf("capture failed: %s", errMsg)
			}

			if err := os.WriteFile(output, result.ImageData, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			log.Info("capture complete",
				zap.String("url", url),
				zap.String("output", output),
				zap.Int("bytes", len(result.ImageData)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "URL to capture (required)")
	cmd.Flags().StringVar(&output, "output", "screenshot.png", "output file path")
	cmd.Flags().StringVar(&format, "format", "", "png|jpeg|webp, overrides config")
	cmd.Flags().Int64Var(&width, "width", 0, "viewport width")
	cmd.Flags().Int64Var(&height, "height", 0, "viewport height")
	cmd.Flags().BoolVar(&fullPage, "full-page", false, "capture the full scrollable page")
	cmd.Flags().Int64Var(&waitMS, "wait", 0, "milliseconds to wait after load before capture")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector to capture instead of the full viewport")
	cmd.Flags().StringVar(&priority, "priority", "normal", "low|normal|high|critical")
	cmd.MarkFlagRequired("url")

	return cmd
}

func parseOutputFormat(s string) (model.OutputFormat, bool) {
	switch s {
	case "png":
		return model.FormatPNG, true
	case "jpeg", "jpg":
		return model.FormatJPEG, true
	case "webp":
		return model.FormatWebP, true
	default:
		return 0, false
	}
}

func parsePriorityFlag(s string) model.Priority {
	switch s {
	case "low":
		return model.PriorityLow
	case "high":
		return model.PriorityHigh
	case "critical":
		return model.PriorityCritical
	default:
		return model.PriorityNormal
	}
}
