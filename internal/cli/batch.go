package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screenshotsvc/internal/app"
	"screenshotsvc/internal/model"
	"screenshotsvc/internal/worker"
	"screenshotsvc/pkg/utils"
)

func newBatchCmd() *cobra.Command {
	var (
		input             string
		outputDir         string
		concurrency       int
		format            string
		width, height     int64
		fullPage          bool
		waitMS            int64
		progressInterval  int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Capture every URL in an input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			outFormat := cfg.OutputFormat
			if of, ok := parseOutputFormat(format); ok {
				outFormat = of
				cfg.OutputFormat = of
			}
			if width > 0 && height > 0 {
				cfg.Viewport.Width, cfg.Viewport.Height = width, height
			}
			if concurrency > 0 {
				cfg.PoolSize = concurrency
				cfg.MaxConcurrentCaptures = concurrency
			}

			log, err := buildLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input file: %w", err)
			}
			urls, err := utils.ReadURLList(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs found in %s", input)
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			ctx := context.Background()
			a, err := app.New(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer a.Shutdown(ctx)

			pool := worker.NewPool(ctx, cfg.PoolSize, a.Dispatcher, log)
			defer pool.Close()

			tracker := worker.NewProgressTracker(len(urls))

			go func() {
				for _, u := range urls {
					req := model.Request{
						URL: u, Priority: model.PriorityNormal,
						FullPage: fullPage, WaitTime: millisToDuration(waitMS),
					}
					if err := pool.Submit(ctx, req); err != nil {
						return
					}
				}
			}()

			var ticker *time.Ticker
			var tickCh <-chan time.Time
			if progressInterval > 0 {
				ticker = time.NewTicker(time.Duration(progressInterval) * time.Second)
				tickCh = ticker.C
				defer ticker.Stop()
			}

			results := make(chan model.Result)
			go func() {
				defer close(results)
				for i := 0; i < len(urls); i++ {
					result, ok := pool.Result(ctx)
					if !ok {
						return
					}
					results <- result
				}
			}()

			ext := "." + outFormat.Extension()
			succeeded := 0
			for i := 0; i < len(urls); {
				select {
				case result, ok := <-results:
					if !ok {
						i = len(urls)
						continue
					}
					tracker.RecordCompletion(result.Success)
					i++
					if result.Success {
						succeeded++
						name := utils.FilenameFromURL(result.URL, ext)
						path := filepath.Join(outputDir, name)
						if err := os.WriteFile(path, result.ImageData, 0o644); err != nil {
							log.Error("failed to write output file", zap.String("url", result.URL), zap.Error(err))
						}
					} else {
						log.Warn("capture failed", zap.String("url", result.URL))
					}
				case <-tickCh:
					p := tracker.Progress()
					log.Info("batch progress",
						zap.Int("completed", p.Completed),
						zap.Int("total", p.Total),
						zap.Float64("rate_per_sec", p.Rate),
					)
				}
			}

			p := tracker.Progress()
			log.Info("batch complete",
				zap.Int("total", p.Total),
				zap.Int("succeeded", succeeded),
				zap.Int("failed", p.Errors),
				zap.Duration("elapsed", p.Elapsed),
			)
			if succeeded == 0 {
				return fmt.Errorf("all %d captures failed", p.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "input file, one URL per line (required)")
	cmd.Flags().StringVar(&outputDir, "output", "./screenshots", "output directory")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker pool size, overrides pool-size")
	cmd.Flags().StringVar(&format, "format", "", "png|jpeg|webp, overrides config")
	cmd.Flags().Int64Var(&width, "width", 0, "viewport width")
	cmd.Flags().Int64Var(&height, "height", 0, "viewport height")
	cmd.Flags().BoolVar(&fullPage, "full-page", false, "capture the full scrollable page")
	cmd.Flags().Int64Var(&waitMS, "wait", 0, "milliseconds to wait after load before capture")
	cmd.Flags().IntVar(&progressInterval, "progress-interval", 0, "seconds between progress log lines; 0 disables")
	cmd.MarkFlagRequired("input")

	return cmd
}
