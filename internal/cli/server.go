package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screenshotsvc/internal/app"
	"screenshotsvc/internal/config"
	"screenshotsvc/internal/model"
	"screenshotsvc/internal/server"
)

func newServerCmd() *cobra.Command {
	var (
		port          int
		bind          string
		enableMetrics bool
		enableHealth  bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the screenshot service as an HTTP server",
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

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := app.New(ctx, cfg, log, enableMetrics)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			if flagConfig != "" {
				reloader := config.NewReloader(flagConfig, log)
				if err := reloader.Load(); err == nil {
					reloader.OnChange(func(newCfg *model.Config) {
						a.Dispatcher.UpdateConfig(*newCfg)
					})
					if err := reloader.Start(); err != nil {
						log.Warn("config hot-reload disabled", zap.Error(err))
					} else {
						defer reloader.Stop()
					}
				}
			}

			opts := server.Options{
				EnableMetrics:     enableMetrics,
				EnableHealth:      enableHealth,
				RequestsPerSecond: 100,
				Burst:             200,
			}
			srv := server.New(opts, a.Dispatcher, a.Pool, a.Metrics, log)

			addr := fmt.Sprintf("%s:%d", bind, port)
			httpServer := &http.Server{Addr: addr, Handler: srv.Routes()}

			errCh := make(chan error, 1)
			go func() {
				log.Info("server listening", zap.String("addr", addr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				log.Info("shutting down")
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("http server did not shut down cleanly", zap.Error(err))
			}
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	cmd.Flags().StringVar(&bind, "bind", "0.0.0.0", "listen address")
	cmd.Flags().BoolVar(&enableMetrics, "metrics", true, "expose GET /metrics")
	cmd.Flags().BoolVar(&enableHealth, "health", true, "expose GET /healthz")

	return cmd
}
