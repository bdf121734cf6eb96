// Package cli implements the shotpool command-line surface: batch, single,
// server, validate, and health subcommands over a shared model.Config built
// from a config file, environment variables, and command-line flags, in
// that increasing order of precedence.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"screenshotsvc/internal/config"
	"screenshotsvc/internal/model"
	"screenshotsvc/pkg/logger"
)

var (
	flagConfig        string
	flagPoolSize      int
	flagMaxConcurrent int
	flagTimeoutSec    int
	flagVerbose       bool
	flagChromePath    string
	flagLogFormat     string
	flagLogOutput     string
)

// rootCmd is the shotpool entry point.
var rootCmd = &cobra.Command{
	Use:           "shotpool",
	Short:         "Headless-browser screenshot service",
	Long:          "shotpool captures website screenshots over a pool of headless Chrome instances, as a CLI tool, a batch processor, or an HTTP service.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the command tree, returning any error for main to report.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to a YAML or JSON config file")
	pf.IntVar(&flagPoolSize, "pool-size", 0, "number of browser instances in the pool")
	pf.IntVar(&flagMaxConcurrent, "max-concurrent", 0, "maximum concurrent captures")
	pf.IntVar(&flagTimeoutSec, "timeout", 0, "per-capture timeout in seconds")
	pf.BoolVar(&flagVerbose, "verbose", false, "enable debug-level logging")
	pf.StringVar(&flagChromePath, "chrome-path", "", "path to the Chrome/Chromium executable")
	pf.StringVar(&flagLogFormat, "log-format", "console", "log format: json or console")
	pf.StringVar(&flagLogOutput, "log-output", "stdout", "log output: stdout, stderr, or a file path")

	viper.SetEnvPrefix("SCREENSHOTSVC")
	viper.AutomaticEnv()
	viper.BindPFlag("pool_size", pf.Lookup("pool-size"))
	viper.BindPFlag("max_concurrent_captures", pf.Lookup("max-concurrent"))
	viper.BindPFlag("chrome_path", pf.Lookup("chrome-path"))

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newSingleCmd())
	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newHealthCmd())
}

// buildConfig resolves a model.Config from (in increasing precedence) the
// built-in defaults, an optional --config file, SCREENSHOTSVC_ environment
// variables, and any explicitly-set global flags.
func buildConfig(cmd *cobra.Command) (model.Config, error) {
	var cfg model.Config
	if flagConfig != "" {
		loaded, err := config.LoadFromFile(flagConfig)
		if err != nil {
			return model.Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	} else {
		cfg = model.DefaultConfig()
	}

	config.LoadFromEnv(&cfg)

	// viper resolves pool-size/max-concurrent/chrome-path across flag, then
	// SCREENSHOTSVC_-prefixed env var, falling back to whatever the config
	// file (or LoadFromEnv above) already set.
	if viper.IsSet("pool_size") {
		cfg.PoolSize = viper.GetInt("pool_size")
	}
	if viper.IsSet("max_concurrent_captures") {
		cfg.MaxConcurrentCaptures = viper.GetInt("max_concurrent_captures")
	}
	if viper.IsSet("chrome_path") {
		cfg.ChromePath = viper.GetString("chrome_path")
	}

	if cmd.Flags().Changed("timeout") {
		cfg.ScreenshotTimeout = time.Duration(flagTimeoutSec) * time.Second
	}

	if err := config.Validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// buildLogger constructs the structured logger from the global log flags.
func buildLogger() (*logger.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Format = flagLogFormat
	lc.Output = flagLogOutput
	if flagVerbose {
		lc.Level = "debug"
	}
	return logger.New(lc)
}
