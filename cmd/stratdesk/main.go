package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/stratdesk/internal/apiclient"
	"github.com/newthinker/stratdesk/internal/app"
	"github.com/newthinker/stratdesk/internal/config"
	"github.com/newthinker/stratdesk/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
	apiURL  string
)

var rootCmd = &cobra.Command{
	Use:   "stratdesk",
	Short: "stratdesk - client for the trading strategy backend",
	Long: `stratdesk logs in to a trading strategy backend, manages your strategies,
uploads price datasets and runs backtests against them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (overrides api.base_url)")
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withApp handles common setup and teardown: config, logger, the app and
// a context canceled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.NewWithLevel(cfg.Log.Development, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing app", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}

// needsLoginHint reports whether a failure of cmd should suggest logging in.
func needsLoginHint(cmd *cobra.Command, err error) bool {
	if cmd != nil && cmd.Name() == loginCmd.Name() {
		return false
	}
	var apiErr *apiclient.APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}

func main() {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		if needsLoginHint(cmd, err) {
			fmt.Fprintln(os.Stderr, "hint: run `stratdesk login` first")
		}
		os.Exit(1)
	}
}
