package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/betairc/internal/app"
	"github.com/vovakirdan/betairc/internal/config"
	"github.com/vovakirdan/betairc/internal/core"
	logpkg "github.com/vovakirdan/betairc/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
		noHTTP     bool
	)

	cmd := &cobra.Command{
		Use:           "betairc-server",
		Short:         "Multi-user TCP chat server",
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := logpkg.New(overrides.LogLevel)

			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				bootLog.Error().Err(err).Str("path", path).Msg("failed to load config")
				return err
			}
			cfg.UpdateFrom(overrides)
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = overrides.HTTPAddr
			}
			if noHTTP {
				cfg.HTTPAddr = ""
			}

			logger := logpkg.New(cfg.LogLevel)
			logger.Info().
				Str("config", path).
				Str("addr", cfg.ListenAddr()).
				Strs("admins", cfg.Admins).
				Msg("starting betairc server")

			application, err := app.New(cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize")
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	flags.StringVar(&overrides.Host, "host", "", "chat listen host")
	flags.IntVarP(&overrides.Port, "port", "p", 0, "chat listen port")
	flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "ops HTTP listen address")
	flags.BoolVar(&noHTTP, "no-http", false, "disable the ops HTTP server")
	flags.StringSliceVar(&overrides.Admins, "admin", nil, "admin username (repeatable)")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "path to the ban database")
	flags.DurationVar(&overrides.IdleTimeout, "idle-timeout", 0, "disconnect clients silent for this long (0 disables)")
	flags.IntVar(&overrides.MaxFramesPerMinute, "max-frames-per-minute", 0, "per-connection flood limit (0 disables)")

	return cmd
}
