package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vovakirdan/lobby-server/internal/app"
	"github.com/vovakirdan/lobby-server/internal/config"
	applog "github.com/vovakirdan/lobby-server/internal/log"
)

const releaseVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "lobby-server",
		Short:         "Session lobby: short join codes, live membership over websockets.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := applog.New("info", "console")

			cfg, resolvedPath, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)
			if cmd.Flags().Changed("db") {
				// Allow an explicit empty value to turn the directory off.
				cfg.DatabasePath = overrides.DatabasePath
			}

			logger := applog.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", resolvedPath).Str("version", releaseVersion).Msg("configuration loaded")

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&configPath, "config", "c", "", "path to config file (default: $LOBBY_CONFIG_DEFAULT_PATH/config.yaml, else ./config.yaml)")
	fs.StringVarP(&overrides.Addr, "addr", "a", "", "HTTP listen address (env: LOBBY_ADDR)")
	fs.StringVar(&overrides.LogLevel, "log-level", "", "debug, info, warn or error (env: LOBBY_LOG_LEVEL)")
	fs.StringVar(&overrides.LogFormat, "log-format", "", "console or json (env: LOBBY_LOG_FORMAT)")
	fs.StringVar(&overrides.DatabasePath, "db", "", "sqlite path for remembered display names, empty to disable (env: LOBBY_DATABASE_PATH)")
	fs.IntVar(&overrides.CodeLength, "code-length", 0, "length of generated session codes (env: LOBBY_CODE_LENGTH)")
	fs.DurationVar(&overrides.SessionTTL, "session-ttl", 0, "evict sessions idle this long with nobody connected (env: LOBBY_SESSION_TTL)")
	fs.StringVar(&overrides.PublicURL, "public-url", "", "base URL encoded in share QR codes (env: LOBBY_PUBLIC_URL)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("lobby-server v{{.Version}}\n")

	return cmd
}
