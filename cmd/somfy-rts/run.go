package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"somfy-rts/internal/config"
	"somfy-rts/internal/logging"
	"somfy-rts/internal/pipeline"
	"somfy-rts/internal/web"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live receiver, status API and outputs",
		Long: "run decodes captures from the configured sources (rtl_433, TCP, serial or a replay log) " +
			"until interrupted. Without --config rtl_433 is started with default settings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			return runLive(cmd.Context(), cfg, cmd.Flags().Changed("log-level"))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML or TOML config")
	return cmd
}

func runLive(ctx context.Context, cfg config.Config, levelFromFlag bool) error {
	logs := logging.NewLogBuffer(cfg.Log.BufferLines)
	level := cfg.Log.Level
	if levelFromFlag {
		level = log.Logger.GetLevel().String()
	}
	logger, err := logging.Init("somfy-rts", level, logs)
	if err != nil {
		return err
	}

	rt, err := pipeline.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErr := make(chan error, 1)
	if cfg.Web.Enable {
		router := web.Router(rt, logs, logger.With().Str("component", "web").Logger())
		go func() {
			logger.Info().Str("listen", cfg.Web.Listen).Msg("status api listening")
			webErr <- web.Serve(ctx, cfg.Web.Listen, router)
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- rt.Run(ctx) }()

	select {
	case err := <-runErr:
		cancel()
		return err
	case err := <-webErr:
		cancel()
		<-runErr
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
