package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"somfy-rts/internal/logging"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "somfy-rts",
		Short: "Decode Somfy RTS remote control frames",
		Long: "somfy-rts decodes Somfy RTS frames from rtl_433 flex decoder output, " +
			"code notation rows or a live receiver.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.Init("somfy-rts", logLevel)
			return err
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newDecodeCmd(),
		newRunCmd(),
		newReplayCmd(),
		newSimCmd(),
		newFlexCmd(),
		newSummaryCmd(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("somfy-rts failed")
		cancel()
		os.Exit(1)
	}
}
