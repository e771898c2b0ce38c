package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"somfy-rts/internal/bitbuffer"
	"somfy-rts/internal/decoder"
	"somfy-rts/internal/pipeline"
	"somfy-rts/internal/replay"
)

type nopSleeper struct{}

func (nopSleeper) Sleep(time.Duration) {}

func newReplayCmd() *cobra.Command {
	var (
		speed    float64
		realtime bool
	)
	cmd := &cobra.Command{
		Use:   "replay <log>",
		Short: "Decode a recorded capture log and print one JSON record per frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := replay.ReadFile(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			var encErr error
			p := pipeline.New(pipeline.Options{
				Logger: &log.Logger,
				OnRecord: func(r pipeline.Record) {
					if encErr == nil {
						encErr = enc.Encode(r)
					}
				},
			})

			var sleeper replay.Sleeper = nopSleeper{}
			if realtime {
				// nil selects the context-aware real sleeper.
				sleeper = nil
			}
			err = replay.Play(cmd.Context(), recs, speed, false, sleeper, func(buf bitbuffer.Buffer) error {
				_, _ = p.HandleCapture(decoder.Capture{At: time.Now(), Source: "replay", Buffer: buf})
				return encErr
			})
			if err != nil {
				return err
			}
			st := p.Stats()
			log.Info().
				Uint64("captures", st.Captures).
				Uint64("decoded", st.Decoded).
				Uint64("sanity_fails", st.SanityFails).
				Uint64("integrity_fails", st.IntegrityFails).
				Msg("replay finished")
			if st.Decoded == 0 {
				return fmt.Errorf("%w in %s", errNothingDecoded, args[0])
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed multiplier with --realtime")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "honour the recorded timing")
	return cmd
}
