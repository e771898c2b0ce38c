package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"somfy-rts/internal/sim"
	"somfy-rts/internal/somfy"
)

func newSimCmd() *cobra.Command {
	var (
		address string
		control string
		counter uint16
		repeats int
		presses int
		noNoise bool
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Print captures of a virtual remote in code notation",
		Long: "sim prints one capture per line, so its output can be piped into decode:\n" +
			"  somfy-rts sim --control up | somfy-rts decode",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := somfy.ParseControl(control)
			if err != nil {
				return err
			}
			if presses <= 0 {
				return fmt.Errorf("--presses must be > 0")
			}
			r, err := sim.NewRemote(address, counter)
			if err != nil {
				return err
			}
			r.Noise = !noNoise
			out := cmd.OutOrStdout()
			for i := 0; i < presses; i++ {
				for _, c := range r.Press(ctrl, repeats) {
					fmt.Fprintln(out, c.String())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "0A0B0C", "remote address as shown in decoded output (6 hex digits)")
	cmd.Flags().StringVar(&control, "control", "up", "button: my, up, down, my+up, my+down, up+down, prog, sun+flag, flag or a number")
	cmd.Flags().Uint16Var(&counter, "counter", 1, "rolling code of the first press")
	cmd.Flags().IntVar(&repeats, "repeats", 2, "retransmissions per press")
	cmd.Flags().IntVar(&presses, "presses", 1, "number of presses")
	cmd.Flags().BoolVar(&noNoise, "no-noise", false, "omit the short wakeup row before the first frame")
	return cmd
}
