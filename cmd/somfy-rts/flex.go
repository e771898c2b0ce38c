package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"somfy-rts/internal/sdr"
	"somfy-rts/internal/somfy"
)

func newFlexCmd() *cobra.Command {
	var (
		name   string
		args   bool
		device string
	)
	cmd := &cobra.Command{
		Use:   "flex",
		Short: "Print the rtl_433 flex decoder spec for Somfy RTS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec := somfy.RTS.FlexSpec(name)
			if !args {
				fmt.Fprintln(cmd.OutOrStdout(), spec)
				return nil
			}
			full := sdr.BuildRTL433Args(nil, sdr.RTL433Options{
				Device:     device,
				Frequency:  "433.42M",
				SampleRate: "250k",
				Flex:       spec,
			})
			fmt.Fprintln(cmd.OutOrStdout(), "rtl_433 "+strings.Join(full, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "somfy", "flex decoder name")
	cmd.Flags().BoolVar(&args, "args", false, "print a complete rtl_433 command line")
	cmd.Flags().StringVar(&device, "device", "", "rtl_433 -d selector")
	return cmd
}
