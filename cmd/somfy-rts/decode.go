package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"somfy-rts/internal/decoder"
	"somfy-rts/internal/somfy"
)

var errNothingDecoded = errors.New("no frame decoded")

func newDecodeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "decode [codes...]",
		Short: "Decode captures given as arguments or read from stdin",
		Long: "decode treats its arguments as the rows of one capture, e.g.\n" +
			"  somfy-rts decode {1}8 {137}f0f0ff...\n" +
			"Without arguments every stdin line is one capture, in code notation or rtl_433 JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("--format must be json or text")
			}
			if len(args) > 0 {
				return decodeLines(cmd.OutOrStdout(), strings.NewReader(strings.Join(args, " ")), format)
			}
			return decodeLines(cmd.OutOrStdout(), cmd.InOrStdin(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or text")
	return cmd
}

func decodeLines(w io.Writer, r io.Reader, format string) error {
	dec := somfy.NewDecoder()
	enc := json.NewEncoder(w)

	decoded := 0
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		buf, err := decoder.ParseCaptureLine([]byte(line))
		if err != nil {
			log.Warn().Err(err).Int("line", lineNo).Msg("unparsable capture")
			continue
		}
		f, err := dec.Decode(buf)
		if err != nil {
			log.Info().Err(err).Int("line", lineNo).Msg("capture rejected")
			continue
		}
		decoded++
		if format == "text" {
			writeFields(w, f)
			continue
		}
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if decoded == 0 {
		return errNothingDecoded
	}
	return nil
}

func writeFields(w io.Writer, f somfy.Frame) {
	for _, fld := range f.Fields() {
		label := fld.Label
		if label == "" {
			label = "Model"
		}
		fmt.Fprintf(w, "%-16s %v\n", label+":", fld.Value)
	}
	fmt.Fprintln(w)
}
