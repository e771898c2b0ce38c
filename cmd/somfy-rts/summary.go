package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"somfy-rts/internal/replay"
	"somfy-rts/internal/somfy"
)

type logSummary struct {
	Segments       int
	Captures       int
	Decoded        int
	SanityFails    int
	IntegrityFails int
	MaxDuration    time.Duration
	ControlCounts  map[string]int
	AddressCounts  map[string]int
}

func summarizeCaptureLog(records []replay.Record) logSummary {
	s := logSummary{ControlCounts: map[string]int{}, AddressCounts: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasCaptures := false
	segments := 0
	dec := somfy.NewDecoder()

	for _, r := range records {
		if r.Start {
			segments++
			origin = r.At
			continue
		}
		hasCaptures = true

		s.Captures++
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxDuration {
			s.MaxDuration = at
		}

		f, err := dec.Decode(r.Capture)
		switch {
		case err == nil:
			s.Decoded++
			s.ControlCounts[f.Control]++
			s.AddressCounts[f.Address]++
		case errors.Is(err, somfy.ErrIntegrity):
			s.IntegrityFails++
		default:
			s.SanityFails++
		}
	}
	if segments == 0 && hasCaptures {
		segments = 1
	}
	s.Segments = segments

	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}

	s := summarizeCaptureLog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "captures: %d\n", s.Captures)
	fmt.Fprintf(w, "decoded: %d\n", s.Decoded)
	fmt.Fprintf(w, "sanity_fails: %d\n", s.SanityFails)
	fmt.Fprintf(w, "integrity_fails: %d\n", s.IntegrityFails)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	printCounts(w, "controls", s.ControlCounts)
	printCounts(w, "addresses", s.AddressCounts)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <log>",
		Short: "Summarize a recorded capture log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLogSummary(cmd.OutOrStdout(), args[0])
		},
	}
}
