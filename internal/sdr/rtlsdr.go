package sdr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RTLSDRDevice describes one RTL-SDR-class device as enumerated by rtl_test.
//
// The receiver never talks to SDR hardware directly; devices are only listed
// to pick the "-d" selector passed to rtl_433.
type RTLSDRDevice struct {
	Index  int
	Serial string
}

func IsAutoTag(tag string) bool {
	t := strings.TrimSpace(strings.ToLower(tag))
	return t == "" || t == "auto"
}

// DetectRTLSDRDevices enumerates RTL-SDR devices by shelling out to rtl_test.
//
// This is best-effort and intentionally permissive:
// - If rtl_test is missing or fails, an error is returned.
// - The caller should fall back to existing config/args.
func DetectRTLSDRDevices(ctx context.Context) ([]RTLSDRDevice, error) {
	// rtl_test -t blocks briefly while opening devices; keep a short timeout.
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rtl_test", "-t")
	out, err := cmd.CombinedOutput()
	if err != nil {
		// If the command exists but returns non-zero, we still might have useful output.
		if len(out) == 0 {
			return nil, fmt.Errorf("rtl_test failed: %w", err)
		}
	}

	devs := ParseRTLTestOutput(string(out))
	if len(devs) == 0 {
		return nil, fmt.Errorf("no RTL-SDR devices found")
	}
	return devs, nil
}

var (
	rtlTestLineRE = regexp.MustCompile(`(?m)^\s*(\d+):\s+.*?\bSN:\s*([^\s]+)\s*$`)
)

// ParseRTLTestOutput extracts device indices + serials from rtl_test output.
func ParseRTLTestOutput(out string) []RTLSDRDevice {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	matches := rtlTestLineRE.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return nil
	}
	devs := make([]RTLSDRDevice, 0, len(matches))
	seen := map[int]bool{}
	for _, m := range matches {
		idx, err := strconv.Atoi(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		serial := strings.TrimSpace(m[2])
		devs = append(devs, RTLSDRDevice{Index: idx, Serial: serial})
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Index < devs[j].Index })
	return devs
}

// PickDevice selects the receiver for the 433 MHz band.
//
// Heuristics:
// - An explicit serial tag must match exactly.
// - "auto" (or empty) prefers a serial containing "433", else the first device.
func PickDevice(devs []RTLSDRDevice, tag string) (*RTLSDRDevice, error) {
	if len(devs) == 0 {
		return nil, fmt.Errorf("no RTL-SDR devices")
	}
	if !IsAutoTag(tag) {
		tag = strings.TrimSpace(tag)
		for i := range devs {
			if devs[i].Serial == tag {
				return &devs[i], nil
			}
		}
		return nil, fmt.Errorf("no RTL-SDR device with serial %q in %s", tag, DebugFormatDevices(devs))
	}
	for i := range devs {
		if strings.Contains(strings.ToLower(devs[i].Serial), "433") {
			return &devs[i], nil
		}
	}
	return &devs[0], nil
}

// UpsertFlagValue ensures args contains flag set to value.
//
// Supports both "--flag value" and "--flag=value" forms.
func UpsertFlagValue(args []string, flag string, value string) []string {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return args
	}

	// First handle --flag=value.
	for i := range args {
		if strings.HasPrefix(args[i], flag+"=") {
			args[i] = flag + "=" + value
			return args
		}
	}

	// Then handle --flag value.
	for i := 0; i < len(args); i++ {
		if args[i] == flag {
			if i+1 < len(args) {
				args[i+1] = value
				return args
			}
			// Malformed; append value.
			return append(args, value)
		}
	}

	return append(args, flag, value)
}

// HasAnyFlag reports whether args contains any of the provided flags.
// It matches both "--flag" and "--flag=..." forms.
func HasAnyFlag(args []string, flags ...string) bool {
	set := map[string]struct{}{}
	for _, f := range flags {
		f = strings.TrimSpace(f)
		if f != "" {
			set[f] = struct{}{}
		}
	}
	for _, a := range args {
		if _, ok := set[a]; ok {
			return true
		}
		for f := range set {
			if strings.HasPrefix(a, f+"=") {
				return true
			}
		}
	}
	return false
}

// RTL433Options are the receiver settings rendered into rtl_433 arguments.
type RTL433Options struct {
	// Device is an rtl_433 "-d" selector: an index or ":<serial>".
	Device string
	// Frequency such as "433.42M". Somfy RTS transmits at 433.42 MHz.
	Frequency  string
	SampleRate string
	Gain       string
	// Flex is the "-X" flex decoder spec.
	Flex string
}

// BuildRTL433Args returns rtl_433 arguments that disable the built-in
// decoders, enable the flex decoder and print JSON events on stdout. Flags
// already present in base win over the defaults, except the flex spec and
// device which are always set when provided.
func BuildRTL433Args(base []string, opts RTL433Options) []string {
	args := append([]string(nil), base...)
	if !HasAnyFlag(args, "-R") {
		args = append(args, "-R", "0")
	}
	if opts.Flex != "" {
		args = UpsertFlagValue(args, "-X", opts.Flex)
	}
	if opts.Device != "" {
		args = UpsertFlagValue(args, "-d", opts.Device)
	}
	if opts.Frequency != "" && !HasAnyFlag(args, "-f") {
		args = append(args, "-f", opts.Frequency)
	}
	if opts.SampleRate != "" && !HasAnyFlag(args, "-s") {
		args = append(args, "-s", opts.SampleRate)
	}
	if opts.Gain != "" && !HasAnyFlag(args, "-g") {
		args = append(args, "-g", opts.Gain)
	}
	if !HasAnyFlag(args, "-F") {
		args = append(args, "-F", "json")
	}
	return args
}

// DeviceSelector renders a device for rtl_433 "-d": ":<serial>" when a serial
// is known, otherwise the index.
func DeviceSelector(dev *RTLSDRDevice) string {
	if dev == nil {
		return ""
	}
	serial := strings.TrimSpace(dev.Serial)
	if serial != "" && !IsAutoTag(serial) {
		return ":" + serial
	}
	return strconv.Itoa(dev.Index)
}

// DebugFormatDevices formats devices for logging.
func DebugFormatDevices(devs []RTLSDRDevice) string {
	if len(devs) == 0 {
		return "[]"
	}
	var b bytes.Buffer
	b.WriteString("[")
	for i := range devs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%d:%s", devs[i].Index, devs[i].Serial))
	}
	b.WriteString("]")
	return b.String()
}
