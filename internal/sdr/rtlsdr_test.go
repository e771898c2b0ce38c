package sdr

import (
	"reflect"
	"testing"
)

func TestParseRTLTestOutput(t *testing.T) {
	out := `Found 2 device(s):
  0:  Realtek, RTL2838UHIDIR, SN: 00000001
  1:  Realtek, RTL2838UHIDIR, SN: rts:433

Using device 0: Generic RTL2832U OEM
`
	devs := ParseRTLTestOutput(out)
	if len(devs) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devs))
	}
	if devs[0].Index != 0 || devs[0].Serial != "00000001" {
		t.Fatalf("device0 mismatch: %+v", devs[0])
	}
	if devs[1].Index != 1 || devs[1].Serial != "rts:433" {
		t.Fatalf("device1 mismatch: %+v", devs[1])
	}
}

func TestPickDevice(t *testing.T) {
	devs := []RTLSDRDevice{{Index: 0, Serial: "00000001"}, {Index: 1, Serial: "rts:433"}}

	dev, err := PickDevice(devs, "auto")
	if err != nil || dev.Serial != "rts:433" {
		t.Fatalf("auto pick got %+v err=%v", dev, err)
	}
	dev, err = PickDevice(devs, "00000001")
	if err != nil || dev.Index != 0 {
		t.Fatalf("serial pick got %+v err=%v", dev, err)
	}
	if _, err := PickDevice(devs, "missing"); err == nil {
		t.Fatalf("expected error for unknown serial")
	}
	if _, err := PickDevice(nil, ""); err == nil {
		t.Fatalf("expected error for no devices")
	}
	dev, err = PickDevice(devs[:1], "")
	if err != nil || dev.Index != 0 {
		t.Fatalf("fallback pick got %+v err=%v", dev, err)
	}
}

func TestUpsertFlagValue(t *testing.T) {
	args := []string{"--foo", "1", "--bar=2"}
	args = UpsertFlagValue(args, "--foo", "9")
	args = UpsertFlagValue(args, "--bar", "7")
	args = UpsertFlagValue(args, "--baz", "3")

	want := []string{"--foo", "9", "--bar=7", "--baz", "3"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args=%v want %v", args, want)
	}
}

func TestBuildRTL433Args(t *testing.T) {
	got := BuildRTL433Args(nil, RTL433Options{
		Device:    ":rts:433",
		Frequency: "433.42M",
		Flex:      "n=somfy,m=OOK_PCM,s=604,l=604,t=40,r=10000,g=3000,y=2416",
	})
	want := []string{
		"-R", "0",
		"-X", "n=somfy,m=OOK_PCM,s=604,l=604,t=40,r=10000,g=3000,y=2416",
		"-d", ":rts:433",
		"-f", "433.42M",
		"-F", "json",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%v\nwant %v", got, want)
	}
}

func TestBuildRTL433Args_KeepsUserFlags(t *testing.T) {
	base := []string{"-f", "433.92M", "-F", "kv", "-d", "0"}
	got := BuildRTL433Args(base, RTL433Options{Device: "1", Frequency: "433.42M", Gain: "40"})
	want := []string{"-f", "433.92M", "-F", "kv", "-d", "1", "-R", "0", "-g", "40"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%v\nwant %v", got, want)
	}
	if base[5] != "0" {
		t.Fatalf("base args mutated: %v", base)
	}
}

func TestDeviceSelector(t *testing.T) {
	if got := DeviceSelector(nil); got != "" {
		t.Fatalf("nil device got %q", got)
	}
	if got := DeviceSelector(&RTLSDRDevice{Index: 2}); got != "2" {
		t.Fatalf("index device got %q", got)
	}
	if got := DeviceSelector(&RTLSDRDevice{Index: 2, Serial: "rts:433"}); got != ":rts:433" {
		t.Fatalf("serial device got %q", got)
	}
}

func TestHasAnyFlag(t *testing.T) {
	if !HasAnyFlag([]string{"-F=json"}, "-F") {
		t.Fatalf("expected -F=json to match")
	}
	if HasAnyFlag([]string{"-Fjson"}, "-F", "") {
		t.Fatalf("unexpected match")
	}
}

func TestDebugFormatDevices(t *testing.T) {
	if got := DebugFormatDevices(nil); got != "[]" {
		t.Fatalf("got %q", got)
	}
	got := DebugFormatDevices([]RTLSDRDevice{{Index: 0, Serial: "a"}, {Index: 3, Serial: "rts"}})
	if got != "[0:a, 3:rts]" {
		t.Fatalf("got %q", got)
	}
}
