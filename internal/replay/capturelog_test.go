package replay

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"somfy-rts/internal/bitbuffer"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func mustCodes(t *testing.T, s string) bitbuffer.Buffer {
	t.Helper()
	buf, err := bitbuffer.ParseCodes(s)
	if err != nil {
		t.Fatalf("ParseCodes(%q): %v", s, err)
	}
	return buf
}

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# comment

START
0, {16}ffff {24}f0f0ff
10, {8}aa
`)

	recs, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if !recs[0].Start {
		t.Fatalf("expected START marker, got %+v", recs[0])
	}
	if recs[1].At != 0 || recs[1].Capture.String() != "{16}ffff {24}f0f0ff" {
		t.Fatalf("unexpected record 1: %v %s", recs[1].At, recs[1].Capture)
	}
	if recs[2].At != 10*time.Nanosecond || recs[2].Capture.String() != "{8}aa" {
		t.Fatalf("unexpected record 2: %v %s", recs[2].At, recs[2].Capture)
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	for _, in := range []string{"not-a-valid-line\n", "x,{8}aa\n", "-1,{8}aa\n", "5,\n", "5,{8}zz\n"} {
		if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	var got []string
	fs := &fakeSleeper{}

	recs := []Record{
		{At: 1 * time.Second, Start: true},
		{At: 1 * time.Second, Capture: mustCodes(t, "{8}aa")},
		{At: 1*time.Second + 100*time.Nanosecond, Capture: mustCodes(t, "{8}bb")},
		{At: 2 * time.Second, Start: true},
		{At: 2*time.Second + 50*time.Nanosecond, Capture: mustCodes(t, "{8}cc")},
	}

	err := Play(context.Background(), recs, 1.0, false, fs, func(buf bitbuffer.Buffer) error {
		got = append(got, buf.String())
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	want := []string{"{8}aa", "{8}bb", "{8}cc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("captures = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [100ns]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{At: 0, Capture: mustCodes(t, "{8}01")},
		{At: 100 * time.Nanosecond, Capture: mustCodes(t, "{8}02")},
	}

	err := Play(context.Background(), recs, 2.0, false, fs, func(bitbuffer.Buffer) error { return nil })
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [50ns]", fs.slept)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0, Capture: mustCodes(t, "{8}01")}}
	ctx := context.Background()
	if err := Play(ctx, recs, 0, false, nil, func(bitbuffer.Buffer) error { return nil }); err == nil {
		t.Fatalf("expected error for zero speed")
	}
	if err := Play(ctx, recs, 1, false, nil, nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
	if err := Play(ctx, nil, 1, false, nil, func(bitbuffer.Buffer) error { return nil }); err == nil {
		t.Fatalf("expected error for no records")
	}
}

func TestPlay_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	recs := []Record{{At: 0, Capture: mustCodes(t, "{8}01")}}
	err := Play(ctx, recs, 1, true, &fakeSleeper{}, func(bitbuffer.Buffer) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	})
	if err != context.Canceled {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d want 3", calls)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)

	if err := w.WriteCapture(time.Unix(0, 20), mustCodes(t, "{16}ffff {24}f0f0ff")); err != nil {
		t.Fatalf("WriteCapture() error: %v", err)
	}
	if err := w.WriteCapture(time.Unix(0, 20), bitbuffer.Buffer{}); err == nil {
		t.Fatalf("expected error for empty capture")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.WriteCapture(time.Unix(0, 30), mustCodes(t, "{8}aa")); err == nil {
		t.Fatalf("expected error after Close")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(b) != "START\n20,{16}ffff {24}f0f0ff\n" {
		t.Fatalf("unexpected file contents: %q", string(b))
	}

	recs, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(recs) != 2 || recs[1].Capture.String() != "{16}ffff {24}f0f0ff" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestPlay_DefaultSleeperHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	recs := []Record{
		{At: 0, Capture: mustCodes(t, "{8}01")},
		{At: time.Hour, Capture: mustCodes(t, "{8}02")},
	}
	done := make(chan error, 1)
	go func() {
		done <- Play(ctx, recs, 1, false, nil, func(bitbuffer.Buffer) error {
			cancel()
			return nil
		})
	}()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err=%v want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Play did not stop after cancel")
	}
}
