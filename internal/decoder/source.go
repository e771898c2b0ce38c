package decoder

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"somfy-rts/internal/bitbuffer"
)

// Capture is one demodulated capture handed to the decode pipeline.
type Capture struct {
	At     time.Time
	Source string
	Buffer bitbuffer.Buffer
}

// Handler receives captures. It should be fast; if it can block, it should
// offload work.
type Handler func(Capture) error

// ParseCaptureLine accepts either an rtl_433 JSON event (a line starting with
// '{"') or rows in code notation ("{24}f0f0ff {137}...").
func ParseCaptureLine(line []byte) (bitbuffer.Buffer, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return bitbuffer.Buffer{}, fmt.Errorf("empty capture line")
	}
	if bytes.HasPrefix(line, []byte(`{"`)) {
		return bitbuffer.ParseFlexJSON(line)
	}
	return bitbuffer.ParseCodes(string(line))
}

// SourceSnapshot is the status view shared by all line-oriented sources.
type SourceSnapshot struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Addr        string `json:"addr"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Captures    uint64 `json:"captures"`
	Rejected    uint64 `json:"rejected"`
}

// lineState tracks connection state and counters for a line source.
type lineState struct {
	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
	count    uint64
	rejected uint64
}

func (s *lineState) setState(state string, lastErr string) {
	s.mu.Lock()
	s.state = state
	if lastErr != "" {
		s.lastErr = lastErr
	} else {
		// Clear stale errors on healthy/neutral states so status output doesn't
		// look broken after a transient startup failure.
		if state == "connected" || state == "connecting" || state == "stopped" {
			s.lastErr = ""
		}
	}
	s.mu.Unlock()
}

// deliver parses one line and hands the capture to fn. Lines that fail to
// parse are counted and recorded as the last error.
func (s *lineState) deliver(name string, line []byte, fn Handler) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	buf, err := ParseCaptureLine(line)
	if err != nil {
		s.mu.Lock()
		s.rejected++
		s.lastErr = "parse: " + err.Error()
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	if err := fn(Capture{At: now, Source: name, Buffer: buf}); err != nil {
		s.mu.Lock()
		s.lastErr = "handler: " + err.Error()
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.lastSeen = now
	s.count++
	s.mu.Unlock()
}

func (s *lineState) snapshot(name, kind, addr string) SourceSnapshot {
	s.mu.RLock()
	out := SourceSnapshot{
		Name:      name,
		Kind:      kind,
		Addr:      addr,
		State:     s.state,
		LastError: s.lastErr,
		Captures:  s.count,
		Rejected:  s.rejected,
	}
	lastSeen := s.lastSeen
	s.mu.RUnlock()
	if !lastSeen.IsZero() {
		out.LastSeenUTC = lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
