package decoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// SupervisorConfig describes an external demodulator process, typically
// rtl_433 with a flex decoder and JSON output on stdout.
type SupervisorConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	WorkDir string

	Restart bool

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	StdoutTailLines int
	StderrTailLines int

	// MaxLineBytes limits any single line stored in the tail buffers.
	// If 0, defaults to 16 KiB.
	MaxLineBytes int
}

type Supervisor struct {
	cfg SupervisorConfig

	started atomic.Bool
	closed  atomic.Bool

	mu      sync.RWMutex
	pid     int
	state   string
	lastErr string
	starts  int

	lines lineState

	stdout *tailBuffer
	stderr *tailBuffer

	cancel context.CancelFunc
	done   chan struct{}
}

type Snapshot struct {
	Name      string         `json:"name"`
	Command   string         `json:"command"`
	Running   bool           `json:"running"`
	PID       int            `json:"pid,omitempty"`
	State     string         `json:"state"`
	Starts    int            `json:"starts"`
	LastError string         `json:"last_error,omitempty"`
	Captures  SourceSnapshot `json:"captures"`
	Lines     uint64         `json:"stdout_lines"`
	Stdout    []string       `json:"stdout_tail,omitempty"`
	Stderr    []string       `json:"stderr_tail,omitempty"`
}

func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Command = strings.TrimSpace(cfg.Command)
	if cfg.Name == "" {
		return nil, fmt.Errorf("decoder supervisor name is required")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("decoder supervisor command is required")
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.StdoutTailLines <= 0 {
		cfg.StdoutTailLines = 20
	}
	if cfg.StderrTailLines <= 0 {
		cfg.StderrTailLines = 200
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 16 * 1024
	}

	s := &Supervisor{
		cfg:    cfg,
		pid:    0,
		state:  "stopped",
		stdout: newTailBuffer(cfg.StdoutTailLines, cfg.MaxLineBytes),
		stderr: newTailBuffer(cfg.StderrTailLines, cfg.MaxLineBytes),
		done:   make(chan struct{}),
	}
	s.lines.state = "stopped"
	return s, nil
}

// Start launches the process and forwards every capture printed on stdout to
// fn. The process is restarted with exponential backoff when Restart is set.
func (s *Supervisor) Start(ctx context.Context, fn Handler) error {
	if s == nil {
		return fmt.Errorf("supervisor is nil")
	}
	if s.closed.Load() {
		return fmt.Errorf("supervisor is closed")
	}
	if fn == nil {
		return fmt.Errorf("supervisor handler is nil")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("supervisor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.setState("starting", "")
	go s.runLoop(runCtx, fn)
	return nil
}

func (s *Supervisor) Close() {
	if s == nil {
		return
	}
	if s.closed.Swap(true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.started.Load() {
		<-s.done
	}
}

func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	pid := s.pid
	state := s.state
	lastErr := s.lastErr
	starts := s.starts
	s.mu.RUnlock()

	running := pid != 0 && state == "running"
	return Snapshot{
		Name:      s.cfg.Name,
		Command:   s.cfg.Command,
		Running:   running,
		PID:       pid,
		State:     state,
		Starts:    starts,
		LastError: lastErr,
		Captures:  s.lines.snapshot(s.cfg.Name, "process", s.cfg.Command),
		Lines:     s.stdout.count(),
		Stdout:    s.stdout.snapshot(),
		Stderr:    s.stderr.snapshot(),
	}
}

func (s *Supervisor) runLoop(ctx context.Context, fn Handler) {
	defer close(s.done)

	backoff := s.cfg.BackoffInitial
	for {
		select {
		case <-ctx.Done():
			s.setState("stopped", "")
			return
		default:
		}

		exitErr := s.runOnce(ctx, fn)
		if ctx.Err() != nil {
			s.setState("stopped", "")
			return
		}

		if exitErr != nil {
			s.setState("exited", exitErr.Error())
			log.Warn().Str("decoder", s.cfg.Name).Err(exitErr).Msg("demodulator exited")
		} else {
			s.setState("exited", "")
			log.Info().Str("decoder", s.cfg.Name).Msg("demodulator exited")
		}

		if !s.cfg.Restart {
			return
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			s.setState("stopped", "")
			return
		case <-t.C:
		}
		backoff *= 2
		if backoff > s.cfg.BackoffMax {
			backoff = s.cfg.BackoffMax
		}
		s.setState("restarting", "")
	}
}

func (s *Supervisor) runOnce(ctx context.Context, fn Handler) error {
	cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	if s.cfg.WorkDir != "" {
		cmd.Dir = s.cfg.WorkDir
	}
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), envMapToList(s.cfg.Env)...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	s.mu.Lock()
	s.pid = pid
	s.state = "running"
	s.lastErr = ""
	s.starts++
	s.mu.Unlock()
	s.lines.setState("connected", "")
	log.Info().Str("decoder", s.cfg.Name).Int("pid", pid).Strs("args", s.cfg.Args).Msg("demodulator started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readCaptures(stdoutPipe, fn)
	}()
	go func() {
		defer wg.Done()
		readLinesToTail(stderrPipe, s.stderr)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	s.mu.Lock()
	s.pid = 0
	s.mu.Unlock()
	s.lines.setState("disconnected", "")

	if waitErr == nil {
		return nil
	}
	if errors.Is(waitErr, context.Canceled) {
		return nil
	}
	return waitErr
}

func (s *Supervisor) setState(state string, lastErr string) {
	s.mu.Lock()
	s.state = state
	if strings.TrimSpace(lastErr) != "" {
		s.lastErr = lastErr
	}
	s.mu.Unlock()
}

func envMapToList(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

// readCaptures keeps the stdout tail and delivers every line that parses as a
// capture. rtl_433 also prints non-capture lines; those only land in the tail.
func (s *Supervisor) readCaptures(r io.Reader, fn Handler) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		s.stdout.add(string(line))
		switch {
		case bytes.HasPrefix(line, []byte(`{"`)):
		case bytes.HasPrefix(line, []byte("codes")):
			// rtl_433 -F kv prints "codes     : {137}f0f0ff...".
			i := bytes.IndexByte(line, ':')
			if i < 0 {
				continue
			}
			line = line[i+1:]
		default:
			continue
		}
		s.lines.deliver(s.cfg.Name, line, fn)
	}
	if err := scanner.Err(); err != nil {
		s.stdout.add("[tail error] " + err.Error())
	}
}

func readLinesToTail(r io.Reader, t *tailBuffer) {
	if r == nil || t == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	// Increase the maximum token size to something sane for log lines.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, t.maxLineBytes)

	for scanner.Scan() {
		t.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.add("[tail error] " + err.Error())
	}
}
