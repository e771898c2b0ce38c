package decoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// SerialClientConfig configures a receiver attached over a serial line that
// prints one capture per line.
type SerialClientConfig struct {
	Name   string
	Device string
	Baud   int

	ReopenDelay  time.Duration
	MaxLineBytes int
}

type SerialClient struct {
	cfg SerialClientConfig

	started atomic.Bool
	closed  atomic.Bool

	st lineState

	// open is replaced in tests.
	open func(path string, baud int) (io.ReadCloser, error)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSerialClient(cfg SerialClientConfig) (*SerialClient, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("serial client name is required")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial client device is required")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	if cfg.ReopenDelay <= 0 {
		cfg.ReopenDelay = 2 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 16 * 1024
	}
	c := &SerialClient{
		cfg: cfg,
		open: func(path string, baud int) (io.ReadCloser, error) {
			f, err := openSerial(path, baud)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		done: make(chan struct{}),
	}
	c.st.state = "stopped"
	return c, nil
}

func (c *SerialClient) Start(ctx context.Context, fn Handler) error {
	if c == nil {
		return fmt.Errorf("serial client is nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("serial client is closed")
	}
	if fn == nil {
		return fmt.Errorf("serial client handler is nil")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("serial client already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		defer close(c.done)
		c.runLoop(runCtx, fn)
	}()
	return nil
}

func (c *SerialClient) Close() {
	if c == nil {
		return
	}
	if c.closed.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.started.Load() {
		<-c.done
	}
}

func (c *SerialClient) Snapshot() SourceSnapshot {
	if c == nil {
		return SourceSnapshot{}
	}
	return c.st.snapshot(c.cfg.Name, "serial", c.cfg.Device)
}

func (c *SerialClient) runLoop(ctx context.Context, fn Handler) {
	for {
		if ctx.Err() != nil {
			c.st.setState("stopped", "")
			return
		}

		c.st.setState("connecting", "")
		port, err := c.open(c.cfg.Device, c.cfg.Baud)
		if err != nil {
			c.st.setState("error", err.Error())
			if !sleepCtx(ctx, c.cfg.ReopenDelay) {
				c.st.setState("stopped", "")
				return
			}
			continue
		}

		c.st.setState("connected", "")
		stop := context.AfterFunc(ctx, func() { _ = port.Close() })
		scanner := bufio.NewScanner(port)
		scanner.Buffer(make([]byte, 0, 4096), c.cfg.MaxLineBytes)
		for scanner.Scan() {
			c.st.deliver(c.cfg.Name, scanner.Bytes(), fn)
		}
		stop()
		_ = port.Close()
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.st.setState("disconnected", err.Error())
		} else {
			c.st.setState("disconnected", "")
		}

		if !sleepCtx(ctx, c.cfg.ReopenDelay) {
			c.st.setState("stopped", "")
			return
		}
	}
}
