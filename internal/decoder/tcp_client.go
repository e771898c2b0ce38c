package decoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// TCPClientConfig configures a reconnecting TCP capture source. Each line is
// either an rtl_433 JSON event or a set of rows in code notation.
type TCPClientConfig struct {
	Name string
	Addr string

	ReconnectDelay time.Duration
	MaxLineBytes   int

	// DialTimeout is used for the initial TCP connect.
	DialTimeout time.Duration
}

type TCPClient struct {
	cfg TCPClientConfig

	started atomic.Bool
	closed  atomic.Bool

	st lineState

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTCPClient(cfg TCPClientConfig) (*TCPClient, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tcp client name is required")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("tcp client addr is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 64 * 1024
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}

	c := &TCPClient{cfg: cfg, done: make(chan struct{})}
	c.st.state = "stopped"
	return c, nil
}

// Start connects to the configured endpoint and delivers every parsed capture
// to fn until ctx is cancelled or Close is called.
func (c *TCPClient) Start(ctx context.Context, fn Handler) error {
	if c == nil {
		return fmt.Errorf("tcp client is nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("tcp client is closed")
	}
	if fn == nil {
		return fmt.Errorf("tcp client handler is nil")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("tcp client already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.st.setState("connecting", "")

	go func() {
		defer close(c.done)
		c.runLoop(runCtx, fn)
	}()
	return nil
}

func (c *TCPClient) Close() {
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

func (c *TCPClient) Snapshot() SourceSnapshot {
	if c == nil {
		return SourceSnapshot{}
	}
	return c.st.snapshot(c.cfg.Name, "tcp", c.cfg.Addr)
}

func (c *TCPClient) runLoop(ctx context.Context, fn Handler) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}

	for {
		select {
		case <-ctx.Done():
			c.st.setState("stopped", "")
			return
		default:
		}

		c.st.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			c.st.setState("error", err.Error())
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				c.st.setState("stopped", "")
				return
			}
			continue
		}

		c.st.setState("connected", "")
		// Unblock the reader when the context ends.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		c.readLines(conn, fn)
		stop()
		_ = conn.Close()

		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			c.st.setState("stopped", "")
			return
		}
	}
}

func (c *TCPClient) readLines(conn net.Conn, fn Handler) {
	scanner := bufio.NewScanner(conn)
	// The scanner errors out instead of growing past MaxLineBytes.
	scanner.Buffer(make([]byte, 0, min(4096, c.cfg.MaxLineBytes)), c.cfg.MaxLineBytes)
	for scanner.Scan() {
		if line := scanner.Bytes(); len(line) > 0 {
			c.st.deliver(c.cfg.Name, line, fn)
		}
	}

	err := scanner.Err()
	switch {
	case errors.Is(err, bufio.ErrTooLong):
		c.st.setState("error", fmt.Sprintf("line too large (max %d bytes)", c.cfg.MaxLineBytes))
	case err == nil, errors.Is(err, net.ErrClosed):
		c.st.setState("disconnected", "")
	default:
		c.st.setState("disconnected", err.Error())
	}
}
