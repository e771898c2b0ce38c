package indicator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// output is the minimal interface the indicator needs from a GPIO backend.
type output interface {
	Set(on bool) error
	Close() error
}

var openGPIOFn = openGPIO

type Config struct {
	// Pin is the BCM GPIO number. Zero disables the indicator.
	Pin   int
	Pulse time.Duration
}

// Indicator blinks an LED once per decoded frame. Blinks requested while the
// LED is lit are coalesced.
type Indicator struct {
	pulse time.Duration
	out   output

	blink chan struct{}

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// Open returns nil when the indicator is disabled. A nil *Indicator is safe
// to use.
func Open(cfg Config) (*Indicator, error) {
	if cfg.Pin <= 0 {
		return nil, nil
	}
	out, err := openGPIOFn(cfg.Pin)
	if err != nil {
		return nil, err
	}
	return newIndicator(out, cfg.Pulse), nil
}

func newIndicator(out output, pulse time.Duration) *Indicator {
	if pulse <= 0 {
		pulse = 80 * time.Millisecond
	}
	return &Indicator{
		pulse: pulse,
		out:   out,
		blink: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Blink requests one pulse without blocking.
func (i *Indicator) Blink() {
	if i == nil {
		return
	}
	select {
	case i.blink <- struct{}{}:
	default:
	}
}

// Start runs the blink loop until ctx is done, then turns the LED off and
// releases the line.
func (i *Indicator) Start(ctx context.Context) {
	if i == nil {
		return
	}
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return
	}
	i.started = true
	i.mu.Unlock()

	go func() {
		defer close(i.done)
		defer func() {
			if err := i.out.Close(); err != nil {
				log.Warn().Err(err).Msg("indicator: close failed")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-i.blink:
			}
			if err := i.out.Set(true); err != nil {
				log.Warn().Err(err).Msg("indicator: set failed")
				continue
			}
			t := time.NewTimer(i.pulse)
			select {
			case <-ctx.Done():
				t.Stop()
				_ = i.out.Set(false)
				return
			case <-t.C:
			}
			_ = i.out.Set(false)
		}
	}()
}

// Wait blocks until a started indicator has shut down.
func (i *Indicator) Wait() {
	if i == nil {
		return
	}
	i.mu.Lock()
	started := i.started
	i.mu.Unlock()
	if started {
		<-i.done
	}
}
