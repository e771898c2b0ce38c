package sim

import (
	"fmt"

	"somfy-rts/internal/bitbuffer"
	"somfy-rts/internal/somfy"
)

// Remote is a virtual RTS transmitter. Each Press advances the rolling
// counter, like a real remote does.
type Remote struct {
	ID      uint32
	Counter uint16
	// Key is the high nibble of the seed byte. Real remotes send 0xA.
	Key uint8
	// Noise prepends a short stray row to the first capture of a press, the
	// way the demodulator reports the wakeup pulse.
	Noise bool
}

// NewRemote parses a 6 hex digit address as shown in decoded output
// (low byte first).
func NewRemote(address string, counter uint16) (*Remote, error) {
	if len(address) != 6 {
		return nil, fmt.Errorf("address must be 6 hex digits, got %q", address)
	}
	var b [3]byte
	if _, err := fmt.Sscanf(address, "%02X%02X%02X", &b[0], &b[1], &b[2]); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	return &Remote{
		ID:      uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]),
		Counter: counter,
		Key:     0xA,
		Noise:   true,
	}, nil
}

// Message returns the descrambled message the next press would send.
func (r *Remote) Message(ctrl somfy.Control) somfy.RawMessage {
	seed := r.Key<<4 | uint8(r.Counter&0x0f)
	return somfy.NewMessage(seed, ctrl, r.Counter, r.ID)
}

// Press returns the captures for one button press: the first frame followed
// by repeats retransmissions, one capture each. The counter is advanced
// afterwards.
func (r *Remote) Press(ctrl somfy.Control, repeats int) []bitbuffer.Buffer {
	if repeats < 0 {
		repeats = 0
	}
	msg := r.Message(ctrl)

	first := bitbuffer.Buffer{}
	if r.Noise {
		first = first.Append(bitbuffer.NewRow([]byte{0x80}, 1))
	}
	first = first.Append(somfy.Encode(msg, somfy.VariantFirstFrame))

	out := make([]bitbuffer.Buffer, 0, 1+repeats)
	out = append(out, first)
	for i := 0; i < repeats; i++ {
		out = append(out, bitbuffer.Buffer{}.Append(somfy.Encode(msg, somfy.VariantRetransmission)))
	}

	r.Counter++
	return out
}
