package somfy

import "somfy-rts/internal/bitbuffer"

// Trace carries per-frame diagnostics that are not part of the output record.
type Trace struct {
	Row            int
	Variant        Variant
	Seed           uint8
	ChecksumNibble uint8
}

type Option func(*Decoder)

// WithTrace registers a hook called once for every successfully decoded frame.
func WithTrace(fn func(Trace)) Option {
	return func(d *Decoder) {
		d.trace = fn
	}
}

// Decoder decodes captures. It holds no per-call state and is safe for
// concurrent use.
type Decoder struct {
	trace func(Trace)
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode runs classify, preamble, frame and field stages over one capture.
// Every failure is a *DecodeError; no partial record is returned.
func (d *Decoder) Decode(buf bitbuffer.Buffer) (Frame, error) {
	idx, variant, err := Classify(buf)
	if err != nil {
		return Frame{}, err
	}
	row := buf.Rows[idx]

	dataStart, err := LocatePreamble(row, variant)
	if err != nil {
		return Frame{}, err
	}

	msg, err := decodeFrame(row, dataStart)
	if err != nil {
		return Frame{}, err
	}

	f := ExtractFields(msg, variant)
	if d != nil && d.trace != nil {
		d.trace(Trace{Row: idx, Variant: variant, Seed: f.Seed, ChecksumNibble: f.ChecksumNibble})
	}
	return f, nil
}

// Decode is a convenience wrapper around NewDecoder(opts...).Decode(buf).
func Decode(buf bitbuffer.Buffer, opts ...Option) (Frame, error) {
	return NewDecoder(opts...).Decode(buf)
}
