package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"somfy-rts/internal/bitbuffer"
	"somfy-rts/internal/decoder"
	"somfy-rts/internal/metrics"
	"somfy-rts/internal/remotes"
	"somfy-rts/internal/somfy"
)

// Record is one decoded frame together with its registry observation.
type Record struct {
	ReceivedUTC      time.Time   `json:"received_utc"`
	Source           string      `json:"source,omitempty"`
	Frame            somfy.Frame `json:"frame"`
	New              bool        `json:"new_remote"`
	Duplicate        bool        `json:"duplicate"`
	CounterRegressed bool        `json:"counter_regressed"`
}

type Stats struct {
	Captures       uint64 `json:"captures"`
	Decoded        uint64 `json:"decoded"`
	SanityFails    uint64 `json:"sanity_fails"`
	IntegrityFails uint64 `json:"integrity_fails"`
	Duplicates     uint64 `json:"duplicates"`
	Regressions    uint64 `json:"counter_regressions"`
	LastFrameUTC   string `json:"last_frame_utc,omitempty"`
}

type captureRecorder interface {
	WriteCapture(now time.Time, buf bitbuffer.Buffer) error
}

type recordSink interface {
	SendJSON(v any) error
}

type blinker interface {
	Blink()
}

type Options struct {
	Store *remotes.Store
	// RecentFrames sizes the ring of decoded frames. Defaults to 100.
	RecentFrames int

	// Optional outputs. Nil values are skipped.
	Recorder  captureRecorder
	Output    recordSink
	Indicator blinker
	OnRecord  func(Record)

	Logger *zerolog.Logger
}

// Pipeline decodes captures and fans decoded frames out to the registry and
// outputs. It is safe for concurrent use by several sources.
type Pipeline struct {
	dec  *somfy.Decoder
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	stats  Stats
	recent []Record
	next   int
	filled bool
}

func New(opts Options) *Pipeline {
	if opts.RecentFrames <= 0 {
		opts.RecentFrames = 100
	}
	if opts.Store == nil {
		opts.Store = remotes.NewStore(remotes.StoreConfig{})
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	p := &Pipeline{
		opts:   opts,
		log:    logger.With().Str("component", "pipeline").Logger(),
		recent: make([]Record, opts.RecentFrames),
	}
	p.dec = somfy.NewDecoder(somfy.WithTrace(func(tr somfy.Trace) {
		p.log.Trace().
			Int("row", tr.Row).
			Str("variant", tr.Variant.String()).
			Uint8("seed", tr.Seed).
			Uint8("checksum", tr.ChecksumNibble).
			Msg("frame trace")
	}))
	return p
}

// Decode runs the decoder without touching any pipeline state.
func (p *Pipeline) Decode(buf bitbuffer.Buffer) (somfy.Frame, error) {
	return p.dec.Decode(buf)
}

// HandleCapture decodes one capture. A rejected capture returns the
// *somfy.DecodeError; rejects are routine on a shared band and only logged
// at debug level.
func (p *Pipeline) HandleCapture(c decoder.Capture) (Record, error) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	now := c.At.UTC()

	metrics.RecordCapture(c.Source)
	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.WriteCapture(c.At, c.Buffer); err != nil {
			p.log.Warn().Err(err).Msg("record capture failed")
		}
	}

	f, err := p.dec.Decode(c.Buffer)
	if err != nil {
		p.reject(c, err)
		return Record{}, err
	}

	obs := p.opts.Store.Observe(now, f)
	rec := Record{
		ReceivedUTC:      now,
		Source:           c.Source,
		Frame:            f,
		New:              obs.New,
		Duplicate:        obs.Duplicate,
		CounterRegressed: obs.CounterRegressed,
	}

	p.mu.Lock()
	p.stats.Captures++
	p.stats.Decoded++
	if rec.Duplicate {
		p.stats.Duplicates++
	}
	if rec.CounterRegressed {
		p.stats.Regressions++
	}
	p.stats.LastFrameUTC = now.Format(time.RFC3339Nano)
	p.recent[p.next] = rec
	p.next = (p.next + 1) % len(p.recent)
	if p.next == 0 {
		p.filled = true
	}
	p.mu.Unlock()

	metrics.RecordDecode(metrics.ResultOK, f.Variant().String())
	metrics.RecordControl(f.Control)
	metrics.SetRemotesKnown(p.opts.Store.Len())
	if rec.CounterRegressed {
		metrics.RecordCounterRegression()
	}

	ev := p.log.Info()
	if rec.Duplicate {
		ev = p.log.Debug()
	}
	if rec.CounterRegressed {
		ev = p.log.Warn()
	}
	ev.Str("source", c.Source).
		Str("address", f.Address).
		Str("control", f.Control).
		Uint16("counter", f.Counter).
		Bool("retransmission", f.Retransmission).
		Bool("counter_regressed", rec.CounterRegressed).
		Msg("frame decoded")

	if p.opts.Output != nil {
		if err := p.opts.Output.SendJSON(rec); err != nil {
			p.log.Warn().Err(err).Msg("udp output failed")
		}
	}
	if p.opts.Indicator != nil {
		p.opts.Indicator.Blink()
	}
	if p.opts.OnRecord != nil {
		p.opts.OnRecord(rec)
	}
	return rec, nil
}

func (p *Pipeline) reject(c decoder.Capture, err error) {
	result := metrics.ResultSanity
	if errors.Is(err, somfy.ErrIntegrity) {
		result = metrics.ResultIntegrity
	}
	variant := ""
	if _, v, cerr := somfy.Classify(c.Buffer); cerr == nil {
		variant = v.String()
	}

	p.mu.Lock()
	p.stats.Captures++
	if result == metrics.ResultIntegrity {
		p.stats.IntegrityFails++
	} else {
		p.stats.SanityFails++
	}
	p.mu.Unlock()

	metrics.RecordDecode(result, variant)
	p.log.Debug().
		Err(err).
		Str("source", c.Source).
		Int("rows", len(c.Buffer.Rows)).
		Msg("capture rejected")
}

// Handler adapts the pipeline to a capture source. Rejects are not reported
// as source errors.
func (p *Pipeline) Handler() decoder.Handler {
	return func(c decoder.Capture) error {
		_, _ = p.HandleCapture(c)
		return nil
	}
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Recent returns up to limit decoded frames, newest first. limit <= 0
// returns the whole ring.
func (p *Pipeline) Recent(limit int) []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.next
	if p.filled {
		n = len(p.recent)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (p.next - i + len(p.recent)) % len(p.recent)
		out = append(out, p.recent[idx])
	}
	return out
}

func (p *Pipeline) Remotes(nowUTC time.Time) []remotes.Remote {
	return p.opts.Store.Snapshot(nowUTC)
}
