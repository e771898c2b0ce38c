package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"somfy-rts/internal/bitbuffer"
	"somfy-rts/internal/config"
	"somfy-rts/internal/decoder"
	"somfy-rts/internal/indicator"
	"somfy-rts/internal/remotes"
	"somfy-rts/internal/replay"
	"somfy-rts/internal/sdr"
	"somfy-rts/internal/somfy"
	"somfy-rts/internal/udp"
)

// source is implemented by every capture source in internal/decoder.
type source interface {
	Start(ctx context.Context, fn decoder.Handler) error
	Close()
}

// StatusSnapshot is the runtime view served by /api/status.
type StatusSnapshot struct {
	Service     string                   `json:"service"`
	NowUTC      string                   `json:"now_utc"`
	UptimeSec   int64                    `json:"uptime_sec"`
	Stats       Stats                    `json:"stats"`
	Remotes     int                      `json:"remotes"`
	Supervisors []decoder.Snapshot       `json:"supervisors,omitempty"`
	Sources     []decoder.SourceSnapshot `json:"sources,omitempty"`
	UDPDest     string                   `json:"udp_dest,omitempty"`
	RecordPath  string                   `json:"record_path,omitempty"`
	ReplayPath  string                   `json:"replay_path,omitempty"`
}

// Runtime owns the configured sources and outputs around one Pipeline.
type Runtime struct {
	cfg     config.Config
	log     zerolog.Logger
	started time.Time

	pipe  *Pipeline
	store *remotes.Store

	supervisors []*decoder.Supervisor
	tcp         []*decoder.TCPClient
	serial      []*decoder.SerialClient
	replayRecs  []replay.Record

	recorder *replay.Writer
	out      *udp.Broadcaster
	led      *indicator.Indicator
}

// NewRuntime builds sources and outputs from cfg. Nothing runs until Run.
func NewRuntime(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	r := &Runtime{
		cfg:     cfg,
		log:     logger.With().Str("component", "runtime").Logger(),
		started: time.Now().UTC(),
		store:   remotes.NewStore(remotes.StoreConfig{MaxRemotes: cfg.Remotes.Max, TTL: cfg.Remotes.TTL}),
	}

	opts := Options{
		Store:        r.store,
		RecentFrames: cfg.Remotes.RecentFrames,
		Logger:       &logger,
	}

	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
		r.recorder = w
		opts.Recorder = w
	}
	if cfg.Output.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.Output.UDP.Dest)
		if err != nil {
			r.closeOutputs()
			return nil, fmt.Errorf("output.udp: %w", err)
		}
		r.out = b
		opts.Output = b
	}
	led, err := indicator.Open(indicator.Config{Pin: cfg.Indicator.GPIOPin, Pulse: cfg.Indicator.Pulse})
	if err != nil {
		// The LED is cosmetic; keep decoding without it.
		r.log.Warn().Err(err).Int("gpio_pin", cfg.Indicator.GPIOPin).Msg("indicator unavailable")
	} else if led != nil {
		r.led = led
		opts.Indicator = led
	}
	r.pipe = New(opts)

	if cfg.Replay.Enable {
		recs, err := replay.ReadFile(cfg.Replay.Path)
		if err != nil {
			r.closeOutputs()
			return nil, fmt.Errorf("replay: %w", err)
		}
		r.replayRecs = recs
		return r, nil
	}

	if rtl := cfg.Sources.RTL433; rtl.Enable {
		sup, err := decoder.NewSupervisor(decoder.SupervisorConfig{
			Name:    "rtl_433",
			Command: rtl.Command,
			Args: sdr.BuildRTL433Args(rtl.Args, sdr.RTL433Options{
				Device:     r.resolveDevice(ctx, rtl.Device),
				Frequency:  rtl.Frequency,
				SampleRate: rtl.SampleRate,
				Gain:       rtl.Gain,
				Flex:       somfy.RTS.FlexSpec(""),
			}),
			Restart: rtl.Restart,
		})
		if err != nil {
			r.closeOutputs()
			return nil, err
		}
		r.supervisors = append(r.supervisors, sup)
	}
	for _, c := range cfg.Sources.TCP {
		cl, err := decoder.NewTCPClient(decoder.TCPClientConfig{Name: c.Name, Addr: c.Addr, ReconnectDelay: c.ReconnectDelay})
		if err != nil {
			r.closeOutputs()
			return nil, err
		}
		r.tcp = append(r.tcp, cl)
	}
	for _, c := range cfg.Sources.Serial {
		cl, err := decoder.NewSerialClient(decoder.SerialClientConfig{Name: c.Name, Device: c.Device, Baud: c.Baud, ReopenDelay: c.ReopenDelay})
		if err != nil {
			r.closeOutputs()
			return nil, err
		}
		r.serial = append(r.serial, cl)
	}
	return r, nil
}

// resolveDevice turns the configured device into an rtl_433 "-d" selector.
// Detection failures fall back to letting rtl_433 pick.
func (r *Runtime) resolveDevice(ctx context.Context, tag string) string {
	if tag == "" {
		return ""
	}
	devs, err := sdr.DetectRTLSDRDevices(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("rtl-sdr detection failed")
		if sdr.IsAutoTag(tag) {
			return ""
		}
		return ":" + tag
	}
	r.log.Debug().Str("devices", sdr.DebugFormatDevices(devs)).Msg("rtl-sdr devices detected")
	dev, err := sdr.PickDevice(devs, tag)
	if err != nil {
		r.log.Warn().Err(err).Msg("rtl-sdr device not found")
		return ""
	}
	r.log.Info().Int("index", dev.Index).Str("serial", dev.Serial).Msg("rtl-sdr device selected")
	return sdr.DeviceSelector(dev)
}

func (r *Runtime) sources() []source {
	out := make([]source, 0, len(r.supervisors)+len(r.tcp)+len(r.serial))
	for _, s := range r.supervisors {
		out = append(out, s)
	}
	for _, s := range r.tcp {
		out = append(out, s)
	}
	for _, s := range r.serial {
		out = append(out, s)
	}
	return out
}

// Run starts every source and blocks until ctx is done or replay playback
// finishes, then stops sources and flushes outputs.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.closeOutputs()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.led.Start(runCtx)

	if r.cfg.Replay.Enable {
		r.log.Info().Str("path", r.cfg.Replay.Path).Int("records", len(r.replayRecs)).Msg("replay started")
		err := replay.Play(runCtx, r.replayRecs, r.cfg.Replay.Speed, r.cfg.Replay.Loop, nil, func(buf bitbuffer.Buffer) error {
			_, _ = r.pipe.HandleCapture(decoder.Capture{At: time.Now(), Source: "replay", Buffer: buf})
			return nil
		})
		if runCtx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil
		}
		return err
	}

	srcs := r.sources()
	started := make([]source, 0, len(srcs))
	for _, s := range srcs {
		if err := s.Start(runCtx, r.pipe.Handler()); err != nil {
			for _, st := range started {
				st.Close()
			}
			return err
		}
		started = append(started, s)
	}
	r.log.Info().Int("sources", len(started)).Msg("runtime started")

	<-runCtx.Done()
	for _, s := range started {
		s.Close()
	}
	r.log.Info().Msg("runtime stopped")
	return nil
}

func (r *Runtime) closeOutputs() {
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			r.log.Warn().Err(err).Msg("close record file failed")
		}
		r.recorder = nil
	}
	if r.out != nil {
		_ = r.out.Close()
	}
	r.led.Wait()
}

func (r *Runtime) Pipeline() *Pipeline {
	return r.pipe
}

func (r *Runtime) Status(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := StatusSnapshot{
		Service:   "somfy-rts",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(r.started).Seconds()),
		Stats:     r.pipe.Stats(),
		Remotes:   r.store.Len(),
	}
	for _, s := range r.supervisors {
		snap.Supervisors = append(snap.Supervisors, s.Snapshot())
	}
	for _, s := range r.tcp {
		snap.Sources = append(snap.Sources, s.Snapshot())
	}
	for _, s := range r.serial {
		snap.Sources = append(snap.Sources, s.Snapshot())
	}
	if r.cfg.Output.UDP.Enable {
		snap.UDPDest = r.cfg.Output.UDP.Dest
	}
	if r.cfg.Record.Enable {
		snap.RecordPath = r.cfg.Record.Path
	}
	if r.cfg.Replay.Enable {
		snap.ReplayPath = r.cfg.Replay.Path
	}
	return snap
}

func (r *Runtime) Remotes(nowUTC time.Time) []remotes.Remote {
	return r.pipe.Remotes(nowUTC)
}

func (r *Runtime) Frames(limit int) []Record {
	return r.pipe.Recent(limit)
}

func (r *Runtime) Decode(buf bitbuffer.Buffer) (somfy.Frame, error) {
	return r.pipe.Decode(buf)
}
