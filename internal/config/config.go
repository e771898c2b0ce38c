package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log" toml:"log"`
	Sources   SourcesConfig   `yaml:"sources" toml:"sources"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Record    RecordConfig    `yaml:"record" toml:"record"`
	Replay    ReplayConfig    `yaml:"replay" toml:"replay"`
	Remotes   RemotesConfig   `yaml:"remotes" toml:"remotes"`
	Web       WebConfig       `yaml:"web" toml:"web"`
	Indicator IndicatorConfig `yaml:"indicator" toml:"indicator"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	// BufferLines is the number of log lines kept for /api/logs.
	BufferLines int `yaml:"buffer_lines" toml:"buffer_lines"`
}

type SourcesConfig struct {
	RTL433 RTL433Config   `yaml:"rtl433" toml:"rtl433"`
	TCP    []TCPConfig    `yaml:"tcp" toml:"tcp"`
	Serial []SerialConfig `yaml:"serial" toml:"serial"`
}

type RTL433Config struct {
	Enable  bool     `yaml:"enable" toml:"enable"`
	Command string   `yaml:"command" toml:"command"`
	Args    []string `yaml:"args" toml:"args"`
	// Device is an RTL-SDR serial, "auto" to pick one, or empty to let
	// rtl_433 choose.
	Device     string `yaml:"device" toml:"device"`
	Frequency  string `yaml:"frequency" toml:"frequency"`
	SampleRate string `yaml:"sample_rate" toml:"sample_rate"`
	Gain       string `yaml:"gain" toml:"gain"`
	// Restart re-launches rtl_433 with backoff when it exits.
	Restart bool `yaml:"restart" toml:"restart"`
}

type TCPConfig struct {
	Name           string        `yaml:"name" toml:"name"`
	Addr           string        `yaml:"addr" toml:"addr"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
}

type SerialConfig struct {
	Name        string        `yaml:"name" toml:"name"`
	Device      string        `yaml:"device" toml:"device"`
	Baud        int           `yaml:"baud" toml:"baud"`
	ReopenDelay time.Duration `yaml:"reopen_delay" toml:"reopen_delay"`
}

type OutputConfig struct {
	UDP UDPConfig `yaml:"udp" toml:"udp"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Dest   string `yaml:"dest" toml:"dest"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Path   string `yaml:"path" toml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable" toml:"enable"`
	Path   string  `yaml:"path" toml:"path"`
	Speed  float64 `yaml:"speed" toml:"speed"`
	Loop   bool    `yaml:"loop" toml:"loop"`
}

type RemotesConfig struct {
	TTL time.Duration `yaml:"ttl" toml:"ttl"`
	Max int           `yaml:"max" toml:"max"`
	// RecentFrames sizes the ring served by /api/frames.
	RecentFrames int `yaml:"recent_frames" toml:"recent_frames"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable" toml:"enable"`
	Listen string `yaml:"listen" toml:"listen"`
}

type IndicatorConfig struct {
	// GPIOPin is the BCM pin number; zero disables the indicator.
	GPIOPin int           `yaml:"gpio_pin" toml:"gpio_pin"`
	Pulse   time.Duration `yaml:"pulse" toml:"pulse"`
}

// Load reads a YAML config, or TOML when the file name ends in ".toml",
// applies defaults and validates it.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(keys, ", "))
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			var te *yaml.TypeError
			if errors.As(err, &te) {
				return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(te.Errors, "; "))
			}
			return Config{}, err
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.Sources.RTL433.Enable = true
	cfg.Sources.RTL433.Restart = true
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error")
	}
	if cfg.Log.BufferLines <= 0 {
		cfg.Log.BufferLines = 2000
	}

	rtl := &cfg.Sources.RTL433
	if rtl.Command == "" {
		rtl.Command = "rtl_433"
	}
	if rtl.Frequency == "" {
		rtl.Frequency = "433.42M"
	}
	if rtl.SampleRate == "" {
		rtl.SampleRate = "250k"
	}

	for i := range cfg.Sources.TCP {
		c := &cfg.Sources.TCP[i]
		if c.Addr == "" {
			return fmt.Errorf("sources.tcp[%d].addr is required", i)
		}
		if c.Name == "" {
			c.Name = "tcp:" + c.Addr
		}
		if c.ReconnectDelay <= 0 {
			c.ReconnectDelay = 2 * time.Second
		}
	}
	for i := range cfg.Sources.Serial {
		c := &cfg.Sources.Serial[i]
		if c.Device == "" {
			return fmt.Errorf("sources.serial[%d].device is required", i)
		}
		if c.Name == "" {
			c.Name = "serial:" + c.Device
		}
		if c.Baud == 0 {
			c.Baud = 115200
		}
		if c.Baud < 0 {
			return fmt.Errorf("sources.serial[%d].baud must be > 0", i)
		}
		if c.ReopenDelay <= 0 {
			c.ReopenDelay = 2 * time.Second
		}
	}

	if cfg.Output.UDP.Enable && cfg.Output.UDP.Dest == "" {
		return fmt.Errorf("output.udp.dest is required when output.udp.enable is true")
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}
	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}
	if cfg.Record.Enable && cfg.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}

	if !cfg.Replay.Enable && !rtl.Enable && len(cfg.Sources.TCP) == 0 && len(cfg.Sources.Serial) == 0 {
		return fmt.Errorf("sources: no capture source configured")
	}

	if cfg.Remotes.TTL <= 0 {
		cfg.Remotes.TTL = 24 * time.Hour
	}
	if cfg.Remotes.Max <= 0 {
		cfg.Remotes.Max = 256
	}
	if cfg.Remotes.RecentFrames <= 0 {
		cfg.Remotes.RecentFrames = 100
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Indicator.GPIOPin < 0 {
		return fmt.Errorf("indicator.gpio_pin must be >= 0")
	}
	if cfg.Indicator.Pulse <= 0 {
		cfg.Indicator.Pulse = 80 * time.Millisecond
	}
	return nil
}
