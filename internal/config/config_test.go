package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	return writeTempConfigNamed(t, "cfg.yaml", contents)
}

func writeTempConfigNamed(t *testing.T, name, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const tcpSource = "sources:\n  tcp:\n    - addr: '127.0.0.1:1433'\n"

func TestLoad_RequiresSource(t *testing.T) {
	path := writeTempConfig(t, "log:\n  level: debug\n")
	_, err := Load(path)
	requireErrEq(t, err, "sources: no capture source configured")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, tcpSource)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.BufferLines != 2000 {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	tcp := cfg.Sources.TCP[0]
	if tcp.Name != "tcp:127.0.0.1:1433" || tcp.ReconnectDelay != 2*time.Second {
		t.Fatalf("unexpected tcp defaults: %+v", tcp)
	}
	if cfg.Sources.RTL433.Command != "rtl_433" || cfg.Sources.RTL433.Frequency != "433.42M" {
		t.Fatalf("unexpected rtl_433 defaults: %+v", cfg.Sources.RTL433)
	}
	if cfg.Remotes.TTL != 24*time.Hour || cfg.Remotes.Max != 256 || cfg.Remotes.RecentFrames != 100 {
		t.Fatalf("unexpected remotes defaults: %+v", cfg.Remotes)
	}
	if cfg.Web.Listen != ":8080" || cfg.Indicator.Pulse != 80*time.Millisecond {
		t.Fatalf("unexpected web/indicator defaults: %+v %+v", cfg.Web, cfg.Indicator)
	}
}

func TestDefault_UsesRTL433(t *testing.T) {
	cfg := Default()
	if !cfg.Sources.RTL433.Enable || !cfg.Sources.RTL433.Restart {
		t.Fatalf("expected rtl_433 source enabled by default")
	}
	if cfg.Remotes.Max != 256 {
		t.Fatalf("expected defaults applied")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "BadLogLevel",
			body: tcpSource + "log:\n  level: loud\n",
			want: "log.level must be one of trace, debug, info, warn, error",
		},
		{
			name: "TCPRequiresAddr",
			body: "sources:\n  tcp:\n    - name: x\n",
			want: "sources.tcp[0].addr is required",
		},
		{
			name: "SerialRequiresDevice",
			body: "sources:\n  serial:\n    - baud: 9600\n",
			want: "sources.serial[0].device is required",
		},
		{
			name: "SerialNegativeBaud",
			body: "sources:\n  serial:\n    - device: /dev/ttyUSB0\n      baud: -1\n",
			want: "sources.serial[0].baud must be > 0",
		},
		{
			name: "UDPRequiresDest",
			body: tcpSource + "output:\n  udp:\n    enable: true\n",
			want: "output.udp.dest is required when output.udp.enable is true",
		},
		{
			name: "RecordRequiresPath",
			body: tcpSource + "record:\n  enable: true\n",
			want: "record.path is required when record.enable is true",
		},
		{
			name: "ReplayRequiresPath",
			body: "replay:\n  enable: true\n",
			want: "replay.path is required when replay.enable is true",
		},
		{
			name: "ReplayNegativeSpeed",
			body: "replay:\n  enable: true\n  path: './x.log'\n  speed: -1\n",
			want: "replay.speed must be > 0",
		},
		{
			name: "RecordAndReplay",
			body: "record:\n  enable: true\n  path: './a.log'\nreplay:\n  enable: true\n  path: './b.log'\n",
			want: "record and replay cannot both be enabled",
		},
		{
			name: "NegativeGPIO",
			body: tcpSource + "indicator:\n  gpio_pin: -4\n",
			want: "indicator.gpio_pin must be >= 0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.body)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_ReplaySpeedDefaultsToOne(t *testing.T) {
	path := writeTempConfig(t, "replay:\n  enable: true\n  path: './x.log'\n  speed: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.Replay.Speed)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, tcpSource+"web:\n  port: 80\n")
	_, err := Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), "config contains unknown fields: ") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "port") {
		t.Fatalf("error does not name the field: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeTempConfigNamed(t, "cfg.toml", `
[log]
level = "debug"

[sources.rtl433]
enable = true
device = "auto"
args = ["-M", "level"]

[[sources.serial]]
device = "/dev/ttyACM0"

[remotes]
ttl = "1h"

[output.udp]
enable = true
dest = "127.0.0.1:43300"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "debug" || !cfg.Sources.RTL433.Enable || cfg.Sources.RTL433.Device != "auto" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Sources.RTL433.Args) != 2 {
		t.Fatalf("args=%v", cfg.Sources.RTL433.Args)
	}
	if len(cfg.Sources.Serial) != 1 || cfg.Sources.Serial[0].Baud != 115200 {
		t.Fatalf("unexpected serial config: %+v", cfg.Sources.Serial)
	}
	if cfg.Remotes.TTL != time.Hour {
		t.Fatalf("ttl=%s want 1h", cfg.Remotes.TTL)
	}
	if cfg.Output.UDP.Dest != "127.0.0.1:43300" {
		t.Fatalf("udp dest=%q", cfg.Output.UDP.Dest)
	}
}

func TestLoad_TOMLRejectsUnknownField(t *testing.T) {
	path := writeTempConfigNamed(t, "cfg.toml", "[web]\nport = 80\n\n[sources.rtl433]\nenable = true\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: web.port")
}
