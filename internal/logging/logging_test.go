package logging

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func restoreGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	prevLogger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		log.Logger = prevLogger
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestInitWritesToExtraWriters(t *testing.T) {
	restoreGlobalLevel(t)
	t.Setenv(EnvLevel, "")
	buf := NewLogBuffer(10)
	logger, err := Init("somfy-rts-test", "info", buf)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("address", "0A0B0C").Msg("frame decoded")

	lines, dropped := buf.Snapshot(0)
	require.Zero(t, dropped)
	require.Len(t, lines, 1)
	require.True(t, strings.Contains(lines[0], "frame decoded"), lines[0])
	require.True(t, strings.Contains(lines[0], "address=0A0B0C"), lines[0])
}

func TestInitEnvOverridesLevel(t *testing.T) {
	restoreGlobalLevel(t)
	t.Setenv(EnvLevel, "debug")
	logger, err := Init("somfy-rts-test", "error")
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	t.Setenv(EnvLevel, "nonsense")
	_, err = Init("somfy-rts-test", "info")
	require.Error(t, err)
}

func TestLogBufferHoldsPartialLines(t *testing.T) {
	b := NewLogBuffer(2)
	_, _ = b.Write([]byte("one\ntw"))
	lines, _ := b.Snapshot(10)
	require.Equal(t, []string{"one"}, lines)

	_, _ = b.Write([]byte("o\nthree\n"))
	lines, dropped := b.Snapshot(10)
	require.Equal(t, []string{"two", "three"}, lines)
	require.Equal(t, uint64(1), dropped)

	lines, _ = b.Snapshot(1)
	require.Equal(t, []string{"three"}, lines)
}
