package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "SOMFY_LOG_LEVEL"

func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// Init builds the process logger, installs it as the zerolog global logger
// and returns it. Console output goes to stderr so stdout stays free for
// decoded records. Extra writers (for example a LogBuffer) receive the same
// console formatted lines.
func Init(app, level string, extra ...io.Writer) (zerolog.Logger, error) {
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		level = env
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}
	for _, w := range extra {
		if w == nil {
			continue
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	zerolog.SetGlobalLevel(lvl)
	return logger, nil
}
