package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront-api/internal/config"
)

// New builds the root logger. Unknown levels fall back to info.
func New(cfg config.Log, environment string) zerolog.Logger {
	return NewWithWriter(cfg, environment, os.Stdout)
}

func NewWithWriter(cfg config.Log, environment string, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "storefront-api").
		Str("env", environment).
		Logger()
}
