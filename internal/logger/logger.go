// Package logger builds the slog loggers of the Accolade binaries and carries
// request-scoped loggers through contexts.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/rafaeljc/accolade/internal/config"
)

// New returns the process logger, writing to stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w. Every record carries the
// service, version and env attributes. JSON is the default format; "text" is
// meant for local development.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	level := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations cost a runtime.Caller per record; only pay for them when debugging.
		AddSource:   level <= slog.LevelDebug && cfg.Environment != config.EnvironmentProduction,
		ReplaceAttr: readableDurations,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// readableDurations renders durations as "1.5ms" instead of nanosecond
// integers, so JSON and text output agree.
func readableDurations(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().String())
	}
	return a
}

// parseLevel is case-insensitive and falls back to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
