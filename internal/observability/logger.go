// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the process logger and the Prometheus
// metrics recorded for each notification cycle.
package observability

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// NewLogger creates a zerolog logger writing to out and, when cfg.File is
// set, appending to that file as well. The returned close function
// releases the file and is safe to call when no file was opened.
func NewLogger(cfg types.LoggingConfig, out io.Writer) (zerolog.Logger, func() error, error) {
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = out
	if strings.ToLower(cfg.Format) == "console" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}

	closeFn := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("opening log file: %w", err)
		}
		// The file always receives JSON lines.
		w = zerolog.MultiLevelWriter(w, f)
		closeFn = f.Close
	}

	log := zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
	return log, closeFn, nil
}

// ParseLevel converts a string log level to zerolog.Level, defaulting to
// info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
