// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds a logger writing to w. debug lowers the level to Debug.
// format is "text" (default) or "json".
func New(w io.Writer, debug bool, format string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		h = slog.NewTextHandler(w, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return slog.New(h), nil
}

// Install builds a logger with New and makes it the slog default, so
// packages logging through slog.Default share its handler.
func Install(w io.Writer, debug bool, format string) (*slog.Logger, error) {
	logger, err := New(w, debug, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
