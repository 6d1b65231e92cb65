package internal

import (
	"io"
	"log/slog"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds the process logger. Production emits JSON for the log
// pipeline; dev gets human-readable text with source locations so log
// lines point back at the call site.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
		slog.Default().Warn("Unknown log level, falling back to info", slog.String("value", level))
	}

	var h slog.Handler
	if env == "prod" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: true})
	}

	return slog.New(h).With(slog.String("service", "canopy"))
}
