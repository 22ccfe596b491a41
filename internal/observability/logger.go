package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/couchcryptid/ocean-query-service/internal/config"
)

// NewLogger builds the process logger: JSON by default, or colored text when
// LOG_FORMAT=text.
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
}

// NewConsoleLogger builds a colored text logger for interactive use.
func NewConsoleLogger(w io.Writer, level string) *slog.Logger {
	return newLogger(w, level, "text")
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, "text") {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
