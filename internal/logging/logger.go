package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// New builds a slog logger writing to w. format is "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: replaceTimeAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "sonifier")
}

// Init builds the logger and installs it as the process default.
func Init(w io.Writer, level, format string) *slog.Logger {
	logger := New(w, level, format)
	slog.SetDefault(logger)
	logger.Info("logger initialized", "level", level, "format", format)
	return logger
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func replaceTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String("time", a.Value.Time().UTC().Format(time.RFC3339))
	}
	return a
}

// Time logs the start of op and returns a function that logs its completion
// or failure together with the elapsed time.
func Time(ctx context.Context, logger *slog.Logger, op string, attrs ...any) func(err error) {
	start := time.Now()
	logger.DebugContext(ctx, "starting", append([]any{"op", op}, attrs...)...)
	return func(err error) {
		elapsed := time.Since(start)
		args := append([]any{"op", op, "elapsed", elapsed.String()}, attrs...)
		if err != nil {
			logger.ErrorContext(ctx, "failed", append(args, "err", err)...)
			return
		}
		logger.InfoContext(ctx, "completed", args...)
	}
}

// Discard is a logger that drops everything; used by tests and library callers.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
