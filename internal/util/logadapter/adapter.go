package logadapter

import (
	"context"
	"log"
	"log/slog"
	"strings"
)

// New returns a *log.Logger whose output is forwarded to base.
// Lines prefixed with "warn:" or "error:" are emitted at the matching slog
// level with the prefix stripped; everything else is logged at info.
func New(base *slog.Logger) *log.Logger {
	return log.New(&writer{logger: base}, "", 0)
}

type writer struct {
	logger *slog.Logger
}

func (w *writer) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	level, msg := splitLevel(msg)
	w.logger.Log(context.Background(), level, msg)
	return len(p), nil
}

func splitLevel(msg string) (slog.Level, string) {
	switch {
	case strings.HasPrefix(msg, "error: "):
		return slog.LevelError, msg[len("error: "):]
	case strings.HasPrefix(msg, "warn: "):
		return slog.LevelWarn, msg[len("warn: "):]
	}
	return slog.LevelInfo, msg
}
