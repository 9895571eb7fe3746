package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel переводит имя уровня (DEBUG, INFO, WARN, ERROR) в slog.Level.
// Неизвестное имя считается INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New создает структурированный логгер.
// format: "json" или "text" (по умолчанию).
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: strings.EqualFold(level, "DEBUG"), // файл и строка только в отладке
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "cepsilver")
}
