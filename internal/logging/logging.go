package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"teamtasks/backend/internal/config"

	"gorm.io/gorm/logger"
)

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New builds a logger writing to w in the configured format ("json" or "text").
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the configured logger as the process default.
func Setup(cfg config.LogConfig) *slog.Logger {
	log := New(os.Stdout, cfg)
	slog.SetDefault(log)
	return log
}

// GormLevel maps the application log level onto gorm's SQL logger.
func GormLevel(level string) logger.LogLevel {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return logger.Info
	case slog.LevelInfo, slog.LevelWarn:
		return logger.Warn
	default:
		return logger.Error
	}
}
