package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"notebox/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

var level = new(slog.LevelVar)

var debugEnabled atomic.Bool

// Setup installs the process-wide slog logger described by cfg and returns it.
// The standard library logger is redirected into it so that gin and gorm
// output end up in the same sink.
func Setup(cfg config.LogConfig) *slog.Logger {
	SetLevel(cfg.Level)

	var writer io.Writer = os.Stdout
	if cfg.Path != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	l := New(writer, cfg.Format)
	slog.SetDefault(l)
	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(l.Handler(), slog.LevelInfo).Writer())
	return l
}

// New builds a logger writing to w in json or text format, filtered by the
// level last passed to SetLevel.
func New(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	debugEnabled.Store(level.Level() <= slog.LevelDebug)
}

func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

func Debugf(format string, v ...any) {
	if !IsDebugEnabled() {
		return
	}
	slog.Debug(fmt.Sprintf(format, v...))
}
