package logger

import (
	"log/slog"
	"os"
	"strings"
)

var Log *slog.Logger

// Init sets up the process-wide JSON logger. LOG_LEVEL=debug enables
// per-attachment debug output; everything else logs at info.
func Init() {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	Log = slog.New(handler)
}
