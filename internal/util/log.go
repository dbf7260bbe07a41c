// Package util holds small helpers shared by the commands.
package util

import (
	"log/slog"
	"os"
	"strings"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds a JSON logger at the named level and installs it as the
// process-wide slog default. Unknown level names fall back to info.
func NewLogger(level string) *slog.Logger {
	lv, ok := levels[strings.ToLower(level)]
	if !ok {
		lv = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
	slog.SetDefault(log)
	return log
}
