package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/LexiPalCo/word-service/config"
)

// NewLogger creates a local slog logger using the handler configured by
// WSV_LOG_FORMAT (text or json) at the level from WSV_LOG_LEVEL.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.GetSlogLevel(),
	}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
