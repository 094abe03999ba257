package sl

import (
	"io"
	"log/slog"
)

// Окружения из конфига.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New текстовый логгер для окружения. Debug включён только локально.
func New(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if env == EnvLocal {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
