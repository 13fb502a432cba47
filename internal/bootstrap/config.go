package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/nextphaseit/portal-gateway/config"
)

// InitLogger installs an info-level JSON logger for the startup window
// before LOG_LEVEL is known.
func InitLogger() *slog.Logger {
	return setDefault(NewLogger(os.Stdout, "info", false))
}

// ConfigureLogger swaps the default logger for one built from cfg.
// Development mode logs text instead of JSON.
func ConfigureLogger(cfg *config.AppConfig) *slog.Logger {
	return setDefault(NewLogger(os.Stdout, cfg.LogLevel, cfg.IsDev))
}

func setDefault(l *slog.Logger) *slog.Logger {
	slog.SetDefault(l)
	return l
}

// NewLogger builds a logger writing to w. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string, text bool) *slog.Logger {
	var lvl slog.Level
	if lvl.UnmarshalText([]byte(level)) != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if text {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (config.AppConfig, error) {
	var cfg config.AppConfig
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}
