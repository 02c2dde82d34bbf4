// Package config loads server settings from the environment, after merging
// in a .env file when one is present.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Host             string `env:"HOST"               envDefault:"0.0.0.0"`
	Port             string `env:"PORT"               envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL"          envDefault:"info"`
	StatusPathPrefix string `env:"STATUS_PATH_PREFIX"`
	SendBuffer       int    `env:"SEND_BUFFER"        envDefault:"256"`
}

// Load reads the given .env files (".env" when none are named) and then
// parses the environment. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SendBuffer <= 0 {
		return Config{}, fmt.Errorf("parse env: SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	cfg.StatusPathPrefix = normalizePrefix(cfg.StatusPathPrefix)
	return cfg, nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.Level()}))
}

// normalizePrefix turns "PA1", "/PA1" and "/PA1/" into "/PA1/". An empty
// or root prefix stays empty.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix + "/"
}
