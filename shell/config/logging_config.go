package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ErrInvalidLoggingConfig is returned for unknown log levels or formats.
var ErrInvalidLoggingConfig = errors.New("invalid logging config")

// LoggingConfig selects the slog level and output format.
type LoggingConfig struct {
	Level  string `env:"TICKETSIM_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"TICKETSIM_LOG_FORMAT" envDefault:"text"`
}

// LoadLoggingConfigFromEnv reads a LoggingConfig from the process environment.
func LoadLoggingConfigFromEnv() (LoggingConfig, error) {
	return loadLoggingConfig(env.Options{})
}

// LoadLoggingConfigFromEnvironment reads a LoggingConfig from the given variables.
func LoadLoggingConfigFromEnvironment(environment map[string]string) (LoggingConfig, error) {
	return loadLoggingConfig(env.Options{Environment: environment})
}

func loadLoggingConfig(options env.Options) (LoggingConfig, error) {
	cfg, err := env.ParseAsWithOptions[LoggingConfig](options)
	if err != nil {
		return LoggingConfig{}, errors.Join(ErrInvalidLoggingConfig, err)
	}

	return cfg, nil
}

// NewLogger builds a slog.Logger writing to w.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLoggingConfig, err)
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOptions)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOptions)), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidLoggingConfig, c.Format)
	}
}
