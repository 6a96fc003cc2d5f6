package app

import (
	"github.com/rs/zerolog"

	"github.com/parkgrove/clubsync/pkg/logging"
)

// NewLogger creates the application logger from the configuration. The
// verbose and quiet shortcuts override the configured level.
func NewLogger(config *Config) zerolog.Logger {
	level := config.LogLevel
	switch {
	case config.Verbose:
		level = "debug"
	case config.Quiet:
		level = "warn"
	}

	return logging.NewLoggerFromConfig(&logging.Config{
		Level:   level,
		Format:  config.LogFormat,
		Output:  config.LogOutput,
		NoColor: config.NoColor,
	})
}
