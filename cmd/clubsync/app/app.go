// Package app provides the application context and dependency management
// for the clubsync CLI. It centralizes configuration, logging, and target
// client construction; the migration itself lives in the library packages.
package app

import (
	"github.com/rs/zerolog"

	inttarget "github.com/parkgrove/clubsync/internal/target"
	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/target"
)

// App represents the clubsync application with all its dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger

	// client overrides the HTTP target client, used by tests.
	client target.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	a.config = config

	logger := NewLogger(config)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// TargetClient builds the storage client for the target platform. The
// base URL may come from the run configuration; environment settings win.
func (a *App) TargetClient(baseURL, authHeader string) (target.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.config.TargetURL != "" {
		baseURL = a.config.TargetURL
	}
	if a.config.TargetAuthHeader != "" {
		authHeader = a.config.TargetAuthHeader
	}
	return inttarget.New(inttarget.Config{
		BaseURL:    baseURL,
		APIKey:     a.config.TargetAPIKey,
		AuthHeader: authHeader,
	})
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithTargetClient sets a custom storage client (useful for testing).
func WithTargetClient(client target.Client) Option {
	return func(a *App) error {
		a.client = client
		return nil
	}
}
