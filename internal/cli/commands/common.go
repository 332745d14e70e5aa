package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/cli/auth"
	"github.com/paneld-dev/paneld/internal/config"
	"github.com/paneld-dev/paneld/internal/logger"
	"github.com/paneld-dev/paneld/internal/session"
	"github.com/paneld-dev/paneld/internal/transport"
)

// errNotLoggedIn is returned by commands that need a session
var errNotLoggedIn = errors.New("not logged in. Please run 'paneld login' first")

// credentialStoreFactory builds the credential store for a backend base URL.
// Tests swap it for an in-memory store.
var credentialStoreFactory = func(baseURL string) transport.CredentialStore {
	return auth.NewKeyringStore(baseURL)
}

// app is everything a command needs to talk to the backend
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	client   *transport.Client
	store    *session.Store
}

// newApp loads the config and wires transport and session state.
// This is common logic used by most commands.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithLevel(cmd.ErrOrStderr(), cfg.Logging.Format, cliLogLevel(cmd, cfg)).
		With().Str("component", "paneld").Logger()

	reg := prometheus.NewRegistry()

	client, err := transport.New(transport.Config{
		BaseURL:    cfg.Environment.APIURL,
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
		RetryStep:  cfg.HTTP.RetryStep,
		Logger:     log,
		Registerer: reg,
		Store:      credentialStoreFactory(cfg.Environment.APIURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store := session.NewStore(client, session.Options{
		ReverifyInterval: cfg.Session.ReverifyInterval,
		Logger:           log,
		Registerer:       reg,
	})

	return &app{
		cfg:      cfg,
		logger:   log,
		registry: reg,
		client:   client,
		store:    store,
	}, nil
}

func (a *app) close() {
	a.store.Close()
}

// failure turns a session operation error into the message the store shows
func (a *app) failure(action string, err error) error {
	if msg := a.store.Snapshot().Error; msg != "" {
		return fmt.Errorf("%s: %s", action, msg)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// cliLogLevel keeps the terminal quiet unless asked otherwise
func cliLogLevel(cmd *cobra.Command, cfg *config.Config) string {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return "debug"
	}
	if os.Getenv("LOG_LEVEL") != "" {
		return cfg.Logging.Level
	}
	return "warn"
}
