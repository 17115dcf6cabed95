package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/panyam/wardwatch/client"
	"github.com/panyam/wardwatch/internal/config"
	"github.com/panyam/wardwatch/internal/logger"
)

// app carries what every subcommand needs once flags and config are resolved
type app struct {
	configPath string
	overrides  struct {
		baseURL   string
		store     string
		storePath string
		logLevel  string
	}

	cfg     *config.Config
	logger  *slog.Logger
	metrics *client.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "wardwatch",
		Short:        "Nurse dashboard for assigned patients",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&a.overrides.baseURL, "base-url", "", "API base URL")
	flags.StringVar(&a.overrides.store, "store", "", "session store: fs, sqlite or datastore")
	flags.StringVar(&a.overrides.storePath, "store-path", "", "session file or database path")
	flags.StringVar(&a.overrides.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newDashboardCmd(a),
		newPatientsCmd(a),
		newProfileCmd(a),
		newServeDevCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path, mustExist := a.configPath, true
	if path == "" {
		path, mustExist = config.DefaultPath(), false
	}

	cfg, err := config.Load(path, mustExist)
	if err != nil {
		return err
	}
	if a.overrides.baseURL != "" {
		cfg.Server.BaseURL = a.overrides.baseURL
	}
	if a.overrides.store != "" {
		cfg.Store.Backend = a.overrides.store
	}
	if a.overrides.storePath != "" {
		cfg.Store.Path = a.overrides.storePath
	}
	if a.overrides.logLevel != "" {
		cfg.Log.Level = a.overrides.logLevel
	}

	a.cfg = cfg
	a.logger = logger.New(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// newClient opens the configured session store and builds an AuthClient on
// it. The returned func releases the store.
func (a *app) newClient(ctx context.Context) (*client.AuthClient, func(), error) {
	storage, closeStore, err := openStorage(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []client.ClientOption{
		client.WithHTTPClient(&http.Client{Timeout: a.cfg.Server.Timeout}),
		client.WithLogger(a.logger),
	}
	if a.cfg.Server.SharedRefresh {
		opts = append(opts, client.WithSharedRefresh())
	}
	if a.metrics != nil {
		opts = append(opts, client.WithMetrics(a.metrics))
	}

	ac := client.NewAuthClient(a.cfg.Server.BaseURL, client.NewSession(storage), opts...)
	return ac, closeStore, nil
}

var errSessionExpired = errors.New("session expired, run `wardwatch login` to sign in again")

// requireLogin fails early when there is nothing to authenticate with
func requireLogin(ac *client.AuthClient) error {
	if !ac.IsLoggedIn() {
		return errors.New("not logged in, run `wardwatch login` first")
	}
	return nil
}

// handleAuthFailure applies the dashboard policy for a 401 that survived the
// refresh and retry: log out locally and ask for a new login.
func (a *app) handleAuthFailure(ctx context.Context, ac *client.AuthClient, err error) error {
	if !client.IsUnauthorized(err) {
		return err
	}
	a.logger.InfoContext(ctx, "session rejected, logging out", slog.Any("error", err))
	if lerr := ac.Logout(ctx); lerr != nil {
		return fmt.Errorf("%w (clearing session also failed: %v)", errSessionExpired, lerr)
	}
	return errSessionExpired
}
