// Package main provides the statuswatch CLI.
//
// statuswatch talks to a status-page backend: it manages services,
// incidents, and maintenance windows, and can follow an organization's
// change events live over a websocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/statuswatch/statuswatch/internal/api"
	"github.com/statuswatch/statuswatch/internal/auth"
	"github.com/statuswatch/statuswatch/internal/cache"
	"github.com/statuswatch/statuswatch/internal/config"
	"github.com/statuswatch/statuswatch/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "statuswatch",
		Short: "Statuswatch - status page and incident management client",
		Long: `Statuswatch manages services, incidents, and maintenance windows on a
status-page backend, and follows an organization's change events live.

Run 'statuswatch login' first, then 'statuswatch watch' to stream events.
Public status is available without login via 'statuswatch status'.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")

	rootCmd.AddCommand(
		watchCmd(),
		servicesCmd(),
		incidentsCmd(),
		maintenanceCmd(),
		statusCmd(),
		loginCmd(),
		logoutCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("statuswatch %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	session *auth.Session
	store   cache.Store
	client  *api.Client
}

// loadApp builds the shared application state from flags and config.
func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	session, err := auth.Open(cfg.Auth.TokenPath)
	if err != nil {
		return nil, err
	}

	store, err := openCache(cfg, log)
	if err != nil {
		return nil, err
	}

	client := api.New(api.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		CacheTTL: cfg.Cache.TTL,
	}, session, store)

	return &app{
		cfg:     cfg,
		log:     log,
		session: session,
		store:   store,
		client:  client,
	}, nil
}

// openCache selects the cache backend. A broken redis degrades to memory
// rather than failing the command.
func openCache(cfg *config.Config, log *logger.Logger) (cache.Store, error) {
	if cfg.Cache.Type == "redis" {
		store, err := cache.NewRedis(cfg.Cache.RedisURL)
		if err == nil {
			return store, nil
		}
		log.WithError(err).Warn("redis cache unavailable; using in-memory cache")
	}
	return cache.NewMemory(), nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// requireLogin fails fast for commands that need credentials.
func (a *app) requireLogin() error {
	if !a.session.LoggedIn() {
		return fmt.Errorf("not logged in; run 'statuswatch login' first")
	}
	return nil
}
