package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/statuswatch/statuswatch/internal/engine"
	"github.com/statuswatch/statuswatch/internal/forward"
	"github.com/statuswatch/statuswatch/internal/notify"
	"github.com/statuswatch/statuswatch/internal/realtime"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the organization's change events live",
		Long: `Connect to the backend websocket and print change notifications as they
arrive. Cached query results are invalidated as events come in, so other
statuswatch commands sharing the cache stay fresh.

The connection is not retried automatically: if the backend goes away,
watch reports it and exits cleanly. Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.requireLogin(); err != nil {
				return err
			}

			orgFlag, _ := cmd.Flags().GetString("org")

			return runWatch(cmd.Context(), a, orgFlag)
		},
	}

	cmd.Flags().String("org", "", "organization id (defaults to the logged-in organization)")

	return cmd
}

func runWatch(ctx context.Context, a *app, orgOverride string) error {
	manager := realtime.NewManager(realtime.Config{
		SocketURL:    a.cfg.Realtime.SocketURL,
		ProbeURL:     a.cfg.API.BaseURL + a.cfg.Realtime.ProbePath,
		ProbeTimeout: a.cfg.Realtime.ProbeTimeout,
	}, a.log)
	defer manager.Close()

	var notifier notify.Notifier = notify.NewTerminal(os.Stdout)
	if a.cfg.Notify.RatePerSecond > 0 {
		notifier = notify.NewRateLimited(notifier, a.cfg.Notify.RatePerSecond, a.cfg.Notify.Burst)
	}

	var forwarder forward.Forwarder
	if a.cfg.Forward.Type == "kafka" {
		f, err := forward.NewKafka(forward.KafkaConfig{
			Brokers: a.cfg.Forward.KafkaBrokerList(),
			Topic:   a.cfg.Forward.KafkaTopic,
		})
		if err != nil {
			return fmt.Errorf("starting kafka forwarder: %w", err)
		}
		forwarder = f
		defer f.Close()
	}

	actor := watchActor{session: a.session, orgOverride: orgOverride}
	eng := engine.New(manager, a.store, notifier, forwarder, actor, a.log)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("watching organization %s (Ctrl-C to stop)\n", actor.OrganizationID())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(ctx)
	})

	err := g.Wait()

	stats := eng.Stats()
	fmt.Printf("\n%d events, %d notifications, %d invalidations, %d self-suppressed, %d unknown\n",
		stats.Events, stats.Notifications, stats.Invalidations, stats.Suppressed, stats.Unknown)
	if stats.ForwardErrors > 0 {
		fmt.Printf("%d events failed to forward\n", stats.ForwardErrors)
	}

	return err
}

// watchActor wraps the session so --org can override the organization.
type watchActor struct {
	session interface {
		ActorID() string
		OrganizationID() string
	}
	orgOverride string
}

func (w watchActor) ActorID() string {
	return w.session.ActorID()
}

func (w watchActor) OrganizationID() string {
	if w.orgOverride != "" {
		return w.orgOverride
	}
	return w.session.OrganizationID()
}
