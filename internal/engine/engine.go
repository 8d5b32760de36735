// Package engine wires the sync core together: it owns the connection
// manager subscription and fans each inbound event out to the cache store,
// the notification sink, and the optional forwarder.
//
// The engine is the explicit owner of the "one live connection" slot that
// the UI shell held in earlier incarnations of this product. It never
// reconnects on its own; Run subscribes once and SwitchOrg is the only way
// to re-establish a connection.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/statuswatch/statuswatch/internal/cache"
	"github.com/statuswatch/statuswatch/internal/dispatch"
	"github.com/statuswatch/statuswatch/internal/forward"
	"github.com/statuswatch/statuswatch/internal/notify"
	"github.com/statuswatch/statuswatch/internal/pkg/errors"
	"github.com/statuswatch/statuswatch/internal/pkg/logger"
	"github.com/statuswatch/statuswatch/internal/realtime"
)

const cacheOpTimeout = 5 * time.Second

// Actor supplies the local user identity for self-origination suppression.
// auth.Session satisfies it.
type Actor interface {
	ActorID() string
	OrganizationID() string
}

// Engine coordinates manager, dispatcher, cache, notifier, and forwarder.
type Engine struct {
	manager   *realtime.Manager
	store     cache.Store
	notifier  notify.Notifier
	forwarder forward.Forwarder // nil when forwarding is disabled
	actor     Actor
	log       *logger.Logger

	mu          sync.Mutex
	unsubscribe func()
	orgID       string

	stats stats
}

type stats struct {
	events        atomic.Int64
	unknown       atomic.Int64
	suppressed    atomic.Int64
	invalidations atomic.Int64
	notifications atomic.Int64
	forwardErrors atomic.Int64
}

// Stats is a snapshot of engine counters for diagnostics output.
type Stats struct {
	Events        int64
	Unknown       int64
	Suppressed    int64
	Invalidations int64
	Notifications int64
	ForwardErrors int64
}

// New creates an engine. forwarder may be nil.
func New(manager *realtime.Manager, store cache.Store, notifier notify.Notifier, forwarder forward.Forwarder, actor Actor, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		manager:   manager,
		store:     store,
		notifier:  notifier,
		forwarder: forwarder,
		actor:     actor,
		log:       log.WithComponent("engine"),
	}
}

// Run subscribes for the actor's organization and blocks until ctx is
// cancelled. A missing organization id is the one error Run returns;
// everything after a successful start degrades to logs.
func (e *Engine) Run(ctx context.Context) error {
	orgID := e.actor.OrganizationID()
	if orgID == "" {
		return errors.ValidationError("no organization selected; log in first")
	}

	e.subscribe(ctx, orgID)

	<-ctx.Done()
	e.stop()
	return nil
}

// SwitchOrg tears down the current subscription and subscribes for a new
// organization. The manager guarantees the old socket closes before the new
// one opens.
func (e *Engine) SwitchOrg(ctx context.Context, orgID string) {
	e.stop()
	e.subscribe(ctx, orgID)
}

func (e *Engine) subscribe(ctx context.Context, orgID string) {
	unsubscribe := e.manager.Subscribe(ctx, orgID, e.handle)

	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.orgID = orgID
	e.mu.Unlock()
}

func (e *Engine) stop() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handle processes one inbound event. Called from the connection read loop,
// one event at a time, in transport order.
func (e *Engine) handle(env dispatch.Envelope) {
	e.stats.events.Add(1)

	e.mu.Lock()
	orgID := e.orgID
	e.mu.Unlock()

	// Export first: the audit stream carries everything, unknown types
	// included.
	if e.forwarder != nil {
		if err := e.forwarder.Forward(orgID, env); err != nil {
			e.stats.forwardErrors.Add(1)
			e.log.WithError(err).Warn("event forward failed", "type", string(env.Type))
		}
	}

	result := dispatch.Dispatch(env, e.actor.ActorID())
	if result.Unknown {
		e.stats.unknown.Add(1)
		e.log.Debug("ignoring unknown event type", "type", string(env.Type))
		return
	}
	if result.Notification == nil {
		e.stats.suppressed.Add(1)
	}

	if len(result.Invalidations) > 0 && e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		if err := e.store.Invalidate(ctx, result.Invalidations...); err != nil {
			e.log.WithError(err).Warn("cache invalidation failed")
		} else {
			e.stats.invalidations.Add(int64(len(result.Invalidations)))
		}
		cancel()
	}

	if result.Notification != nil && e.notifier != nil {
		e.notifier.Notify(*result.Notification)
		e.stats.notifications.Add(1)
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Events:        e.stats.events.Load(),
		Unknown:       e.stats.unknown.Load(),
		Suppressed:    e.stats.suppressed.Load(),
		Invalidations: e.stats.invalidations.Load(),
		Notifications: e.stats.notifications.Load(),
		ForwardErrors: e.stats.forwardErrors.Load(),
	}
}

// Connection reports the manager's current connection for diagnostics.
func (e *Engine) Connection() (orgID string, state realtime.State) {
	return e.manager.Current()
}
