// Package realtime maintains the organization-scoped websocket connection.
//
// At most one connection is live per process. Callers subscribe with an
// organization id and receive parsed change events until they unsubscribe or
// switch organizations. Connectivity failures are logged, never returned:
// a dead backend means no events, not a crashed caller. There is no
// automatic reconnect; re-subscribing is the caller's responsibility.
package realtime

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/statuswatch/statuswatch/internal/dispatch"
	"github.com/statuswatch/statuswatch/internal/pkg/logger"
)

// EventHandler receives parsed inbound events in transport order.
type EventHandler func(env dispatch.Envelope)

// Config holds connection settings.
type Config struct {
	// SocketURL is the websocket endpoint, e.g. "ws://localhost:8080/ws".
	// The organization id is appended as the org_id query parameter.
	SocketURL string

	// ProbeURL is the HTTP endpoint checked before dialing.
	ProbeURL string

	// ProbeTimeout bounds the reachability probe. A timeout fails closed:
	// the subscribe attempt is abandoned without opening a socket.
	ProbeTimeout time.Duration

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration

	// Dialer overrides the websocket dialer. Tests inject one.
	Dialer *websocket.Dialer
}

// DefaultConfig returns sensible defaults pointing at a local dev backend.
func DefaultConfig() Config {
	return Config{
		SocketURL:        "ws://localhost:8080/ws",
		ProbeURL:         "http://localhost:8080/healthz",
		ProbeTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Manager owns the single live connection slot.
type Manager struct {
	cfg Config
	log *logger.Logger

	mu         sync.Mutex
	current    *conn
	connecting bool // guards against overlapping connect attempts
}

// NewManager creates a connection manager.
func NewManager(cfg Config, log *logger.Logger) *Manager {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		cfg: cfg,
		log: log.WithComponent("realtime"),
	}
}

// noop is returned whenever no connection was (or will be) established.
func noop() {}

// Subscribe establishes the connection for orgID and forwards parsed events
// to onEvent. It returns an unsubscribe function that is always non-nil and
// safe to call multiple times.
//
// An empty orgID, a failed reachability probe, a failed handshake, or a
// connect attempt already in progress all yield a no-op unsubscribe; the
// failure is logged and onEvent never fires. Subscribing for a different
// organization closes the previous connection first. Subscribing again for
// the organization already connected reuses the live connection.
func (m *Manager) Subscribe(ctx context.Context, orgID string, onEvent EventHandler) (unsubscribe func()) {
	if orgID == "" {
		m.log.Warn("subscribe called without organization id; ignoring")
		return noop
	}

	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		m.log.WithOrg(orgID).Debug("connect already in progress; rejecting subscribe")
		return noop
	}
	if c := m.current; c != nil && c.alive() {
		if c.orgID == orgID {
			m.mu.Unlock()
			m.log.WithOrg(orgID).Debug("reusing live connection")
			return func() { m.release(c) }
		}
		// Organization switch: the old connection goes first.
		c.close(websocket.CloseNormalClosure, "switching organization")
		m.current = nil
	}
	m.connecting = true
	m.mu.Unlock()

	finish := func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}

	log := m.log.WithOrg(orgID)

	if err := probe(ctx, m.cfg.ProbeURL, m.cfg.ProbeTimeout); err != nil {
		log.WithError(err).Warn("backend unreachable; not opening socket")
		finish()
		return noop
	}

	ws, err := m.dial(ctx, orgID)
	if err != nil {
		log.WithError(err).Warn("websocket handshake failed")
		finish()
		return noop
	}

	c := newConn(orgID, ws, onEvent, log)

	m.mu.Lock()
	m.current = c
	m.connecting = false
	m.mu.Unlock()

	go c.readLoop(m.onConnClosed)

	log.Info("connected")
	return func() { m.release(c) }
}

func (m *Manager) dial(ctx context.Context, orgID string) (*websocket.Conn, error) {
	u, err := url.Parse(m.cfg.SocketURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("org_id", orgID)
	u.RawQuery = q.Encode()

	dialer := m.cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return ws, err
}

// release closes c if it is still the current connection. Calling it after
// the socket already closed on its own is safe, as is calling it twice.
func (m *Manager) release(c *conn) {
	c.close(websocket.CloseNormalClosure, "client closing")

	m.mu.Lock()
	if m.current == c {
		m.current = nil
	}
	m.mu.Unlock()
}

// onConnClosed clears the slot when a connection dies on its own.
func (m *Manager) onConnClosed(c *conn) {
	m.mu.Lock()
	if m.current == c {
		m.current = nil
	}
	m.mu.Unlock()
}

// Current reports the organization id and state of the live connection,
// or empty values when there is none. Diagnostics output uses it.
func (m *Manager) Current() (orgID string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", StateIdle
	}
	return m.current.orgID, m.current.state()
}

// Close shuts down any live connection.
func (m *Manager) Close() {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.mu.Unlock()

	if c != nil {
		c.close(websocket.CloseNormalClosure, "client closing")
	}
}
